package normalize

import (
	"testing"
	"time"
)

func TestRefID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"39407-68469-A", "3940768469", true},
		{"3940768469", "3940768469", true},
		{"www.pdoffer.com/3940768469", "3940768469", true},
		{"www.pdoffer.com/Sharon94954", "", false},
		{"12345", "", false},
		{"", "", false},
		{"394076846912", "", false},
	}
	for _, tt := range tests {
		got, ok := RefID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("RefID(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"39407-68469-A", "02585-2345", "025852345", " josé  Núñez ", "$5,000.00",
		"15551234567", "555-123-4567", "Hot!!", "www.pdoffer.com/Sharon94954", "", "501.0",
	}
	funcs := map[string]func(string) string{
		"Digits":    Digits,
		"Letters":   Letters,
		"Zip":       Zip,
		"Zip5":      Zip5,
		"Name":      Name,
		"Key":       Key,
		"DebtKey":   DebtKey,
		"CRMStatus": CRMStatus,
		"URLSlug":   URLSlug,
		"RefID":     func(s string) string { v, _ := RefID(s); return v },
		"Phone":     func(s string) string { v, _ := Phone(s); return v },
		"Debt":      func(s string) string { v, _ := Debt(s); return v },
		"Date":      DateString,
	}
	for name, f := range funcs {
		for _, in := range inputs {
			once := f(in)
			if twice := f(once); twice != once {
				t.Fatalf("%s not idempotent for %q: %q then %q", name, in, once, twice)
			}
		}
	}
}

func TestZipFormatsCompareEqual(t *testing.T) {
	t.Parallel()

	if Zip("025852345") != Zip("02585-2345") {
		t.Fatalf("zip forms differ: %q vs %q", Zip("025852345"), Zip("02585-2345"))
	}
	a5, a4 := SplitZip("025852345")
	b5, b4 := SplitZip("02585-2345")
	if a5 != b5 || a4 != b4 || a5 != "02585" || a4 != "2345" {
		t.Fatalf("split mismatch: %s-%s vs %s-%s", a5, a4, b5, b4)
	}
}

func TestSplitZip(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, z5, z4 string }{
		{"2585", "02585", ""},
		{"02585", "02585", ""},
		{"25852345", "02585", "2345"},
		{"10001-0001", "10001", "0001"},
		{"501.0", "00501", ""},
		{"1234567890", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		z5, z4 := SplitZip(tt.in)
		if z5 != tt.z5 || z4 != tt.z4 {
			t.Fatalf("SplitZip(%q) = %q,%q want %q,%q", tt.in, z5, z4, tt.z5, tt.z4)
		}
	}
}

func TestPhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"(555) 123-4567", "5551234567", true},
		{"15551234567", "5551234567", true},
		{"555123456", "0555123456", true},
		{"101", "", false},
		{"Restricted", "", false},
		{"123456789012", "", false},
	}
	for _, tt := range tests {
		got, ok := Phone(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("Phone(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMailNumber(t *testing.T) {
	t.Parallel()

	tests := map[string]int{"39407-68469-A": 1, "39407-68469-b": 2, "3940768469": 0, "39407-68469-D": 4}
	for in, want := range tests {
		if got := MailNumber(in); got != want {
			t.Fatalf("MailNumber(%q)=%d want %d", in, got, want)
		}
	}
}

func TestNameAndDebt(t *testing.T) {
	t.Parallel()

	if got := Name("  José   Núñez "); got != "JOSE NUNEZ" {
		t.Fatalf("Name=%q", got)
	}
	if got, ok := Debt("$5,000.00"); !ok || got != "5000" {
		t.Fatalf("Debt=%q,%v", got, ok)
	}
	if _, ok := Debt("n/a"); ok {
		t.Fatalf("expected n/a to be invalid")
	}
}

func TestDates(t *testing.T) {
	t.Parallel()

	d, ok := Date("3/15/2023 14:05")
	if !ok || FormatDate(d) != "2023-03-15 14:05:00" {
		t.Fatalf("Date=%v,%v", d, ok)
	}
	d, ok = Date("45000")
	if !ok || FormatDate(d) != "2023-03-15" {
		t.Fatalf("excel serial=%v", FormatDate(d))
	}
	if _, ok := Date("soon"); ok {
		t.Fatalf("expected unparseable date")
	}
	f, ok := FilenameDate("PATH_PROSPECTS_PD_PD_DM_031523")
	if !ok || !f.Equal(time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("FilenameDate=%v,%v", f, ok)
	}
	if _, ok := FilenameDate("prospects.csv"); ok {
		t.Fatalf("expected no date")
	}
}

func TestCRMStatus(t *testing.T) {
	t.Parallel()

	if got := CRMStatus("Call-Back, later!"); got != "Call-Back  later " {
		t.Fatalf("CRMStatus=%q", got)
	}
}
