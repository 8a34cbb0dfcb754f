package gender

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultGuess(t *testing.T) {
	t.Parallel()
	d := Default()
	cases := []struct{ in, want string }{
		{"John", Male},
		{"  mary ", Female},
		{"José", Male},
		{"Kelly", Female},
		{"Taylor", Andy},
		{"Zyxwq", Unknown},
		{"Mary Ann", Female},
		{"", ""},
	}
	for _, tc := range cases {
		if got := d.Guess(tc.in); got != tc.want {
			t.Fatalf("Guess(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "names.csv")
	if err := os.WriteFile(p, []byte("name,gender\nZoe,mostly_female\nbad\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Len() != 1 || d.Guess("zoe") != Female || d.Guess("john") != Unknown {
		t.Fatalf("unexpected detector state: len=%d", d.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil || !strings.Contains(err.Error(), "gender: open") {
		t.Fatalf("want open error, got %v", err)
	}
}
