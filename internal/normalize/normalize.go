// Package normalize canonicalizes the noisy identifier-like fields found in
// lead extracts: reference ids, zip codes, phone numbers, names and amounts.
//
// Every function is pure and idempotent: applying it to its own output returns
// the same value. Inputs that cannot be normalized map to "" (and false where a
// validity flag is returned) so callers can drop the row instead of failing.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RefIDLength is the fixed length of a valid reference identifier.
const RefIDLength = 10

var (
	urlTail   = regexp.MustCompile(`.*/([^/]+)$`)
	crmPunct  = regexp.MustCompile(`[^\w\s-]`)
	spaceRun  = regexp.MustCompile(`\s+`)
	debtNoise = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "")
)

// Digits keeps only ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Letters keeps only ASCII letters.
func Letters(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// URLSlug returns the last path segment of a personalized URL
// ("www.pdoffer.com/Sharon94954" -> "Sharon94954"). Values without a slash are
// returned unchanged.
func URLSlug(s string) string {
	return urlTail.ReplaceAllString(strings.TrimSpace(s), "$1")
}

// RefID canonicalizes a reference identifier: URL slug, then digits only. The
// result is valid only when it has exactly RefIDLength digits.
//
//	"39407-68469-A" -> "3940768469", true
func RefID(s string) (string, bool) {
	d := Digits(URLSlug(s))
	if len(d) != RefIDLength {
		return "", false
	}
	return d, true
}

// MailNumber derives how many mailings a lead received from the letter suffix
// of its reference id: A=1, B=2, and so on. No letter means 0.
func MailNumber(ref string) int {
	l := Letters(ref)
	if l == "" {
		return 0
	}
	c := unicode.ToUpper(rune(l[len(l)-1]))
	return int(c-'A') + 1
}

// Zip keeps the digits of a zip code so that "02585-2345" and "025852345"
// compare equal.
func Zip(s string) string {
	return Digits(s)
}

// SplitZip splits a zip code into its 5-digit and 4-digit parts. Values of one
// to five digits are a bare zip5 (zero padded, empty zip4); six to nine digits
// are left padded to nine and split. Anything else is invalid.
func SplitZip(s string) (zip5, zip4 string) {
	d := Digits(integral(s))
	switch {
	case d == "":
		return "", ""
	case len(d) <= 5:
		return pad(d, 5), ""
	case len(d) <= 9:
		d = pad(d, 9)
		return d[:5], d[5:]
	default:
		return "", ""
	}
}

// Zip5 renders a 5-digit zip from a value that may have lost its leading zeros
// or gained a decimal suffix ("501", "501.0" -> "00501").
func Zip5(s string) string {
	d := Digits(integral(s))
	if d == "" || len(d) > 5 {
		return d
	}
	return pad(d, 5)
}

// Zip4 renders the 4-digit extension, zero padded.
func Zip4(s string) string {
	d := Digits(integral(s))
	if d == "" || len(d) > 4 {
		return d
	}
	return pad(d, 4)
}

// Phone applies the caller-id rules: digits only, 3-digit internal extensions
// rejected, 11-digit numbers lose the leading country digit, shorter numbers
// are left padded to 10. Only 10-digit results are valid.
func Phone(s string) (string, bool) {
	d := Digits(integral(s))
	switch len(d) {
	case 0, 3:
		return "", false
	case 11:
		d = d[1:]
	}
	if len(d) < 10 {
		d = pad(d, 10)
	}
	if len(d) != 10 {
		return "", false
	}
	return d, true
}

// Name upper-cases, strips accents and collapses whitespace.
func Name(s string) string {
	if s == "" {
		return ""
	}
	// Chains carry state, so one is built per call.
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(strip, s)
	if err != nil {
		out = s
	}
	return Key(out)
}

// Key is the normalization applied to every resolution key component.
func Key(s string) string {
	return strings.ToUpper(strings.TrimSpace(spaceRun.ReplaceAllString(s, " ")))
}

// Debt canonicalizes a monetary amount ("$5,000.00" -> "5000").
func Debt(s string) (string, bool) {
	c := debtNoise.Replace(strings.TrimSpace(s))
	if c == "" {
		return "", false
	}
	d, err := decimal.NewFromString(c)
	if err != nil {
		return "", false
	}
	return d.String(), true
}

// DebtKey is Debt for key building: invalid amounts fall back to Key(s).
func DebtKey(s string) string {
	if d, ok := Debt(s); ok {
		return d
	}
	return Key(s)
}

// CRMStatus replaces punctuation other than '-' with a space.
func CRMStatus(s string) string {
	return crmPunct.ReplaceAllString(s, " ")
}

func pad(d string, n int) string {
	if len(d) >= n {
		return d
	}
	return strings.Repeat("0", n-len(d)) + d
}

// integral drops a ".0" style suffix that spreadsheets add to numeric cells.
func integral(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i > 0 && strings.Trim(s[i+1:], "0") == "" && Digits(s[:i]) == s[:i] {
		return s[:i]
	}
	return s
}
