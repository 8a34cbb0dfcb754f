// Package gender guesses a lead's gender from a first name using a name
// dictionary. The built-in dictionary is small; production runs point
// PATH_GENDER_NAMES at a full name list with the same two-column layout.
package gender

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"leadetl/internal/normalize"
)

// Values emitted by Detector.Guess.
const (
	Male    = "male"
	Female  = "female"
	Andy    = "andy"
	Unknown = "unknown"
)

//go:embed names.csv
var builtin []byte

// Detector maps upper-cased first names to a gender value.
type Detector struct {
	names map[string]string
}

// Default returns a detector backed by the built-in dictionary.
func Default() *Detector {
	d, err := Read(bytes.NewReader(builtin))
	if err != nil {
		panic(fmt.Sprintf("gender: built-in dictionary: %v", err))
	}
	return d
}

// Load reads a dictionary file. The first row is a header; the first column
// is the name and the second the gender.
func Load(path string) (*Detector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gender: open %s: %w", path, err)
	}
	defer f.Close()
	d, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("gender: %s: %w", path, err)
	}
	return d, nil
}

// Read parses a dictionary from r.
func Read(r io.Reader) (*Detector, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	d := &Detector{names: make(map[string]string, len(recs))}
	for i, rec := range recs {
		if i == 0 || len(rec) < 2 {
			continue
		}
		name := normalize.Name(rec[0])
		if name == "" {
			continue
		}
		d.names[name] = fold(rec[1])
	}
	return d, nil
}

// Guess returns male, female, andy or unknown. "mostly" answers are folded
// into the plain value. An empty name yields "" (missing).
func (d *Detector) Guess(first string) string {
	name := normalize.Name(first)
	if name == "" {
		return ""
	}
	// Compound first names ("MARY ANN") fall back to the first word.
	if g, ok := d.names[name]; ok {
		return g
	}
	if head, _, ok := strings.Cut(name, " "); ok {
		if g, ok := d.names[head]; ok {
			return g
		}
	}
	return Unknown
}

// Len reports the dictionary size.
func (d *Detector) Len() int { return len(d.names) }

func fold(g string) string {
	switch g = strings.ToLower(strings.TrimSpace(g)); g {
	case "mostly_male", Male:
		return Male
	case "mostly_female", Female:
		return Female
	case Andy:
		return Andy
	default:
		return Unknown
	}
}
