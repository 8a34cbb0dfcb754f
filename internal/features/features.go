// Package features maps working columns to the final feature vocabulary and
// fixes the output column order.
package features

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"leadetl/internal/table"
)

// Prefixes of the feature vocabulary.
const (
	PrefixFirstParty = "input_feature_pd_"
	PrefixThirdParty = "input_feature_3rdParty_"
)

// Label columns exempt from the naming convention.
const (
	LabelTarget          = "target"
	LabelTemporaryTarget = "temporary_target"
)

var featureName = regexp.MustCompile(`^input_feature_(pd|3rdParty)_\w`)

//go:embed output_schema.yaml
var defaultSchema []byte

// Field is one output column.
type Field struct {
	Name     string `yaml:"name"`
	Source   string `yaml:"source"`
	Default  string `yaml:"default"`
	Optional bool   `yaml:"optional"`
}

// Schema is the ordered output layout.
type Schema struct {
	Fields []Field `yaml:"fields"`
}

// DefaultSchema returns the built-in output layout.
func DefaultSchema() Schema {
	s, err := ReadSchema(bytes.NewReader(defaultSchema))
	if err != nil {
		panic(fmt.Sprintf("features: built-in schema: %v", err))
	}
	return s
}

// ReadSchema decodes a YAML layout and checks its output names.
func ReadSchema(r io.Reader) (Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Schema{}, fmt.Errorf("features: decode schema: %w", err)
	}
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		if f.Source == "" {
			return Schema{}, fmt.Errorf("features: field %q has no source", f.Name)
		}
		names[i] = f.Name
	}
	if err := CheckNames(names); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Names lists the output columns in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Project builds the output table: one column per field in declared order.
// Absent optional sources and empty cells take the field default. A missing
// required source is a *table.MissingColumnError.
func Project(t *table.Table, s Schema) (*table.Table, error) {
	src := make([]int, len(s.Fields))
	for i, f := range s.Fields {
		ix, ok := t.Index(f.Source)
		if !ok {
			if !f.Optional {
				return nil, &table.MissingColumnError{Table: t.Name, Column: f.Source}
			}
			ix = -1
		}
		src[i] = ix
	}
	out := table.New(t.Name, s.Names()...)
	out.Rows = make([]table.Row, len(t.Rows))
	for ri, r := range t.Rows {
		v := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			if src[i] >= 0 {
				v[i] = r.V[src[i]]
			}
			if v[i] == "" {
				v[i] = f.Default
			}
		}
		out.Rows[ri] = table.Row{V: v, Line: r.Line}
	}
	return out, nil
}

// NameError reports a column outside the feature vocabulary.
type NameError struct {
	Column    string
	Duplicate bool
}

func (e *NameError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("features: duplicate column %q", e.Column)
	}
	return fmt.Sprintf("features: column %q does not follow input_feature_<pd|3rdParty>_<name>", e.Column)
}

// CheckNames verifies the naming convention and uniqueness.
func CheckNames(cols []string) error {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, dup := seen[c]; dup {
			return &NameError{Column: c, Duplicate: true}
		}
		seen[c] = struct{}{}
		if c == LabelTarget || c == LabelTemporaryTarget {
			continue
		}
		if !featureName.MatchString(c) {
			return &NameError{Column: c}
		}
	}
	return nil
}

// PrefixColumns prepends prefix to every column except the listed ones and
// those already carrying it.
func PrefixColumns(t *table.Table, prefix string, except ...string) error {
	skip := make(map[string]bool, len(except))
	for _, c := range except {
		skip[c] = true
	}
	m := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		if skip[c] || strings.HasPrefix(c, prefix) {
			continue
		}
		m[c] = prefix + c
	}
	return t.Rename(m)
}
