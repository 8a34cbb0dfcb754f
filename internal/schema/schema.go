// Package schema declares the column contract of each stage boundary.
//
// A Schema maps canonical column names to semantic types. Validate fails loudly
// with a typed error instead of letting a missing or malformed column flow into
// later joins as silently empty data.
package schema

import (
	"fmt"
	"strings"

	"leadetl/internal/normalize"
	"leadetl/internal/table"
)

// Type is the semantic type of a column.
type Type int

const (
	String  Type = iota // any value
	Digits              // ASCII digits only
	RefID               // exactly 10 digits
	Zip5                // exactly 5 digits
	Zip4                // exactly 4 digits
	Decimal             // number accepted by normalize.Debt
	Date                // value accepted by normalize.Date
	Phone               // exactly 10 digits
	UUID                // canonical 36 character uuid
)

var typeNames = map[Type]string{
	String:  "string",
	Digits:  "digits",
	RefID:   "ref_id",
	Zip5:    "zip5",
	Zip4:    "zip4",
	Decimal: "decimal",
	Date:    "date",
	Phone:   "phone",
	UUID:    "uuid",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Field is one declared column. Empty cells are always allowed; an Optional
// field may be absent from the table.
type Field struct {
	Name     string
	Type     Type
	Optional bool
}

// Schema is an ordered set of fields.
type Schema struct {
	Name   string
	Fields []Field
}

// TypeError reports a cell that does not conform to its declared type.
type TypeError struct {
	Schema string
	Column string
	Line   int
	Value  string
	Want   Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("schema %s: column %q line %d: value %q is not %s", e.Schema, e.Column, e.Line, e.Value, e.Want)
}

// Validate checks that every non-optional field exists and that every
// non-empty cell of a declared field conforms to its type. The first violation
// is returned: *table.MissingColumnError or *TypeError.
func (s Schema) Validate(t *table.Table) error {
	for _, f := range s.Fields {
		ix, ok := t.Index(f.Name)
		if !ok {
			if f.Optional {
				continue
			}
			return &table.MissingColumnError{Table: t.Name, Column: f.Name}
		}
		if f.Type == String {
			continue
		}
		for _, r := range t.Rows {
			v := r.V[ix]
			if v == "" || Conforms(f.Type, v) {
				continue
			}
			return &TypeError{Schema: s.Name, Column: f.Name, Line: r.Line, Value: v, Want: f.Type}
		}
	}
	return nil
}

// Columns returns the declared column names in order.
func (s Schema) Columns() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Conforms reports whether v is a valid value of type t.
func Conforms(t Type, v string) bool {
	switch t {
	case String:
		return true
	case Digits:
		return normalize.Digits(v) == v
	case RefID:
		return len(v) == normalize.RefIDLength && normalize.Digits(v) == v
	case Zip5:
		return len(v) == 5 && normalize.Digits(v) == v
	case Zip4:
		return len(v) == 4 && normalize.Digits(v) == v
	case Decimal:
		_, ok := normalize.Debt(v)
		return ok
	case Date:
		_, ok := normalize.Date(v)
		return ok
	case Phone:
		return len(v) == 10 && normalize.Digits(v) == v
	case UUID:
		return len(v) == 36 && strings.Count(v, "-") == 4
	default:
		return false
	}
}
