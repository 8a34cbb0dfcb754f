// Package resolve decides which rows denote the same lead and selects one
// survivor per resolution key. It also assigns surrogate identifiers and
// applies opt-out exclusions.
//
// Every resolution site declares its own Policy: the key columns, the
// exemption flag (if any) and an ordered list of survivor preferences. The
// priorities of different sites are intentionally not unified.
package resolve

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"leadetl/internal/normalize"
	"leadetl/internal/table"
)

// Flag marks rows exempt from deduplication: a row is exempt when the value of
// Column equals Value.
type Flag struct {
	Column string
	Value  string
}

// Rank compares two cell values of a preference column. It returns a negative
// number when a is preferred over b, positive when b is preferred, zero on a
// tie.
type Rank func(a, b string) int

// Preference is one survivor-selection criterion.
type Preference struct {
	Column string
	By     Rank
}

// Equals prefers cells equal to v.
func Equals(v string) Rank {
	return func(a, b string) int {
		return boolRank(a == v, b == v)
	}
}

// NonEmpty prefers present values over missing ones.
func NonEmpty(a, b string) int { return boolRank(a != "", b != "") }

// MaxNumber prefers the larger numeric value. Missing or unparseable values
// lose against any number.
func MaxNumber(a, b string) int {
	x, okA := table.ParseFloat(a)
	y, okB := table.ParseFloat(b)
	if r := boolRank(okA, okB); r != 0 || !okA {
		return r
	}
	switch {
	case x > y:
		return -1
	case x < y:
		return 1
	}
	return 0
}

// MaxDate prefers the most recent date. Unparseable values lose.
func MaxDate(a, b string) int {
	x, okA := normalize.Date(a)
	y, okB := normalize.Date(b)
	if r := boolRank(okA, okB); r != 0 || !okA {
		return r
	}
	switch {
	case x.After(y):
		return -1
	case x.Before(y):
		return 1
	}
	return 0
}

// MaxString prefers the lexically larger non-empty value.
func MaxString(a, b string) int {
	if r := boolRank(a != "", b != ""); r != 0 {
		return r
	}
	return -strings.Compare(a, b)
}

func boolRank(a, b bool) int {
	switch {
	case a && !b:
		return -1
	case b && !a:
		return 1
	}
	return 0
}

// Policy declares how one resolution site deduplicates.
type Policy struct {
	// Key columns forming the resolution key.
	Key []string

	// Normalize overrides the per-column key normalization. Columns without an
	// entry use normalize.Key.
	Normalize map[string]func(string) string

	// Exempt rows are always kept and never claim a key.
	Exempt *Flag

	// Prefer orders duplicates; the first row after a stable sort survives.
	// Input order breaks remaining ties.
	Prefer []Preference

	// NameColumns, when NameTolerance > 0, are compared with Levenshtein
	// distance instead of exact equality. They must also appear in Key.
	NameColumns   []string
	NameTolerance int
}

// Dedupe returns the surviving rows (in input order) and the dropped rows.
// Both results carry the columns of t.
func Dedupe(t *table.Table, p Policy) (kept, dropped *table.Table, err error) {
	keyIx, err := t.Indexes(p.Key...)
	if err != nil {
		return nil, nil, err
	}
	prefIx := make([]int, len(p.Prefer))
	for i, pr := range p.Prefer {
		ix, ok := t.Index(pr.Column)
		if !ok {
			return nil, nil, &table.MissingColumnError{Table: t.Name, Column: pr.Column}
		}
		prefIx[i] = ix
	}
	exemptIx := -1
	if p.Exempt != nil {
		ix, ok := t.Index(p.Exempt.Column)
		if !ok {
			return nil, nil, &table.MissingColumnError{Table: t.Name, Column: p.Exempt.Column}
		}
		exemptIx = ix
	}
	fuzzyNames := p.NameTolerance > 0 && len(p.NameColumns) > 0
	isName := make(map[string]bool, len(p.NameColumns))
	if fuzzyNames {
		for _, c := range p.NameColumns {
			isName[c] = true
		}
		if err := t.MustHave(p.NameColumns...); err != nil {
			return nil, nil, err
		}
	}

	order := make([]int, len(t.Rows))
	for i := range order {
		order[i] = i
	}
	if len(p.Prefer) > 0 {
		sort.SliceStable(order, func(i, j int) bool {
			a, b := t.Rows[order[i]].V, t.Rows[order[j]].V
			for k, pr := range p.Prefer {
				if r := pr.By(a[prefIx[k]], b[prefIx[k]]); r != 0 {
					return r < 0
				}
			}
			return false
		})
	}

	survive := make([]bool, len(t.Rows))
	claimed := make(map[string]struct{}, len(t.Rows))
	names := map[string][]string{}
	for _, i := range order {
		v := t.Rows[i].V
		if exemptIx >= 0 && v[exemptIx] == p.Exempt.Value {
			survive[i] = true
			continue
		}
		if !fuzzyNames {
			k := rowKey(v, p.Key, keyIx, p.Normalize, nil)
			if _, dup := claimed[k]; dup {
				continue
			}
			claimed[k] = struct{}{}
			survive[i] = true
			continue
		}
		k := rowKey(v, p.Key, keyIx, p.Normalize, isName)
		name := nameKey(t, t.Rows[i], p.NameColumns)
		if matchesAny(name, names[k], p.NameTolerance) {
			continue
		}
		names[k] = append(names[k], name)
		survive[i] = true
	}

	kept, dropped = t.Empty(), t.Empty()
	for i, r := range t.Rows {
		if survive[i] {
			kept.Rows = append(kept.Rows, r)
		} else {
			dropped.Rows = append(dropped.Rows, r)
		}
	}
	return kept, dropped, nil
}

// Duplicated marks rows whose key occurs more than once in t.
func Duplicated(t *table.Table, key []string, norm map[string]func(string) string) ([]bool, error) {
	ix, err := t.Indexes(key...)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(t.Rows))
	keys := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		keys[i] = rowKey(r.V, key, ix, norm, nil)
		counts[keys[i]]++
	}
	out := make([]bool, len(t.Rows))
	for i, k := range keys {
		out[i] = counts[k] > 1
	}
	return out, nil
}

func rowKey(v []string, cols []string, ix []int, norm map[string]func(string) string, skip map[string]bool) string {
	parts := make([]string, 0, len(cols))
	for i, c := range cols {
		if skip[c] {
			continue
		}
		f := norm[c]
		if f == nil {
			f = normalize.Key
		}
		parts = append(parts, f(v[ix[i]]))
	}
	return table.JoinKey(parts)
}

func nameKey(t *table.Table, r table.Row, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = normalize.Name(t.Get(r, c))
	}
	return strings.Join(parts, " ")
}

func matchesAny(name string, seen []string, tol int) bool {
	for _, s := range seen {
		if s == name || fuzzy.LevenshteinDistance(s, name) <= tol {
			return true
		}
	}
	return false
}
