package table

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ParseFloat parses a numeric cell. Empty, "nan" and non-numeric cells are not
// numbers.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatFloat renders f in the shortest exact decimal form.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NumericColumns returns the columns whose non-empty cells all parse as
// numbers. Columns with no values at all are not numeric.
func (t *Table) NumericColumns(exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, c := range exclude {
		skip[c] = struct{}{}
	}
	var out []string
	for ci, c := range t.Columns {
		if _, ok := skip[c]; ok {
			continue
		}
		seen, numeric := false, true
		for _, r := range t.Rows {
			v := r.V[ci]
			if v == "" {
				continue
			}
			seen = true
			if _, ok := ParseFloat(v); !ok {
				numeric = false
				break
			}
		}
		if seen && numeric {
			out = append(out, c)
		}
	}
	return out
}

// GroupMean aggregates rows by key and averages cols. Cells that are empty or
// not numeric are ignored; a group with no numeric cell in a column yields an
// empty cell. Rows with an empty key are dropped. Output rows are sorted by key.
func (t *Table) GroupMean(key string, cols []string) (*Table, error) {
	kix, ok := t.Index(key)
	if !ok {
		return nil, &MissingColumnError{Table: t.Name, Column: key}
	}
	cix, err := t.Indexes(cols...)
	if err != nil {
		return nil, err
	}

	type acc struct {
		sum []float64
		n   []int
	}
	groups := map[string]*acc{}
	var keys []string
	for _, r := range t.Rows {
		k := r.V[kix]
		if k == "" {
			continue
		}
		g, ok := groups[k]
		if !ok {
			g = &acc{sum: make([]float64, len(cols)), n: make([]int, len(cols))}
			groups[k] = g
			keys = append(keys, k)
		}
		for i, ix := range cix {
			if f, ok := ParseFloat(r.V[ix]); ok {
				g.sum[i] += f
				g.n[i]++
			}
		}
	}
	sort.Strings(keys)

	out := New(t.Name, append([]string{key}, cols...)...)
	for _, k := range keys {
		g := groups[k]
		v := make([]string, 0, len(cols)+1)
		v = append(v, k)
		for i := range cols {
			if g.n[i] == 0 {
				v = append(v, "")
				continue
			}
			v = append(v, FormatFloat(g.sum[i]/float64(g.n[i])))
		}
		out.Append(v...)
	}
	return out, nil
}

// CountBy returns, for every row, how many rows share its value in column c.
func (t *Table) CountBy(c string) ([]int, error) {
	ix, ok := t.Index(c)
	if !ok {
		return nil, &MissingColumnError{Table: t.Name, Column: c}
	}
	counts := make(map[string]int, len(t.Rows))
	for _, r := range t.Rows {
		counts[r.V[ix]]++
	}
	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = counts[r.V[ix]]
	}
	return out, nil
}
