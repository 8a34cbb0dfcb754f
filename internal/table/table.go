// Package table provides the uniform in-memory tabular representation shared by
// every stage of the lead pipeline.
//
// A Table is a named list of columns and positional rows. Cells are strings; a
// missing value is the empty string. Numeric cells are kept as canonical
// decimal strings so that snapshots round-trip without type drift.
package table

import (
	"fmt"
	"sort"
)

// Row is a positional row aligned to Table.Columns.
type Row struct {
	V    []string
	Line int // 1-based source record number, 0 when derived
}

// Table is a named set of rows with a fixed column order.
//
// Tables are not safe for concurrent mutation. Stages own the tables they build
// and hand them to the next stage through the snapshot store.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row

	index map[string]int
}

// New creates an empty table with the given columns.
func New(name string, columns ...string) *Table {
	t := &Table{Name: name, Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

// FromRecords builds a table from a header and raw records. Short records are
// padded with empty cells, long records are truncated to the header width.
func FromRecords(name string, header []string, records [][]string) (*Table, error) {
	t := New(name, header...)
	if len(t.index) != len(t.Columns) {
		return nil, &DuplicateColumnError{Table: name, Column: firstDuplicate(t.Columns)}
	}
	t.Rows = make([]Row, 0, len(records))
	for i, rec := range records {
		t.Rows = append(t.Rows, Row{V: fit(rec, len(header)), Line: i + 1})
	}
	return t, nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column c.
func (t *Table) Index(c string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[c]
	return i, ok
}

// Has reports whether column c exists.
func (t *Table) Has(c string) bool {
	_, ok := t.Index(c)
	return ok
}

// MustHave returns a *MissingColumnError for the first absent column.
func (t *Table) MustHave(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return &MissingColumnError{Table: t.Name, Column: c}
		}
	}
	return nil
}

// Indexes resolves several columns at once.
func (t *Table) Indexes(cols ...string) ([]int, error) {
	out := make([]int, len(cols))
	for i, c := range cols {
		ix, ok := t.Index(c)
		if !ok {
			return nil, &MissingColumnError{Table: t.Name, Column: c}
		}
		out[i] = ix
	}
	return out, nil
}

// Append adds a row. Values are padded or truncated to the column count.
func (t *Table) Append(values ...string) {
	t.Rows = append(t.Rows, Row{V: fit(values, len(t.Columns)), Line: len(t.Rows) + 1})
}

// Get returns the value of column c in row r, or "" if c is absent.
func (t *Table) Get(r Row, c string) string {
	ix, ok := t.Index(c)
	if !ok || ix >= len(r.V) {
		return ""
	}
	return r.V[ix]
}

// Column returns a copy of all values of column c.
func (t *Table) Column(c string) ([]string, error) {
	ix, ok := t.Index(c)
	if !ok {
		return nil, &MissingColumnError{Table: t.Name, Column: c}
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.V[ix]
	}
	return out, nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := New(t.Name, t.Columns...)
	c.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		c.Rows[i] = Row{V: append([]string(nil), r.V...), Line: r.Line}
	}
	return c
}

// Empty returns a table with the same columns and no rows.
func (t *Table) Empty() *Table {
	return New(t.Name, t.Columns...)
}

// Rename renames columns in place. Absent source columns are ignored.
func (t *Table) Rename(m map[string]string) error {
	next := append([]string(nil), t.Columns...)
	for i, c := range next {
		if to, ok := m[c]; ok {
			next[i] = to
		}
	}
	seen := make(map[string]struct{}, len(next))
	for _, c := range next {
		if _, dup := seen[c]; dup {
			return &DuplicateColumnError{Table: t.Name, Column: c}
		}
		seen[c] = struct{}{}
	}
	t.Columns = next
	t.reindex()
	return nil
}

// Drop removes the named columns. Absent columns are ignored.
func (t *Table) Drop(cols ...string) {
	drop := make(map[int]struct{}, len(cols))
	for _, c := range cols {
		if ix, ok := t.Index(c); ok {
			drop[ix] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return
	}
	keep := make([]int, 0, len(t.Columns)-len(drop))
	for i := range t.Columns {
		if _, ok := drop[i]; !ok {
			keep = append(keep, i)
		}
	}
	t.project(keep)
}

// Select keeps exactly cols, in that order. Every column must exist.
func (t *Table) Select(cols ...string) error {
	ixs, err := t.Indexes(cols...)
	if err != nil {
		return err
	}
	t.project(ixs)
	return nil
}

// Reindex keeps exactly cols, in that order, creating absent ones empty.
func (t *Table) Reindex(cols ...string) {
	for _, c := range cols {
		if !t.Has(c) {
			t.AddColumn(c, "")
		}
	}
	_ = t.Select(cols...)
}

func (t *Table) project(ixs []int) {
	cols := make([]string, len(ixs))
	for i, ix := range ixs {
		cols[i] = t.Columns[ix]
	}
	for ri := range t.Rows {
		v := make([]string, len(ixs))
		for i, ix := range ixs {
			v[i] = t.Rows[ri].V[ix]
		}
		t.Rows[ri].V = v
	}
	t.Columns = cols
	t.reindex()
}

// AddColumn appends column c filled with fill. If c exists it is overwritten.
func (t *Table) AddColumn(c, fill string) {
	t.SetColumn(c, func(Row) string { return fill })
}

// SetColumn derives column c for every row. If c exists it is overwritten,
// otherwise it is appended. fn observes the row before the assignment.
func (t *Table) SetColumn(c string, fn func(Row) string) {
	ix, ok := t.Index(c)
	if !ok {
		t.Columns = append(t.Columns, c)
		ix = len(t.Columns) - 1
		t.index[c] = ix
		for i := range t.Rows {
			t.Rows[i].V = append(t.Rows[i].V, "")
		}
	}
	for i := range t.Rows {
		t.Rows[i].V[ix] = fn(t.Rows[i])
	}
}

// Map rewrites the values of an existing column.
func (t *Table) Map(c string, fn func(string) string) error {
	ix, ok := t.Index(c)
	if !ok {
		return &MissingColumnError{Table: t.Name, Column: c}
	}
	for i := range t.Rows {
		t.Rows[i].V[ix] = fn(t.Rows[i].V[ix])
	}
	return nil
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) {
	out := t.Rows[:0]
	for _, r := range t.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	t.Rows = out
}

// Partition splits t into rows matching pred and the rest. Both results own
// copies of their rows; t is not modified.
func (t *Table) Partition(pred func(Row) bool) (in, out *Table) {
	in, out = t.Empty(), t.Empty()
	for _, r := range t.Rows {
		r = Row{V: append([]string(nil), r.V...), Line: r.Line}
		if pred(r) {
			in.Rows = append(in.Rows, r)
		} else {
			out.Rows = append(out.Rows, r)
		}
	}
	return in, out
}

// SortStable sorts rows in place, keeping input order for ties.
func (t *Table) SortStable(less func(a, b Row) bool) {
	sort.SliceStable(t.Rows, func(i, j int) bool { return less(t.Rows[i], t.Rows[j]) })
}

// Distinct drops exact duplicate rows, keeping the first occurrence.
func (t *Table) Distinct() {
	seen := make(map[string]struct{}, len(t.Rows))
	t.Filter(func(r Row) bool {
		k := JoinKey(r.V)
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}

// Concat stacks tables vertically. The result has the union of columns in
// first-seen order; cells for columns a table lacks are empty.
func Concat(name string, tables ...*Table) *Table {
	out := New(name)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if !out.Has(c) {
				out.Columns = append(out.Columns, c)
				out.index[c] = len(out.Columns) - 1
			}
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		pos := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			pos[i], _ = out.Index(c)
		}
		for _, r := range t.Rows {
			v := make([]string, len(out.Columns))
			for i, p := range pos {
				v[p] = r.V[i]
			}
			out.Rows = append(out.Rows, Row{V: v, Line: r.Line})
		}
	}
	return out
}

// JoinKey encodes a tuple of values as a single map key.
func JoinKey(vals []string) string {
	n := 0
	for _, v := range vals {
		n += len(v) + 1
	}
	b := make([]byte, 0, n)
	for i, v := range vals {
		if i > 0 {
			b = append(b, 0x1f)
		}
		b = append(b, v...)
	}
	return string(b)
}

func fit(v []string, n int) []string {
	out := make([]string, n)
	copy(out, v)
	return out
}

func firstDuplicate(cols []string) string {
	seen := map[string]struct{}{}
	for _, c := range cols {
		if _, ok := seen[c]; ok {
			return c
		}
		seen[c] = struct{}{}
	}
	return ""
}

// String is used in logs.
func (t *Table) String() string {
	return fmt.Sprintf("%s(%d rows x %d cols)", t.Name, len(t.Rows), len(t.Columns))
}
