package resolve

import (
	"leadetl/internal/normalize"
	"leadetl/internal/table"
)

// Opt-out list layout.
const OptOutRefColumn = "Reference ID"

// OptOutTuple is the fallback match key for opt-out records without a
// reference id, in match order.
var OptOutTuple = []string{"First Name", "Last Name", "City", "State"}

// OptOut holds the exclusion keys built from an opt-out list. Matching a
// record by either key removes it; exclusion never shrinks when the list
// grows.
type OptOut struct {
	ids    map[string]struct{}
	tuples map[string]struct{}
}

// SplitOptOut separates opt-out rows carrying a valid reference id from the
// rest. A present but invalid id counts as absent, so that row falls back to
// the tuple match. The no-id part has its name and address columns
// upper-cased; Address is the only optional column.
func SplitOptOut(t *table.Table) (withID, withoutID *table.Table, err error) {
	ix, ok := t.Index(OptOutRefColumn)
	if !ok {
		return nil, nil, &table.MissingColumnError{Table: t.Name, Column: OptOutRefColumn}
	}
	if err := t.MustHave(OptOutTuple...); err != nil {
		return nil, nil, err
	}
	withID, withoutID = t.Partition(func(r table.Row) bool {
		_, valid := normalize.RefID(r.V[ix])
		return valid
	})
	for _, c := range []string{"Address", "First Name", "Last Name", "City"} {
		if withoutID.Has(c) {
			_ = withoutID.Map(c, normalize.Key)
		}
	}
	return withID, withoutID, nil
}

// NewOptOut builds the exclusion keys. withID must carry OptOutRefColumn and
// withoutID the OptOutTuple columns; either may be nil.
func NewOptOut(withID, withoutID *table.Table) (*OptOut, error) {
	o := &OptOut{ids: map[string]struct{}{}, tuples: map[string]struct{}{}}
	if withID != nil {
		ids, err := withID.Column(OptOutRefColumn)
		if err != nil {
			return nil, err
		}
		for _, v := range ids {
			if id, ok := normalize.RefID(v); ok {
				o.ids[id] = struct{}{}
			}
		}
	}
	if withoutID != nil {
		ix, err := withoutID.Indexes(OptOutTuple...)
		if err != nil {
			return nil, err
		}
		blank := table.JoinKey(make([]string, len(ix)))
		for _, r := range withoutID.Rows {
			if k := tupleKey(r.V, ix); k != blank {
				o.tuples[k] = struct{}{}
			}
		}
	}
	return o, nil
}

// ParseOptOut splits an opt-out list and builds its exclusion keys.
func ParseOptOut(t *table.Table) (*OptOut, error) {
	withID, withoutID, err := SplitOptOut(t)
	if err != nil {
		return nil, err
	}
	return NewOptOut(withID, withoutID)
}

// Len returns the number of distinct ids and tuples.
func (o *OptOut) Len() (ids, tuples int) { return len(o.ids), len(o.tuples) }

// ExcludeByID removes rows whose normalized reference id in col is on the
// list. Rows without a valid id are kept.
func (o *OptOut) ExcludeByID(t *table.Table, col string) (kept, excluded *table.Table, err error) {
	ix, ok := t.Index(col)
	if !ok {
		return nil, nil, &table.MissingColumnError{Table: t.Name, Column: col}
	}
	excluded, kept = t.Partition(func(r table.Row) bool {
		id, ok := normalize.RefID(r.V[ix])
		if !ok {
			return false
		}
		_, hit := o.ids[id]
		return hit
	})
	return kept, excluded, nil
}

// ExcludeByTuple removes rows whose (first, last, city, state) tuple is on
// the list. cols names those four columns in t, in OptOutTuple order.
func (o *OptOut) ExcludeByTuple(t *table.Table, cols []string) (kept, excluded *table.Table, err error) {
	if cols == nil {
		cols = OptOutTuple
	}
	ix, err := t.Indexes(cols...)
	if err != nil {
		return nil, nil, err
	}
	excluded, kept = t.Partition(func(r table.Row) bool {
		_, hit := o.tuples[tupleKey(r.V, ix)]
		return hit
	})
	return kept, excluded, nil
}

func tupleKey(v []string, ix []int) string {
	parts := make([]string, len(ix))
	for i, p := range ix {
		parts[i] = normalize.Key(v[p])
	}
	return table.JoinKey(parts)
}
