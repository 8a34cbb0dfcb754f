package resolve

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadetl/internal/table"
)

func optOutList(rows ...[]string) *table.Table {
	t := table.New("optout", "Reference ID", "First Name", "Last Name", "Address", "City", "State")
	for _, r := range rows {
		t.Append(r...)
	}
	return t
}

func TestOptOut_ReferenceIDShrinksByOne(t *testing.T) {
	t.Parallel()
	pdr := table.New("pdr", "DM Reference ID", "First Name")
	pdr.Append("39407-68469-A", "ANN")
	pdr.Append("1234567890", "BOB")
	pdr.Append("", "CARL")

	o, err := ParseOptOut(optOutList([]string{"3940768469", "", "", "", "", ""}))
	require.NoError(t, err)

	kept, excluded, err := o.ExcludeByID(pdr, "DM Reference ID")
	require.NoError(t, err)
	assert.Equal(t, pdr.Len()-1, kept.Len())
	require.Equal(t, 1, excluded.Len())
	assert.Equal(t, "ANN", excluded.Get(excluded.Rows[0], "First Name"))
}

func TestOptOut_TupleMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	prospects := table.New("prospects", "First Name", "Last Name", "City", "State")
	prospects.Append("Ann", "Lee", "boston", "MA")
	prospects.Append("ANN", "LEE", "Denver", "CO")

	list := optOutList(
		[]string{"", "ann", "lee", "1 main st", "Boston", "MA"},
		[]string{"", "", "", "", "", ""},
	)
	withID, withoutID, err := SplitOptOut(list)
	require.NoError(t, err)
	assert.Equal(t, 0, withID.Len())
	assert.Equal(t, "1 MAIN ST", withoutID.Get(withoutID.Rows[0], "Address"))

	o, err := NewOptOut(withID, withoutID)
	require.NoError(t, err)
	ids, tuples := o.Len()
	assert.Equal(t, 0, ids)
	assert.Equal(t, 1, tuples)

	kept, excluded, err := o.ExcludeByTuple(prospects, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, kept.Len())
	assert.Equal(t, "Denver", kept.Get(kept.Rows[0], "City"))
	assert.Equal(t, 1, excluded.Len())
}

func TestOptOut_Monotonic(t *testing.T) {
	t.Parallel()
	f := gofakeit.New(7)
	leads := table.New("leads", "DM Reference ID", "First Name", "Last Name", "City", "State")
	for i := 0; i < 200; i++ {
		leads.Append(f.Numerify("##########"), f.FirstName(), f.LastName(), f.City(), f.StateAbr())
	}

	small := optOutList()
	for i := 0; i < 20; i++ {
		r := leads.Rows[f.Number(0, leads.Len()-1)]
		if i%2 == 0 {
			small.Append(leads.Get(r, "DM Reference ID"))
		} else {
			small.Append("", leads.Get(r, "First Name"), leads.Get(r, "Last Name"), "", leads.Get(r, "City"), leads.Get(r, "State"))
		}
	}
	large := small.Clone()
	for i := 0; i < 30; i++ {
		r := leads.Rows[f.Number(0, leads.Len()-1)]
		large.Append(leads.Get(r, "DM Reference ID"))
	}

	excludedBy := func(list *table.Table) map[string]bool {
		o, err := ParseOptOut(list)
		require.NoError(t, err)
		kept, byID, err := o.ExcludeByID(leads, "DM Reference ID")
		require.NoError(t, err)
		_, byTuple, err := o.ExcludeByTuple(kept, []string{"First Name", "Last Name", "City", "State"})
		require.NoError(t, err)
		out := map[string]bool{}
		for _, tb := range []*table.Table{byID, byTuple} {
			for _, r := range tb.Rows {
				out[tb.Get(r, "DM Reference ID")] = true
			}
		}
		return out
	}

	a, b := excludedBy(small), excludedBy(large)
	assert.NotEmpty(t, a)
	for id := range a {
		assert.True(t, b[id], "lead %s excluded by the smaller list but not the larger", id)
	}
}

func TestOptOut_MissingColumn(t *testing.T) {
	t.Parallel()
	_, err := ParseOptOut(table.New("bad", "First Name"))
	var mc *table.MissingColumnError
	require.ErrorAs(t, err, &mc)
}

func TestOptOut_InvalidReferenceIDFallsBackToTuple(t *testing.T) {
	t.Parallel()
	list := optOutList(
		[]string{"12345", "Jane", "Doe", "1 Main St", "Boston", "MA"},
		[]string{"39407-6846", "Rob", "Roe", "", "Albany", "NY"},
		[]string{"39407-68469-A", "Ann", "Lee", "", "Denver", "CO"},
	)
	withID, withoutID, err := SplitOptOut(list)
	require.NoError(t, err)
	require.Equal(t, 1, withID.Len())
	assert.Equal(t, "39407-68469-A", withID.Get(withID.Rows[0], "Reference ID"))
	require.Equal(t, 2, withoutID.Len())
	assert.Equal(t, "JANE", withoutID.Get(withoutID.Rows[0], "First Name"))
	assert.Equal(t, "1 MAIN ST", withoutID.Get(withoutID.Rows[0], "Address"))

	o, err := NewOptOut(withID, withoutID)
	require.NoError(t, err)
	ids, tuples := o.Len()
	assert.Equal(t, 1, ids)
	assert.Equal(t, 2, tuples)

	prospects := table.New("prospects", "First Name", "Last Name", "City", "State")
	prospects.Append("JANE", "DOE", "BOSTON", "MA")
	prospects.Append("Rob", "Roe", "Albany", "NY")
	prospects.Append("Kim", "Poe", "Boston", "MA")
	kept, excluded, err := o.ExcludeByTuple(prospects, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, excluded.Len())
	require.Equal(t, 1, kept.Len())
	assert.Equal(t, "Kim", kept.Get(kept.Rows[0], "First Name"))
}

func TestSplitOptOut_AddressIsOptional(t *testing.T) {
	t.Parallel()
	list := table.New("optout", "Reference ID", "First Name", "Last Name", "City", "State")
	list.Append("", "ann", "lee", "boston", "MA")
	_, withoutID, err := SplitOptOut(list)
	require.NoError(t, err)
	assert.Equal(t, "ANN", withoutID.Get(withoutID.Rows[0], "First Name"))

	_, _, err = SplitOptOut(table.New("optout", "Reference ID", "First Name", "Last Name", "State"))
	var mc *table.MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "City", mc.Column)
}
