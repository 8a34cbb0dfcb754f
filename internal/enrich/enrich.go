// Package enrich builds the third-party enrichment tables joined into the
// final feature table: Debt in America (per zip), census deluxe (per zip) and
// the Federal Reserve Bank of Philadelphia state statistics (per state).
//
// Builders are pure: callers load the source tables and pass them in. Every
// builder returns a table keyed by one of the first-party feature columns.
package enrich

import (
	"fmt"

	"leadetl/internal/merge"
	"leadetl/internal/table"
)

// Join keys of the enrichment tables, named after the feature columns they
// attach to.
const (
	KeyZip1  = "input_feature_pd_customer_zip1"
	KeyState = "input_feature_pd_customer_state"
)

// Mode selects which enrichment datasets are joined.
type Mode int

const (
	ModeDebtInAmerica Mode = 1
	ModeCensusDeluxe  Mode = 2
	ModeFedReserve    Mode = 3
	ModeDebtAndFed    Mode = 4
)

// Valid reports whether m is one of the four modes.
func (m Mode) Valid() bool { return m >= ModeDebtInAmerica && m <= ModeDebtAndFed }

func (m Mode) String() string {
	switch m {
	case ModeDebtInAmerica:
		return "debt-in-america"
	case ModeCensusDeluxe:
		return "census-deluxe"
	case ModeFedReserve:
		return "federal-reserve"
	case ModeDebtAndFed:
		return "debt-in-america+federal-reserve"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Dataset is a built enrichment table and the column it joins on.
type Dataset struct {
	Table *table.Table
	Key   string
}

// Attach left joins d into final. The enrichment side is reduced to one row
// per key so the lead count never changes; shared columns keep the final
// table's values.
func Attach(final *table.Table, d Dataset) (*table.Table, error) {
	out, err := merge.Join(final, d.Table, merge.Spec{
		On:          []string{d.Key},
		Kind:        merge.Left,
		RightUnique: merge.KeepFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: attach %s on %s: %w", d.Table.Name, d.Key, err)
	}
	return out, nil
}

// chain left joins tables on key in order, left side winning shared columns.
func chain(name, key string, keep merge.Keep, tables ...*table.Table) (*table.Table, error) {
	out := tables[0].Clone()
	out.Name = name
	for _, t := range tables[1:] {
		var err error
		out, err = merge.Join(out, t, merge.Spec{On: []string{key}, Kind: merge.Left, RightUnique: keep})
		if err != nil {
			return nil, fmt.Errorf("enrich: %s: join %s on %s: %w", name, t.Name, key, err)
		}
	}
	return out, nil
}
