package enrich

import (
	"strings"

	"leadetl/internal/merge"
	"leadetl/internal/normalize"
	"leadetl/internal/table"
)

// Debt in America column names.
const (
	ColGEOID = "GEOID"
	ColZCTA5 = "ZCTA5"
)

// DebtInput holds the four Debt in America county workbooks and the
// ZCTA5-to-GEOID crosswalk.
type DebtInput struct {
	Auto        *table.Table
	Delinquency *table.Table
	Medical     *table.Table
	Student     *table.Table
	Crosswalk   *table.Table
}

var debtTextColumns = []string{"NAME", ColGEOID, "state_name", ColZCTA5}

// DebtInAmerica averages the county figures per GEOID, spreads them to zip
// areas through the crosswalk and averages again per ZCTA5.
func DebtInAmerica(in DebtInput) (Dataset, error) {
	for _, t := range []*table.Table{in.Auto, in.Delinquency, in.Medical, in.Student} {
		if err := t.MustHave(ColGEOID); err != nil {
			return Dataset{}, err
		}
	}
	merged, err := chain("debt_in_america", ColGEOID, merge.KeepAll, in.Auto, in.Delinquency, in.Medical, in.Student)
	if err != nil {
		return Dataset{}, err
	}
	clearNotAvailable(merged, debtTextColumns)

	byGEOID, err := merged.GroupMean(ColGEOID, merged.NumericColumns(debtTextColumns...))
	if err != nil {
		return Dataset{}, err
	}

	cw := in.Crosswalk.Clone()
	if err := cw.Select(ColZCTA5, ColGEOID); err != nil {
		return Dataset{}, err
	}
	_ = cw.Map(ColZCTA5, normalize.Zip5)
	spread, err := merge.Join(byGEOID, cw, merge.Spec{On: []string{ColGEOID}, Kind: merge.Left})
	if err != nil {
		return Dataset{}, err
	}
	byZip, err := spread.GroupMean(ColZCTA5, spread.NumericColumns(debtTextColumns...))
	if err != nil {
		return Dataset{}, err
	}
	if err := byZip.Rename(map[string]string{ColZCTA5: KeyZip1}); err != nil {
		return Dataset{}, err
	}
	return Dataset{Table: byZip, Key: KeyZip1}, nil
}

// clearNotAvailable blanks the "n/a*" markers of the Debt in America sheets in
// every column except the text ones.
func clearNotAvailable(t *table.Table, text []string) {
	skip := make(map[string]bool, len(text))
	for _, c := range text {
		skip[c] = true
	}
	for _, c := range t.Columns {
		if skip[c] {
			continue
		}
		_ = t.Map(c, func(v string) string {
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "n/a") {
				return ""
			}
			return v
		})
	}
}
