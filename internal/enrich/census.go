package enrich

import (
	"leadetl/internal/merge"
	"leadetl/internal/normalize"
	"leadetl/internal/table"
)

// ColZIPCODE is the shared zip column of the census sources.
const ColZIPCODE = "ZIPCODE"

// ACS layout: the header sits on the second row and only the leading block of
// columns carries estimates.
const (
	ACSHeaderRow  = 1
	ACSMaxColumns = 524
)

// CensusInput holds the four census deluxe sources.
type CensusInput struct {
	Census2010 *table.Table // keyed by ZIPCode
	ACS        *table.Table // keyed by ZIPCODE
	Deluxe     *table.Table // zip code database deluxe, keyed by ZipCode
	PlaceFIPS  *table.Table // place FIPS, keyed by ZIPCODE
}

// CensusDeluxe joins the census sources on the 5-digit zip.
func CensusDeluxe(in CensusInput) (Dataset, error) {
	c2010, err := zipKeyed(in.Census2010, "ZIPCode")
	if err != nil {
		return Dataset{}, err
	}
	acs, err := zipKeyed(in.ACS, ColZIPCODE)
	if err != nil {
		return Dataset{}, err
	}
	deluxe, err := zipMeans(in.Deluxe, "ZipCode")
	if err != nil {
		return Dataset{}, err
	}
	fips, err := zipMeans(in.PlaceFIPS, ColZIPCODE)
	if err != nil {
		return Dataset{}, err
	}

	out, err := chain("census_deluxe", ColZIPCODE, merge.KeepFirst, c2010, acs, deluxe, fips)
	if err != nil {
		return Dataset{}, err
	}
	if err := out.Rename(map[string]string{ColZIPCODE: KeyZip1}); err != nil {
		return Dataset{}, err
	}
	return Dataset{Table: out, Key: KeyZip1}, nil
}

// zipKeyed copies t with its zip column zero padded and named ZIPCODE.
func zipKeyed(t *table.Table, col string) (*table.Table, error) {
	out := t.Clone()
	if err := out.Map(col, normalize.Zip5); err != nil {
		return nil, err
	}
	if err := out.Rename(map[string]string{col: ColZIPCODE}); err != nil {
		return nil, err
	}
	return out, nil
}

// zipMeans keeps the numeric columns of t and averages them per zip.
func zipMeans(t *table.Table, col string) (*table.Table, error) {
	keyed, err := zipKeyed(t, col)
	if err != nil {
		return nil, err
	}
	return keyed.GroupMean(ColZIPCODE, keyed.NumericColumns(ColZIPCODE))
}
