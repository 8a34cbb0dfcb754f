package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"leadetl/internal/loader"
	"leadetl/internal/metrics"
	"leadetl/internal/normalize"
	"leadetl/internal/resolve"
	"leadetl/internal/table"
)

// Prospect file columns after harmonization.
const (
	prFirst   = "FNAME"
	prLast    = "LNAME"
	prAddress = "ADDRESS"
	prCity    = "CITY"
	prState   = "STATE"
	prDebt    = "EST DEBT"
)

// ToBeScoredMarker in a prospect file path flags its leads as new leads to
// score.
const ToBeScoredMarker = "To Be Scored"

// pdrLayout is the column order shared by prospects and PDR leads.
var pdrLayout = []string{
	colLeadSource, colPurchased, colFirstName, colLastName, "Address", "City", "State", colZip,
	colDebt, colRefID, "Direct Mail DID", "DM PURL", colGender, colMailNumber, colNewLead,
}

var fullnameHeaders = map[string]string{
	"First Name":         prFirst,
	"Middle Initial":     "MI",
	"Surname":            prLast,
	"Gen Code":           "SUFFIX",
	"Street":             prAddress,
	"City":               prCity,
	"State Abbreviation": prState,
	"Zip Code":           "ZIP",
}

// prospectKey identifies the same prospect across files.
var prospectKey = []string{prFirst, prLast, prDebt, prCity, colZip1, colZip2}

var prospectKeyNorm = map[string]func(string) string{prDebt: normalize.DebtKey}

func formatProspects(ctx context.Context, env *Env) error {
	cfg := env.Cfg
	fullnames, err := loader.Glob(cfg.ProspectFullnamePath)
	if err != nil {
		return err
	}
	scored, err := loader.Glob(cfg.ProspectsToBeScoredPath)
	if err != nil {
		return err
	}
	all, err := loader.Glob(cfg.ProspectPath)
	if err != nil {
		return err
	}
	plain := slices.DeleteFunc(all, func(p string) bool {
		return slices.Contains(fullnames, p) || slices.Contains(scored, p)
	})
	env.Log.WithFields(logrus.Fields{
		"fullname":     len(fullnames),
		"to_be_scored": len(scored),
		"plain":        len(plain),
	}).Info("prospects: files found")

	var parts []*table.Table
	for _, p := range fullnames {
		t, err := loader.Load(ctx, p, loader.Options{})
		if err != nil {
			return err
		}
		if err := harmonizeFullname(t); err != nil {
			return fmt.Errorf("prospects: %s: %w", p, err)
		}
		stampPurchase(t, p)
		parts = append(parts, t)
	}
	for _, p := range slices.Concat(scored, plain) {
		t, err := loader.Load(ctx, p, loader.Options{})
		if err != nil {
			return err
		}
		harmonizeProspect(t, p)
		stampPurchase(t, p)
		parts = append(parts, t)
	}
	metrics.RecordRecords("loaded", rowCount(parts))

	t := table.Concat(SnapInitialProspect, parts...)
	if err := t.MustHave(prFirst, prLast, prAddress, prCity, prState, prDebt); err != nil {
		return err
	}
	ensureColumns(t, colNewLead, colPurchased, colZip1, colZip2)

	if cfg.DuplicatesToScorePath != "" {
		dups, err := duplicatesToScore(t)
		if err != nil {
			return err
		}
		if err := env.writeCSV(cfg.DuplicatesToScorePath, dups); err != nil {
			return err
		}
	}

	kept, dropped, err := resolve.Dedupe(t, resolve.Policy{
		Key:       prospectKey,
		Normalize: prospectKeyNorm,
		Prefer: []resolve.Preference{
			{Column: colNewLead, By: resolve.Equals(toBeScored)},
			{Column: colPurchased, By: resolve.MaxDate},
		},
	})
	if err != nil {
		return err
	}
	env.dropped("duplicate_prospect", dropped.Len())

	if err := toPDRLayout(kept, env); err != nil {
		return err
	}
	return env.save(ctx, SnapInitialProspect, kept, &prospectsSchema)
}

// harmonizeFullname maps a fullname prospect file onto the prospect columns.
func harmonizeFullname(t *table.Table) error {
	if err := t.Rename(map[string]string{"utilization": "UTL", "debt": prDebt}); err != nil {
		return err
	}
	t.Drop("UTL")
	m := make(map[string]string, len(fullnameHeaders)+1)
	for k, v := range fullnameHeaders {
		m[k] = v
	}
	if !t.Has(prDebt) {
		m["EHV"] = prDebt
	}
	if err := t.Rename(m); err != nil {
		return err
	}
	if err := t.MustHave("ZIP"); err != nil {
		return err
	}
	splitZipColumn(t, "ZIP")
	t.Drop("ZIP")
	return nil
}

// harmonizeProspect flags to-be-scored files and pads the zip columns.
func harmonizeProspect(t *table.Table, path string) {
	flag := ""
	if strings.Contains(path, ToBeScoredMarker) {
		flag = toBeScored
	}
	t.AddColumn(colNewLead, flag)
	t.SetColumn(colZip1, func(r table.Row) string { return normalize.Zip5(t.Get(r, "ZIP")) })
	t.SetColumn(colZip2, func(r table.Row) string { return normalize.Zip4(t.Get(r, "ZIP4")) })
	t.Drop("ZIP", "ZIP4")
}

// stampPurchase sets the purchase date from the _MMDDYY token of the file name.
func stampPurchase(t *table.Table, path string) {
	purchased := ""
	if d, ok := normalize.FilenameDate(strings.ToUpper(filepath.Base(path))); ok {
		purchased = normalize.FormatDate(d)
	}
	t.AddColumn(colPurchased, purchased)
}

// splitZipColumn derives Zip_1 and Zip_2 from a combined zip column.
func splitZipColumn(t *table.Table, col string) {
	ix, _ := t.Index(col)
	t.SetColumn(colZip1, func(r table.Row) string { z5, _ := normalize.SplitZip(r.V[ix]); return z5 })
	t.SetColumn(colZip2, func(r table.Row) string { _, z4 := normalize.SplitZip(r.V[ix]); return z4 })
}

// duplicatesToScore returns the to-be-scored rows whose prospect key occurs
// more than once.
func duplicatesToScore(t *table.Table) (*table.Table, error) {
	dup, err := resolve.Duplicated(t, prospectKey, prospectKeyNorm)
	if err != nil {
		return nil, err
	}
	flag, _ := t.Index(colNewLead)
	out := t.Empty()
	for i, r := range t.Rows {
		if dup[i] && r.V[flag] == toBeScored {
			out.Rows = append(out.Rows, r)
		}
	}
	return out, nil
}

// toPDRLayout reshapes harmonized prospects into the PDR lead layout.
func toPDRLayout(t *table.Table, env *Env) error {
	t.SetColumn(colGender, func(r table.Row) string { return env.Gender.Guess(t.Get(r, prFirst)) })
	t.Drop("MI", "SUFFIX")
	t.AddColumn(colMailNumber, "0")
	t.SetColumn(colZip, func(r table.Row) string {
		z1, z2 := t.Get(r, colZip1), t.Get(r, colZip2)
		if z2 == "" {
			return z1
		}
		return z1 + "-" + z2
	})
	if err := t.Rename(map[string]string{
		prFirst:   colFirstName,
		prLast:    colLastName,
		prAddress: "Address",
		prCity:    "City",
		prState:   "State",
		prDebt:    colDebt,
	}); err != nil {
		return err
	}
	t.Reindex(pdrLayout...)
	return nil
}

func rowCount(ts []*table.Table) int {
	n := 0
	for _, t := range ts {
		n += t.Len()
	}
	return n
}
