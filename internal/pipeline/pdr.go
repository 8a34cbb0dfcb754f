package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"leadetl/internal/loader"
	"leadetl/internal/metrics"
	"leadetl/internal/normalize"
	"leadetl/internal/resolve"
	"leadetl/internal/table"
)

// PDRSheet is the sheet of a PDR workbook that holds the mailed leads.
// Workbooks without it are skipped, but at least one must carry it.
const PDRSheet = "Sheet4"

var pdrHeaders = map[string]string{
	"Reference ID":       colRefID,
	"Zip Code":           colZip,
	"Surname":            colLastName,
	"Street":             "Address",
	"State Abbreviation": "State",
	"EHV":                colDebt,
	"UTL":                colDebt,
	"DID":                "Direct Mail DID",
}

var pdrColumns = []string{
	colLeadSource, colStatus, colFirstName, colLastName, "Address", "City", "State", colZip,
	colDebt, colRefID, "Direct Mail DID", "DM PURL",
}

func formatPDR(ctx context.Context, env *Env) error {
	paths, err := loader.GlobRequired(env.Cfg.PDRFilesPath)
	if err != nil {
		return err
	}
	var parts []*table.Table
	found := false
	for _, p := range paths {
		sheets, err := loader.Sheets(p)
		if err != nil {
			return err
		}
		if !slices.Contains(sheets, PDRSheet) {
			env.Log.WithField("path", p).Debug("pdr: no lead sheet, skipped")
			continue
		}
		found = true
		t, err := loader.Load(ctx, p, loader.Options{Sheet: PDRSheet, HeaderMap: pdrHeaders})
		if err != nil {
			return err
		}
		if t.Len() == 0 {
			continue
		}
		if err := t.Select(pdrColumns...); err != nil {
			return fmt.Errorf("pdr: %s: %w", p, err)
		}
		parts = append(parts, t)
	}
	if !found {
		return &loader.LayoutError{Path: env.Cfg.PDRFilesPath, Detail: fmt.Sprintf("no workbook has sheet %q", PDRSheet)}
	}
	metrics.RecordRecords("loaded", rowCount(parts))

	t := table.Concat(SnapInitialPDR, parts...)
	t.Reindex(pdrColumns...)
	t.SetColumn(colGender, func(r table.Row) string { return env.Gender.Guess(t.Get(r, colFirstName)) })
	t.SetColumn(colMailNumber, func(r table.Row) string {
		return strconv.Itoa(normalize.MailNumber(t.Get(r, colRefID)))
	})
	t.Drop(colStatus)

	ref, _ := t.Index(colRefID)
	before := t.Len()
	t.Filter(func(r table.Row) bool {
		id, ok := normalize.RefID(r.V[ref])
		r.V[ref] = id
		return ok
	})
	env.dropped("invalid_reference_id", before-t.Len())

	kept, dropped, err := resolve.Dedupe(t, resolve.Policy{
		Key:       []string{colRefID, colZip},
		Normalize: map[string]func(string) string{colZip: normalize.Zip},
		Prefer:    []resolve.Preference{{Column: colMailNumber, By: resolve.MaxNumber}},
	})
	if err != nil {
		return err
	}
	env.dropped("duplicate_pdr", dropped.Len())
	return env.save(ctx, SnapInitialPDR, kept, &pdrSchema)
}
