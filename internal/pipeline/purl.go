package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"leadetl/internal/features"
	"leadetl/internal/loader"
	"leadetl/internal/metrics"
	"leadetl/internal/resolve"
	"leadetl/internal/table"
)

// PURL responder columns.
const (
	purlRefID     = "Reference ID"
	purlFirst     = "f.First"
	purlLast      = "f.Last"
	colPurlFilled = "purl_fully_completed"
)

// purlKey identifies a responder; every responder file must carry it.
var purlKey = []string{purlRefID, colZip, colDebt}

func formatPurlResponders(ctx context.Context, env *Env) error {
	paths, err := loader.GlobRequired(env.Cfg.PurlRespondersPath)
	if err != nil {
		return err
	}
	var parts []*table.Table
	for _, p := range paths {
		switch ext := strings.ToLower(filepath.Ext(p)); ext {
		case ".csv", ".xlsx":
		default:
			return &loader.UnsupportedExtensionError{Path: p, Ext: ext}
		}
		t, err := loader.Load(ctx, p, loader.Options{})
		if err != nil {
			return err
		}
		if err := t.MustHave(purlKey...); err != nil {
			return fmt.Errorf("purl: %s: %w", p, err)
		}
		parts = append(parts, t)
	}
	metrics.RecordRecords("loaded", rowCount(parts))

	t := table.Concat(SnapPurlResponders, parts...)
	ensureColumns(t, "First", purlFirst, purlLast)
	kept, dropped, err := resolve.Dedupe(t, resolve.Policy{Key: purlKey})
	if err != nil {
		return err
	}
	env.dropped("duplicate_responder", dropped.Len())

	kept.SetColumn(colGender, func(r table.Row) string { return env.Gender.Guess(kept.Get(r, "First")) })
	kept.SetColumn(colPurlFilled, func(r table.Row) string {
		return features.PurlCompletion(kept.Get(r, purlFirst), kept.Get(r, purlLast))
	})
	return env.save(ctx, SnapPurlResponders, kept, nil)
}
