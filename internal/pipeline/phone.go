package pipeline

import (
	"context"
	"strconv"

	"leadetl/internal/features"
	"leadetl/internal/loader"
	"leadetl/internal/merge"
	"leadetl/internal/metrics"
	"leadetl/internal/normalize"
	"leadetl/internal/resolve"
	"leadetl/internal/table"
)

const (
	colCallsNumber   = "Calls_number"
	colContactStatus = "Customer_contacted_status"
)

func formatPhoneTrunk(ctx context.Context, env *Env) error {
	leads, err := env.load(ctx, SnapAddStatus)
	if err != nil {
		return err
	}
	lookup, err := env.load(ctx, SnapLookup)
	if err != nil {
		return err
	}
	calls, err := env.load(ctx, SnapCallCenter)
	if err != nil {
		return err
	}
	phones, err := loader.Load(ctx, env.Cfg.PhonePath, loader.Options{})
	if err != nil {
		return err
	}
	metrics.RecordRecords("loaded", phones.Len())

	if err := cleanPhones(env, phones); err != nil {
		return err
	}
	phones, err = merge.Join(phones, lookup, merge.Spec{On: []string{colRefID}, Kind: merge.Inner})
	if err != nil {
		return err
	}
	phones.Drop(colRefID)

	out, err := merge.Join(leads, phones, merge.Spec{
		On:          []string{resolve.ColUUID},
		Kind:        merge.Left,
		Conflicts:   map[string]merge.Policy{colPhone: merge.CoalesceRight},
		RightUnique: merge.KeepLast,
	})
	if err != nil {
		return err
	}

	report, err := callReport(calls)
	if err != nil {
		return err
	}
	ensureColumns(out, colPhone)
	out, err = merge.Join(out, report, merge.Spec{
		On:          []string{colPhone},
		Kind:        merge.Left,
		RightUnique: merge.KeepFirst,
	})
	if err != nil {
		return err
	}
	ensureColumns(out, colStatus, "Trunk", colCRMStatus, colCallsNumber)
	out.Drop(colRefID)

	st, _ := out.Index(colStatus)
	for i := range out.Rows {
		if out.Rows[i].V[st] == "" {
			out.Rows[i].V[st] = features.StatusAgedUncontacted
		}
	}
	out.SetColumn(colContactStatus, func(r table.Row) string {
		return features.ContactStatus(r.V[st], out.Get(r, "Trunk"))
	})
	crm, _ := out.Index(colCRMStatus)
	out.SetColumn(colStatus, func(r table.Row) string {
		return features.ConsolidateStatus(r.V[st], r.V[crm])
	})
	out.Drop(colCRMStatus)
	return env.save(ctx, SnapAddPhone, out, nil)
}

// cleanPhones reduces the CRM phone export to one (reference id, Phone) pair
// per lead.
func cleanPhones(env *Env, t *table.Table) error {
	ref, ok := t.Index(colRefID)
	if !ok {
		return &table.MissingColumnError{Table: t.Name, Column: colRefID}
	}
	seen := make(map[string]struct{}, t.Len())
	t.Filter(func(r table.Row) bool {
		raw := r.V[ref]
		if _, dup := seen[raw]; dup {
			return false
		}
		seen[raw] = struct{}{}
		return raw != ""
	})
	if err := phoneColumn(env, t); err != nil {
		return err
	}
	ref, _ = t.Index(colRefID)
	before := t.Len()
	t.Filter(func(r table.Row) bool {
		id, ok := normalize.RefID(r.V[ref])
		r.V[ref] = id
		return ok
	})
	env.dropped("invalid_reference_id", before-t.Len())
	return t.Select(colRefID, colPhone)
}

// callReport reduces the call rows to the latest call per caller id, with
// the number of calls from that id, keyed by Phone.
func callReport(calls *table.Table) (*table.Table, error) {
	t := calls.Clone()
	counts, err := t.CountBy(colCallerID)
	if err != nil {
		return nil, err
	}
	t.AddColumn(colCallsNumber, "")
	n, _ := t.Index(colCallsNumber)
	for i := range t.Rows {
		t.Rows[i].V[n] = strconv.Itoa(counts[i])
	}
	latest, _, err := resolve.Dedupe(t, resolve.Policy{
		Key:    []string{colCallerID},
		Prefer: []resolve.Preference{{Column: "Date", By: resolve.MaxDate}},
	})
	if err != nil {
		return nil, err
	}
	if err := latest.Rename(map[string]string{colCallerID: colPhone}); err != nil {
		return nil, err
	}
	return latest, nil
}
