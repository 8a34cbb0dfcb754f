package pipeline

import (
	"context"

	"leadetl/internal/features"
	"leadetl/internal/loader"
	"leadetl/internal/merge"
	"leadetl/internal/metrics"
	"leadetl/internal/normalize"
	"leadetl/internal/resolve"
	"leadetl/internal/table"
)

// StatusTestLead marks CRM test records.
const StatusTestLead = "Test Lead"

// Phone columns of the CRM exports, in preference order.
var phoneColumns = []string{"Mobile Phone", "Home Phone", "Work Phone"}

func formatStatus(ctx context.Context, env *Env) error {
	leads, err := env.load(ctx, SnapLeads)
	if err != nil {
		return err
	}
	lookup, err := env.load(ctx, SnapLookup)
	if err != nil {
		return err
	}
	crm, err := loader.Load(ctx, env.Cfg.StatusPath, loader.Options{})
	if err != nil {
		return err
	}
	phones, err := loader.Load(ctx, env.Cfg.PhoneStatusPath, loader.Options{})
	if err != nil {
		return err
	}
	metrics.RecordRecords("loaded", crm.Len()+phones.Len())

	if err := cleanStatus(env, crm); err != nil {
		return err
	}
	if err := cleanStatus(env, phones); err != nil {
		return err
	}
	if err := phoneColumn(env, phones); err != nil {
		return err
	}

	status, _, err := resolve.Dedupe(table.Concat("status", crm, phones), resolve.Policy{
		Key:    []string{colRefID},
		Prefer: []resolve.Preference{{Column: colDateAdded, By: resolve.MaxDate}},
	})
	if err != nil {
		return err
	}

	missing, err := missingClients(status, lookup)
	if err != nil {
		return err
	}
	if err := env.writeCSV(env.Cfg.MissingClientsPath, missing); err != nil {
		return err
	}

	known, err := merge.Join(status, lookup, merge.Spec{On: []string{colRefID}, Kind: merge.Inner})
	if err != nil {
		return err
	}
	out, err := merge.Join(leads, known, merge.Spec{
		On:          []string{resolve.ColUUID},
		Kind:        merge.Left,
		Conflicts:   map[string]merge.Policy{colLeadSource: merge.LeftWins},
		Default:     merge.CoalesceLeft,
		RightUnique: merge.KeepFirst,
	})
	if err != nil {
		return err
	}
	ensureColumns(out, colStatus, colDateAdded)
	out.SetColumn("Customer_intention", func(r table.Row) string { return features.Intention(out.Get(r, colStatus)) })
	out.Drop(colRefID)
	return env.save(ctx, SnapAddStatus, out, nil)
}

// cleanStatus keeps the first record per raw reference id, drops test leads
// and records without a parseable Date Added, and canonicalizes the id.
// Records without a valid id are dropped.
func cleanStatus(env *Env, t *table.Table) error {
	ix, err := t.Indexes(colRefID, colDateAdded, colStatus)
	if err != nil {
		return err
	}
	ref, added, status := ix[0], ix[1], ix[2]

	seen := make(map[string]struct{}, t.Len())
	before := t.Len()
	t.Filter(func(r table.Row) bool {
		raw := r.V[ref]
		if _, dup := seen[raw]; dup {
			return false
		}
		seen[raw] = struct{}{}
		return raw != ""
	})
	env.dropped("duplicate_status", before-t.Len())

	before = t.Len()
	t.Filter(func(r table.Row) bool {
		r.V[added] = normalize.DateString(r.V[added])
		return r.V[added] != ""
	})
	env.dropped("unparseable_date", before-t.Len())

	t.Filter(func(r table.Row) bool { return r.V[status] != StatusTestLead })

	before = t.Len()
	t.Filter(func(r table.Row) bool {
		id, ok := normalize.RefID(r.V[ref])
		r.V[ref] = id
		return ok
	})
	env.dropped("invalid_reference_id", before-t.Len())
	t.Drop("Id")
	return nil
}

// phoneColumn replaces the mobile, home and work phone columns with a single
// Phone holding the first present one. Records without any phone are dropped.
func phoneColumn(env *Env, t *table.Table) error {
	ix, err := t.Indexes(phoneColumns...)
	if err != nil {
		return err
	}
	t.SetColumn(colPhone, func(r table.Row) string {
		for _, i := range ix {
			if r.V[i] != "" {
				return phoneNumber(r.V[i])
			}
		}
		return ""
	})
	p, _ := t.Index(colPhone)
	before := t.Len()
	t.Filter(func(r table.Row) bool { return r.V[p] != "" })
	env.dropped("missing_phone", before-t.Len())
	t.Drop(phoneColumns...)
	return nil
}

// phoneNumber applies the caller-id rules so CRM phones match call-center
// caller ids; numbers the rules reject keep their digits.
func phoneNumber(s string) string {
	if p, ok := normalize.Phone(s); ok {
		return p
	}
	return normalize.Digits(s)
}

// missingClients returns the status records whose reference id is not in
// the lookup.
func missingClients(status, lookup *table.Table) (*table.Table, error) {
	ids, err := lookup.Column(colRefID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	ref, _ := status.Index(colRefID)
	missing, _ := status.Partition(func(r table.Row) bool {
		_, ok := known[r.V[ref]]
		return !ok
	})
	return missing, nil
}
