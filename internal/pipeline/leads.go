package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"leadetl/internal/normalize"
	"leadetl/internal/resolve"
	"leadetl/internal/table"
)

// resolveLeads merges prospects and PDR leads into one table of distinct
// leads, assigns identifiers, and splits off the reference id lookup.
func resolveLeads(ctx context.Context, env *Env) error {
	prospects, err := env.load(ctx, SnapProspects)
	if err != nil {
		return err
	}
	pdr, err := env.load(ctx, SnapPDR)
	if err != nil {
		return err
	}
	t := table.Concat(SnapLeads, prospects, pdr)
	ensureColumns(t, colNewLead, colPurchased)
	if err := t.Map(colZip, normalize.Zip); err != nil {
		return err
	}

	kept, dropped, err := resolve.Dedupe(t, resolve.Policy{
		Key:       []string{colFirstName, colLastName, colZip, colDebt},
		Normalize: map[string]func(string) string{colFirstName: normalize.Name, colLastName: normalize.Name, colDebt: normalize.DebtKey},
		Exempt:    &resolve.Flag{Column: colNewLead, Value: toBeScored},
		Prefer: []resolve.Preference{
			{Column: colRefID, By: resolve.NonEmpty},
			{Column: colRefID, By: resolve.MaxString},
		},
		NameColumns:   []string{colFirstName, colLastName},
		NameTolerance: env.Cfg.LeadNameMatchDistance,
	})
	if err != nil {
		return err
	}
	env.dropped("duplicate_lead", dropped.Len())

	gen, err := resolve.NewIDGenerator(resolve.DefaultMinID, resolve.DefaultMaxID, env.Rand)
	if err != nil {
		return err
	}
	if err := resolve.AssignIdentifiers(kept, colRefID, gen, env.NewUUID); err != nil {
		return err
	}

	lookup, err := referenceLookup(kept)
	if err != nil {
		return err
	}
	kept.Drop(colRefID)
	env.Log.WithFields(logrus.Fields{"leads": kept.Len(), "with_reference_id": lookup.Len()}).Info("leads: resolved")

	if err := env.save(ctx, SnapLeads, kept, &leadsSchema); err != nil {
		return err
	}
	return env.save(ctx, SnapLookup, lookup, &lookupSchema)
}

// referenceLookup pairs each lead UUID with its normalized reference id.
// Leads without a valid id are left out.
func referenceLookup(leads *table.Table) (*table.Table, error) {
	ix, err := leads.Indexes(resolve.ColUUID, colRefID)
	if err != nil {
		return nil, err
	}
	out := table.New(SnapLookup, resolve.ColUUID, colRefID)
	for _, r := range leads.Rows {
		if id, ok := normalize.RefID(r.V[ix[1]]); ok {
			out.Append(r.V[ix[0]], id)
		}
	}
	return out, nil
}
