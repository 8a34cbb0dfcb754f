package pipeline

import (
	"context"

	"leadetl/internal/features"
	"leadetl/internal/merge"
	"leadetl/internal/normalize"
	"leadetl/internal/resolve"
	"leadetl/internal/table"
)

const colPhoneActivity = features.PrefixFirstParty + "phone_center_activity"

func makeFinalModifications(ctx context.Context, env *Env) error {
	leads, err := env.load(ctx, SnapAddCensus)
	if err != nil {
		return err
	}
	responders, err := env.load(ctx, SnapPurlResponders)
	if err != nil {
		return err
	}
	lookup, err := env.load(ctx, SnapLookup)
	if err != nil {
		return err
	}

	clicks, err := respondersByLead(responders, lookup)
	if err != nil {
		return err
	}
	env.Log.WithField("leads", clicks.Len()).Info("final: PURL responders matched to leads")

	out, err := merge.Join(leads, clicks, merge.Spec{
		On:          []string{resolve.ColUUID},
		Kind:        merge.Left,
		RightUnique: merge.KeepFirst,
	})
	if err != nil {
		return err
	}
	ensureColumns(out, colContactStatus, colCallsNumber, colPurlFilled)
	out.SetColumn("Temporary_target", func(r table.Row) string {
		return features.TemporaryTarget(out.Get(r, colContactStatus), out.Get(r, colCallsNumber), out.Get(r, colPurlFilled))
	})

	final, err := features.Project(out, features.DefaultSchema())
	if err != nil {
		return err
	}
	if err := final.Map(colPhoneActivity, features.PhoneActivity); err != nil {
		return err
	}
	return env.save(ctx, SnapFinalStageOne, final, nil)
}

// respondersByLead attaches lead UUIDs to PURL responders through their
// reference id and keeps the first response per lead.
func respondersByLead(responders, lookup *table.Table) (*table.Table, error) {
	r := responders.Clone()
	if err := r.Rename(map[string]string{purlRefID: colRefID}); err != nil {
		return nil, err
	}
	if err := r.Map(colRefID, func(s string) string { return normalize.Digits(normalize.URLSlug(s)) }); err != nil {
		return nil, err
	}
	matched, err := merge.Join(r, lookup, merge.Spec{On: []string{colRefID}, Kind: merge.Inner})
	if err != nil {
		return nil, err
	}
	matched.Reindex(resolve.ColUUID, colPurlFilled, "f.Email", "f.Phone")
	kept, _, err := resolve.Dedupe(matched, resolve.Policy{Key: []string{resolve.ColUUID}})
	if err != nil {
		return nil, err
	}
	return kept, nil
}
