package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"leadetl/internal/loader"
	"leadetl/internal/metrics"
	"leadetl/internal/resolve"
)

// OptOutSheet is the opt-out workbook sheet.
const OptOutSheet = "Mail-OptOut Supression List"

func clearOptOutList(ctx context.Context, env *Env) error {
	t, err := loader.Load(ctx, env.Cfg.OptOutListPath, loader.Options{Sheet: OptOutSheet})
	if err != nil {
		return err
	}
	metrics.RecordRecords("loaded", t.Len())
	withID, withoutID, err := resolve.SplitOptOut(t)
	if err != nil {
		return err
	}
	env.Log.WithFields(logrus.Fields{
		"with_reference_id":    withID.Len(),
		"without_reference_id": withoutID.Len(),
	}).Info("optout: list split")
	if err := env.save(ctx, SnapOptOutWithID, withID, nil); err != nil {
		return err
	}
	return env.save(ctx, SnapOptOutWithoutID, withoutID, nil)
}

func removeProspectsWithoutReferenceID(ctx context.Context, env *Env) error {
	prospects, err := env.load(ctx, SnapInitialProspect)
	if err != nil {
		return err
	}
	list, err := env.load(ctx, SnapOptOutWithoutID)
	if err != nil {
		return err
	}
	o, err := resolve.NewOptOut(nil, list)
	if err != nil {
		return err
	}
	kept, excluded, err := o.ExcludeByTuple(prospects, nil)
	if err != nil {
		return err
	}
	metrics.RecordRecords("opted_out", excluded.Len())
	env.Log.WithField("rows", excluded.Len()).Info("optout: prospects excluded by name and address")
	if err := env.writeCSV(env.Cfg.ExcludedWithoutIDPath, excluded); err != nil {
		return err
	}
	return env.save(ctx, SnapProspects, kept, &prospectsSchema)
}

func removeProspectsWithReferenceID(ctx context.Context, env *Env) error {
	pdr, err := env.load(ctx, SnapInitialPDR)
	if err != nil {
		return err
	}
	list, err := env.load(ctx, SnapOptOutWithID)
	if err != nil {
		return err
	}
	o, err := resolve.NewOptOut(list, nil)
	if err != nil {
		return err
	}
	kept, excluded, err := o.ExcludeByID(pdr, colRefID)
	if err != nil {
		return err
	}
	metrics.RecordRecords("opted_out", excluded.Len())
	env.Log.WithField("rows", excluded.Len()).Info("optout: PDR leads excluded by reference id")
	if err := env.writeCSV(env.Cfg.ExcludedWithIDPath, excluded); err != nil {
		return err
	}
	return env.save(ctx, SnapPDR, kept, &pdrSchema)
}
