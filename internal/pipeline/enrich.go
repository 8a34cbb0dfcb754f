package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"leadetl/internal/enrich"
	"leadetl/internal/features"
	"leadetl/internal/loader"
	"leadetl/internal/table"
)

// DebtSheet is the data sheet of the Debt in America workbooks.
const DebtSheet = "Sheet1"

func enrichFinal(ctx context.Context, env *Env) error {
	final, err := env.load(ctx, SnapFinalStageOne)
	if err != nil {
		return err
	}
	mode := env.Cfg.Mode()
	if !mode.Valid() {
		return fmt.Errorf("enrich: NUMBER_OF_FEATURES must be 1, 2, 3 or 4, got %d", env.Cfg.NumberOfFeatures)
	}

	var builders []func(context.Context, *Env) (enrich.Dataset, error)
	switch mode {
	case enrich.ModeDebtInAmerica:
		builders = append(builders, debtInAmerica)
	case enrich.ModeCensusDeluxe:
		builders = append(builders, censusDeluxe)
	case enrich.ModeFedReserve:
		builders = append(builders, fedReserve)
	case enrich.ModeDebtAndFed:
		builders = append(builders, debtInAmerica, fedReserve)
	}

	for _, build := range builders {
		d, err := build(ctx, env)
		if err != nil {
			return err
		}
		if err := features.PrefixColumns(d.Table, features.PrefixThirdParty, d.Key); err != nil {
			return err
		}
		if final, err = enrich.Attach(final, d); err != nil {
			return err
		}
		env.Log.WithFields(logrus.Fields{"dataset": d.Table.Name, "columns": len(d.Table.Columns) - 1}).Info("enrich: dataset attached")
	}
	if err := features.CheckNames(final.Columns); err != nil {
		return err
	}

	env.Log.WithField("mode", mode).Info("enrich: final dataset ready")
	if err := env.writeCSV(env.Cfg.FinalDatasetPath, final); err != nil {
		return err
	}
	return env.save(ctx, SnapFinal, final, nil)
}

func debtInAmerica(ctx context.Context, env *Env) (enrich.Dataset, error) {
	cfg := env.Cfg
	sheet := loader.Options{Sheet: DebtSheet}
	var in enrich.DebtInput
	for _, src := range []struct {
		dst  **table.Table
		path string
		opt  loader.Options
	}{
		{&in.Auto, cfg.DebtAutoPath, sheet},
		{&in.Delinquency, cfg.DebtDelinquencyPath, sheet},
		{&in.Medical, cfg.DebtMedicalPath, sheet},
		{&in.Student, cfg.DebtStudentPath, sheet},
		{&in.Crosswalk, cfg.ZipGEOIDPath, loader.Options{}},
	} {
		t, err := loader.Load(ctx, src.path, src.opt)
		if err != nil {
			return enrich.Dataset{}, err
		}
		*src.dst = t
	}
	return enrich.DebtInAmerica(in)
}

func censusDeluxe(ctx context.Context, env *Env) (enrich.Dataset, error) {
	cfg := env.Cfg
	var in enrich.CensusInput
	for _, src := range []struct {
		dst  **table.Table
		path string
		opt  loader.Options
	}{
		{&in.Census2010, cfg.Census2010Path, loader.Options{}},
		{&in.ACS, cfg.CensusACSPath, loader.Options{HeaderRow: enrich.ACSHeaderRow, MaxColumns: enrich.ACSMaxColumns}},
		{&in.Deluxe, cfg.CensusDeluxePath, loader.Options{}},
		{&in.PlaceFIPS, cfg.CensusPlaceFIPSPath, loader.Options{Encoding: loader.Latin1}},
	} {
		t, err := loader.Load(ctx, src.path, src.opt)
		if err != nil {
			return enrich.Dataset{}, err
		}
		*src.dst = t
	}
	return enrich.CensusDeluxe(in)
}

// fedReserve reduces every report to per-state statistics, writes one
// preprocessed CSV per report, merges them and writes the merged table.
// When a read-back glob is configured the merge reads the preprocessed
// files it matches instead of the in-memory reports.
func fedReserve(ctx context.Context, env *Env) (enrich.Dataset, error) {
	cfg := env.Cfg
	paths, err := loader.Glob(cfg.FedReservePath)
	if err != nil {
		return enrich.Dataset{}, err
	}
	reports := make([]*table.Table, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return enrich.Dataset{}, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return enrich.Dataset{}, fmt.Errorf("enrich: %w", err)
		}
		t, err := enrich.FedReport(enrich.FedFile{Path: p, Data: data})
		if err != nil {
			return enrich.Dataset{}, err
		}
		if err := env.writeCSV(filepath.Join(cfg.FedPreprocessedDir, enrich.FedPreprocessedName(p)), t); err != nil {
			return enrich.Dataset{}, err
		}
		reports = append(reports, t)
	}
	if cfg.FedPreprocessedReadGlob != "" {
		if reports, _, err = loader.LoadGlob(ctx, cfg.FedPreprocessedReadGlob, loader.Options{}); err != nil {
			return enrich.Dataset{}, err
		}
	}
	d, err := enrich.FedReserve(reports)
	if err != nil {
		return enrich.Dataset{}, err
	}
	if err := env.writeCSV(cfg.FedFinalPath, d.Table); err != nil {
		return enrich.Dataset{}, err
	}
	return d, nil
}
