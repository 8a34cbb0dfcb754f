package pipeline

import (
	"context"

	"leadetl/internal/loader"
	"leadetl/internal/merge"
	"leadetl/internal/normalize"
)

func formatExternal(ctx context.Context, env *Env) error {
	leads, err := env.load(ctx, SnapAddDescription)
	if err != nil {
		return err
	}
	census, err := loader.Load(ctx, env.Cfg.USCensusPath, loader.Options{})
	if err != nil {
		return err
	}
	if err := census.Rename(map[string]string{"Zipcode": colZip1}); err != nil {
		return err
	}
	if err := census.Map(colZip1, normalize.Zip5); err != nil {
		return err
	}
	out, err := merge.Join(leads, census, merge.Spec{
		On:          []string{colZip1},
		Kind:        merge.Left,
		RightUnique: merge.KeepFirst,
	})
	if err != nil {
		return err
	}
	return env.save(ctx, SnapAddCensus, out, nil)
}
