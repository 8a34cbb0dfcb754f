package pipeline

import (
	"context"

	"leadetl/internal/loader"
	"leadetl/internal/merge"
	"leadetl/internal/resolve"
)

var descriptionColumns = []string{
	resolve.ColUUID, resolve.ColLeadID, colGender, colStatus, "Description", colContactStatus,
	"Customer_intention", colMailNumber, colCallsNumber, colZip1, colZip2, "Address", "City", "State",
	colDebt, colDateAdded, colLeadSource, "Direct Mail DID", colPhone, "Date", "Queue", "Trunk",
	"Call Time", "Exit Reason", colFirstName, colLastName, colPurchased, colNewLead,
}

func formatDescription(ctx context.Context, env *Env) error {
	leads, err := env.load(ctx, SnapAddPhone)
	if err != nil {
		return err
	}
	desc, err := loader.Load(ctx, env.Cfg.StatusDescriptionPath, loader.Options{})
	if err != nil {
		return err
	}
	if err := desc.MustHave(colStatus, "Description"); err != nil {
		return err
	}

	if err := leads.MustHave(colZip); err != nil {
		return err
	}
	splitZipColumn(leads, colZip)

	out, err := merge.Join(leads, desc, merge.Spec{
		On:          []string{colStatus},
		Kind:        merge.Left,
		RightUnique: merge.KeepLast,
	})
	if err != nil {
		return err
	}
	if err := out.Select(descriptionColumns...); err != nil {
		return err
	}
	return env.save(ctx, SnapAddDescription, out, &descriptionSchema)
}
