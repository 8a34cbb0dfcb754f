// Package pipeline runs the lead ETL as a fixed sequence of stages. Each stage
// reads its inputs from the snapshot store by name, writes its outputs back,
// and may write audit CSVs. A run can resume from any stage as long as the
// snapshots of the earlier stages exist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"leadetl/internal/config"
	"leadetl/internal/gender"
	"leadetl/internal/metrics"
	"leadetl/internal/schema"
	"leadetl/internal/snapshot"
	"leadetl/internal/table"
)

// Snapshot names, in the order the stages write them.
const (
	SnapOptOutWithID    = "optout_with_reference_id"
	SnapOptOutWithoutID = "optout_without_reference_id"
	SnapInitialProspect = "initial_prospects"
	SnapProspects       = "prospects"
	SnapInitialPDR      = "initial_pdr"
	SnapPDR             = "pdr"
	SnapLeads           = "prospects_pdr"
	SnapLookup          = "lead_reference_lookup"
	SnapAddStatus       = "add_status"
	SnapCallCenter      = "call_center"
	SnapAddPhone        = "add_phone_and_trunk"
	SnapAddDescription  = "add_description"
	SnapPurlResponders  = "purl_responders"
	SnapAddCensus       = "add_census"
	SnapFinalStageOne   = "final_stage_one"
	SnapFinal           = "final"
)

// Env is everything a stage needs. It is built once per run.
type Env struct {
	Cfg   *config.Config
	Store snapshot.Store
	Log   logrus.FieldLogger

	Gender  *gender.Detector
	NewUUID func() uuid.UUID
	// Rand draws surrogate lead ids.
	Rand *rand.Rand
}

// NewEnv builds the run environment. The gender dictionary is read from
// PATH_GENDER_NAMES when set. A zero RANDOM_SEED seeds from the clock.
func NewEnv(cfg *config.Config, store snapshot.Store, log logrus.FieldLogger) (*Env, error) {
	det := gender.Default()
	if cfg.GenderNamesPath != "" {
		var err error
		if det, err = gender.Load(cfg.GenderNamesPath); err != nil {
			return nil, fmt.Errorf("pipeline: gender names: %w", err)
		}
	}
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Env{
		Cfg:     cfg,
		Store:   store,
		Log:     log,
		Gender:  det,
		NewUUID: uuid.New,
		Rand:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}, nil
}

// Stage is one named step of the pipeline.
type Stage struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env) error
}

// Stages returns the pipeline in execution order.
func Stages() []Stage {
	return []Stage{
		{"clear_opt_out_list", "split the opt-out list by reference id", clearOptOutList},
		{"format_prospects", "harmonize and deduplicate prospect files", formatProspects},
		{"remove_prospects_without_reference_id", "apply the name and address opt-out", removeProspectsWithoutReferenceID},
		{"format_pdr", "harmonize and deduplicate PDR workbooks", formatPDR},
		{"remove_prospects_with_reference_id", "apply the reference id opt-out", removeProspectsWithReferenceID},
		{"resolve_leads", "merge prospects and PDR leads and assign identifiers", resolveLeads},
		{"format_status", "attach the latest CRM status", formatStatus},
		{"format_call_center", "flatten call-center reports", formatCallCenter},
		{"format_phone_trunk", "attach phones and call activity", formatPhoneTrunk},
		{"format_description", "attach status descriptions", formatDescription},
		{"format_purl_responders", "read PURL responders", formatPurlResponders},
		{"format_external", "attach US census figures", formatExternal},
		{"make_final_modifications", "project into the feature vocabulary", makeFinalModifications},
		{"enrich", "attach third-party enrichment and write the dataset", enrichFinal},
	}
}

// Names returns the stage names in execution order.
func Names() []string {
	stages := Stages()
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.Name
	}
	return out
}

// UnknownStageError is returned by Run for a --from value that names no stage.
type UnknownStageError struct{ Name string }

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("pipeline: unknown stage %q (stages: %s)", e.Name, strings.Join(Names(), ", "))
}

// Runner executes stages in order.
type Runner struct {
	Env    *Env
	Stages []Stage

	now func() time.Time
}

// NewRunner returns a runner over the full stage list.
func NewRunner(env *Env) *Runner {
	return &Runner{Env: env, Stages: Stages(), now: time.Now}
}

// Run executes the stages starting at from ("" runs everything). The first
// failing stage aborts the run.
func (r *Runner) Run(ctx context.Context, from string) error {
	start := 0
	if from != "" {
		start = -1
		for i, s := range r.Stages {
			if s.Name == from {
				start = i
				break
			}
		}
		if start < 0 {
			return &UnknownStageError{Name: from}
		}
	}
	now := r.now
	if now == nil {
		now = time.Now
	}

	for _, s := range r.Stages[start:] {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := r.Env.Log.WithField("stage", s.Name)
		log.Info("pipeline: stage start")
		t0 := now()
		err := s.Run(ctx, r.Env)
		d := now().Sub(t0)
		if err != nil {
			metrics.RecordStep(s.Name, metrics.StatusError, d)
			log.WithError(err).Error("pipeline: stage failed")
			return fmt.Errorf("pipeline: %s: %w", s.Name, err)
		}
		metrics.RecordStep(s.Name, metrics.StatusOK, d)
		log.WithField("duration", d.Round(time.Millisecond)).Info("pipeline: stage done")
	}
	return nil
}

func (e *Env) load(ctx context.Context, name string) (*table.Table, error) {
	t, err := e.Store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return nil, fmt.Errorf("snapshot %s not found; run the stage that writes it first: %w", name, err)
		}
		return nil, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	return t, nil
}

// save validates t against s when given, then stores it under name.
func (e *Env) save(ctx context.Context, name string, t *table.Table, s *schema.Schema) error {
	if s != nil {
		if err := s.Validate(t); err != nil {
			return fmt.Errorf("snapshot %s: %w", name, err)
		}
	}
	t.Name = name
	if err := e.Store.Save(ctx, name, t); err != nil {
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}
	metrics.RecordSnapshot(name, t.Len())
	e.Log.WithFields(logrus.Fields{"snapshot": name, "rows": t.Len()}).Info("pipeline: snapshot saved")
	return nil
}

// writeCSV writes an audit or output file.
func (e *Env) writeCSV(path string, t *table.Table) error {
	if err := t.WriteCSVFile(path); err != nil {
		return err
	}
	e.Log.WithFields(logrus.Fields{"path": path, "rows": t.Len()}).Info("pipeline: file written")
	return nil
}

// dropped counts and logs rows removed for reason.
func (e *Env) dropped(reason string, n int) {
	if n <= 0 {
		return
	}
	metrics.RecordRecords("dropped_"+reason, n)
	e.Log.WithFields(logrus.Fields{"reason": reason, "rows": n}).Warn("pipeline: rows dropped")
}

// ensureColumns adds the absent columns, empty.
func ensureColumns(t *table.Table, cols ...string) {
	for _, c := range cols {
		if !t.Has(c) {
			t.AddColumn(c, "")
		}
	}
}
