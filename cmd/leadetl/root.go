package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"leadetl/internal/config"
	"leadetl/internal/logging"
	"leadetl/internal/pipeline"
	"leadetl/internal/snapshot"
)

// JobName names the run in logs and metrics.
const JobName = "leadetl"

func (c *cli) rootCmd() *cobra.Command {
	var envFiles []string
	cmd := &cobra.Command{
		Use:           "leadetl",
		Short:         "Batch ETL turning raw lead exports into the scoring dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env, .env.local)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return &usageError{err} })

	cmd.AddCommand(c.runCmd(&envFiles))
	cmd.AddCommand(c.validateCmd(&envFiles))
	cmd.AddCommand(c.stagesCmd())
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{fmt.Errorf("%s takes no arguments, got %q", cmd.CommandPath(), args)}
	}
	return nil
}

func (c *cli) runCmd(envFiles *[]string) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "run [--from stage]",
		Short: "Run the pipeline, optionally resuming at a stage",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.config(*envFiles)
			if err != nil {
				return err
			}
			return c.run(cmd, cfg, from)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first stage to run; earlier stages' snapshots must exist")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, cfg *config.Config, from string) error {
	ctx := cmd.Context()
	log, err := logging.New(logging.Options{Dir: cfg.LogDir, Name: JobName, Level: cfg.LogrusLevel(), Console: c.stderr})
	if err != nil {
		return err
	}
	defer log.Close()

	shutdown := initMetrics(ctx, cfg, log)
	defer shutdown()

	store, err := snapshot.New(ctx, cfg.Snapshot())
	if err != nil {
		return err
	}
	defer store.Close()

	env, err := pipeline.NewEnv(cfg, store, log)
	if err != nil {
		return err
	}

	start := time.Now()
	log.WithField("from", from).WithField("snapshot_backend", cfg.SnapshotBackend).Info("leadetl: run start")
	if err := pipeline.NewRunner(env).Run(ctx, from); err != nil {
		log.WithError(err).Error("leadetl: run failed")
		return err
	}
	log.WithField("duration", time.Since(start).Truncate(time.Millisecond)).Info("leadetl: run complete")
	return nil
}

func (c *cli) validateCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.config(*envFiles); err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, "configuration is valid")
			return nil
		},
	}
}

func (c *cli) stagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the pipeline stages in run order",
		Args:  noArgs,
		Run: func(*cobra.Command, []string) {
			for _, s := range pipeline.Stages() {
				fmt.Fprintf(c.stdout, "%-40s %s\n", s.Name, s.Description)
			}
		},
	}
}

// config loads and validates the configuration, printing every issue.
func (c *cli) config(envFiles []string) (*config.Config, error) {
	cfg, err := c.loadConfig(envFiles)
	if err != nil {
		return nil, err
	}
	issues := cfg.Validate()
	for _, iss := range issues {
		fmt.Fprintf(c.stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return nil, errInvalidConfig
	}
	return cfg, nil
}
