// Command leadetl runs the lead ETL pipeline.
//
// Configuration comes from the environment, optionally seeded from .env
// files (--env-file, default .env and .env.local). Exit codes: 0 success,
// 1 run or configuration failure, 2 usage error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"leadetl/internal/config"

	// register every snapshot backend with the store factory.
	// SNAPSHOT_BACKEND picks one at run time.
	_ "leadetl/internal/snapshot/dir"
	_ "leadetl/internal/snapshot/mssql"
	_ "leadetl/internal/snapshot/postgres"
	_ "leadetl/internal/snapshot/s3store"
	_ "leadetl/internal/snapshot/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries the process wiring so tests can swap the config source.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	loadConfig func(envFiles []string) (*config.Config, error)
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: func(files []string) (*config.Config, error) { return config.Load(files...) },
	}
	return c.execute(ctx, args)
}

func (c *cli) execute(ctx context.Context, args []string) int {
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	err := root.ExecuteContext(ctx)
	var ue *usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		fmt.Fprintf(c.stderr, "%v\n\n%s", err, root.UsageString())
		return 2
	case errors.Is(err, errInvalidConfig):
		// issues are already printed
		return 1
	default:
		fmt.Fprintln(c.stderr, err)
		return 1
	}
}

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

var errInvalidConfig = errors.New("configuration is invalid")
