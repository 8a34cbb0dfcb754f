// Package dir stores snapshots as CSV files in a directory. It is the default
// backend.
package dir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"leadetl/internal/snapshot"
	"leadetl/internal/table"
)

func init() {
	snapshot.Register("dir", func(_ context.Context, cfg snapshot.Config) (snapshot.Store, error) {
		return New(cfg.DSN)
	})
}

// Store keeps one "<name>.csv" per snapshot under Root. Source line numbers
// are not preserved.
type Store struct {
	Root string
}

// New returns a Store rooted at root, creating the directory when missing.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("snapshot: dir: empty directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: dir: %w", err)
	}
	return &Store{Root: root}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Root, name+".csv")
}

func (s *Store) Save(ctx context.Context, name string, t *table.Table) error {
	if err := snapshot.ValidName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.WriteCSVFile(s.path(name)); err != nil {
		return fmt.Errorf("snapshot: dir: save %s: %w", name, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, name string) (*table.Table, error) {
	if err := snapshot.ValidName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &snapshot.NotFoundError{Kind: "dir", Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: dir: %w", err)
	}
	defer f.Close()
	t, err := table.ReadCSV(name, f)
	if err != nil {
		return nil, fmt.Errorf("snapshot: dir: load %s: %w", name, err)
	}
	return t, nil
}

func (s *Store) Close() error { return nil }
