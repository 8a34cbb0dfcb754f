// Package snapshot persists the named intermediate tables each pipeline stage
// produces, so a run can resume from any stage.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"leadetl/internal/table"
)

// Config selects and configures a snapshot backend.
//
// When to use:
//   - Pass Config to New when the pipeline starts.
//
// Edge cases:
//   - Kind must match a registered backend kind ("dir", "sqlite", "postgres",
//     "mssql", "s3").
//   - DSN is passed through to the backend factory; its format is
//     backend-specific (a directory, a file, a connection string, an s3 URL).
type Config struct {
	Kind string
	DSN  string
}

// Store is a backend-agnostic keyed store of tables.
type Store interface {
	// Save replaces the snapshot stored under name.
	Save(ctx context.Context, name string, t *table.Table) error

	// Load returns the snapshot stored under name. It returns an error matching
	// ErrNotFound when no snapshot has been saved under that name.
	Load(ctx context.Context, name string) (*table.Table, error)

	// Close releases backend resources. Call once.
	Close() error
}

// ErrNotFound is returned by Store.Load for an unknown snapshot name.
var ErrNotFound = errors.New("snapshot: not found")

// NotFoundError wraps ErrNotFound with the missing name.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot: %s: %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

var validName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidName reports an error unless name is usable as a file name and as part
// of a SQL identifier: lower-case letters, digits and underscores, starting
// with a letter.
func ValidName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("snapshot: invalid name %q", name)
	}
	return nil
}

// Factory constructs a Store from a Config.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under kind.
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("snapshot: Register called with empty kind")
	}
	if f == nil {
		panic("snapshot: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("snapshot: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Store using the backend registered for cfg.Kind.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("snapshot: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("snapshot: unsupported kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
