// Package postgres stores snapshots in PostgreSQL. Rows are bulk loaded with
// COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadetl/internal/snapshot"
	"leadetl/internal/snapshot/sqlstore"
	"leadetl/internal/table"
)

// Dialect is the Postgres syntax. Identifiers are limited to 63 bytes, which
// snapshot names respect and feature names need not.
var Dialect = sqlstore.Dialect{
	Name:            "postgres",
	Quote:           sqlstore.DoubleQuote,
	Placeholder:     func(n int) string { return fmt.Sprintf("$%d", n) },
	CreateIfMissing: sqlstore.CreateTableIfNotExists(sqlstore.DoubleQuote),
	KeyType:         "TEXT",
	TextType:        "TEXT",
	IntType:         "BIGINT",
	MaxParams:       65535,
}

func init() {
	snapshot.Register("postgres", func(ctx context.Context, cfg snapshot.Config) (snapshot.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Store implements snapshot.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects and prepares the meta table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, Dialect.CreateMetaSQL()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("snapshot: postgres: create %s: %w", sqlstore.MetaTable, err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Save replaces the snapshot in one transaction; rows go through CopyFrom.
func (s *Store) Save(ctx context.Context, name string, t *table.Table) error {
	if err := snapshot.ValidName(name); err != nil {
		return err
	}
	meta, err := sqlstore.MetaArgs(name, t, s.now())
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, st := range []struct {
		sql  string
		args []any
	}{
		{sql: Dialect.DropDataSQL(name)},
		{sql: Dialect.CreateDataSQL(name, len(t.Columns))},
		{sql: Dialect.DeleteMetaSQL(), args: []any{name}},
		{sql: Dialect.InsertMetaSQL(), args: meta},
	} {
		if _, err := tx.Exec(ctx, st.sql, st.args...); err != nil {
			return fmt.Errorf("snapshot: postgres: save %s: %w", name, err)
		}
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{sqlstore.DataTable(name)},
		sqlstore.DataColumns(len(t.Columns)),
		pgx.CopyFromRows(sqlstore.RowArgs(t)),
	)
	if err != nil {
		return fmt.Errorf("snapshot: postgres: copy %s: %w", name, err)
	}
	if n != int64(t.Len()) {
		return fmt.Errorf("snapshot: postgres: copy %s: copied %d of %d rows", name, n, t.Len())
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("snapshot: postgres: commit %s: %w", name, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, name string) (*table.Table, error) {
	if err := snapshot.ValidName(name); err != nil {
		return nil, err
	}
	var (
		rawCols string
		count   int64
	)
	err := s.pool.QueryRow(ctx, Dialect.SelectMetaSQL(), name).Scan(&rawCols, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &snapshot.NotFoundError{Kind: "postgres", Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: postgres: load %s: %w", name, err)
	}
	columns, err := sqlstore.DecodeColumns(rawCols)
	if err != nil {
		return nil, fmt.Errorf("snapshot: postgres: load %s: %w", name, err)
	}

	rows, err := s.pool.Query(ctx, Dialect.SelectDataSQL(name, len(columns)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: postgres: load %s: %w", name, err)
	}
	out, err := collect(name, columns, rows)
	if err != nil {
		return nil, fmt.Errorf("snapshot: postgres: load %s: %w", name, err)
	}
	if int64(out.Len()) != count {
		return nil, fmt.Errorf("snapshot: postgres: load %s: expected %d rows, read %d", name, count, out.Len())
	}
	return out, nil
}

// collect turns "line, c0..cN" result rows into a table. Values arrive as
// text or NULL.
func collect(name string, columns []string, rows pgx.Rows) (*table.Table, error) {
	defer rows.Close()
	out := table.New(name, columns...)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		if len(vals) != len(columns)+1 {
			return nil, fmt.Errorf("expected %d fields, got %d", len(columns)+1, len(vals))
		}
		line, _ := vals[0].(int64)
		r := table.Row{V: make([]string, len(columns)), Line: int(line)}
		for i, v := range vals[1:] {
			if v != nil {
				r.V[i] = fmt.Sprint(v)
			}
		}
		out.Rows = append(out.Rows, r)
	}
	return out, rows.Err()
}
