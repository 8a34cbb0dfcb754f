// Package sqlite stores snapshots in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"leadetl/internal/snapshot"
	"leadetl/internal/snapshot/sqlstore"
)

// Dialect is the SQLite syntax. modernc.org/sqlite allows 32766 bind
// parameters; batches stay well below that.
var Dialect = sqlstore.Dialect{
	Name:            "sqlite",
	Quote:           sqlstore.DoubleQuote,
	Placeholder:     func(int) string { return "?" },
	CreateIfMissing: sqlstore.CreateTableIfNotExists(sqlstore.DoubleQuote),
	KeyType:         "TEXT",
	TextType:        "TEXT",
	IntType:         "INTEGER",
	MaxParams:       999,
}

func init() {
	snapshot.Register("sqlite", func(ctx context.Context, cfg snapshot.Config) (snapshot.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Open opens (creating when missing) the database at dsn and prepares the
// meta table.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("snapshot: sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer; the pipeline is sequential.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := sqlstore.New(db, Dialect)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
