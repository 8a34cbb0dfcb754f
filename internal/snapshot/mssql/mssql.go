// Package mssql stores snapshots in Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"leadetl/internal/snapshot"
	"leadetl/internal/snapshot/sqlstore"
)

// Dialect is the SQL Server syntax. A statement takes at most 2100
// parameters.
var Dialect = sqlstore.Dialect{
	Name:            "mssql",
	Quote:           ident,
	Placeholder:     func(n int) string { return fmt.Sprintf("@p%d", n) },
	CreateIfMissing: createIfMissing,
	KeyType:         "NVARCHAR(128)",
	TextType:        "NVARCHAR(MAX)",
	IntType:         "BIGINT",
	MaxParams:       2000,
}

func init() {
	snapshot.Register("mssql", func(ctx context.Context, cfg snapshot.Config) (snapshot.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Open connects with the "sqlserver" driver and prepares the meta table.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newStore(ctx, db)
}

func newStore(ctx context.Context, db *sql.DB) (*sqlstore.Store, error) {
	s := sqlstore.New(db, Dialect)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func createIfMissing(table, defs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(table, "'", "''"),
		ident(table),
		defs,
	)
}
