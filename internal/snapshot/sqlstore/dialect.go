// Package sqlstore holds the SQL shared by the relational snapshot backends.
//
// Layout:
//   - snapshot_meta has one row per snapshot: its name, its column names as a
//     JSON array, its row count and when it was saved.
//   - snapshot_<name> holds the rows: seq (row order), line (source line) and
//     one text column c0..cN per table column.
//
// Column names live in the meta table rather than in the DDL because feature
// names exceed identifier limits (63 bytes in Postgres).
package sqlstore

import (
	"fmt"
	"strings"
)

// MetaTable is the name of the per-snapshot metadata table.
const MetaTable = "snapshot_meta"

// Dialect captures the syntax differences between backends.
type Dialect struct {
	Name string

	// Quote quotes one identifier.
	Quote func(string) string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// CreateIfMissing wraps a CREATE TABLE body for a table that may exist.
	CreateIfMissing func(table, defs string) string

	KeyType  string
	TextType string
	IntType  string

	// MaxParams bounds the bind parameters of one statement.
	MaxParams int
}

// DataTable is the table holding the rows of snapshot name.
func DataTable(name string) string { return "snapshot_" + name }

// DataColumns returns seq, line and the n value columns, in storage order.
func DataColumns(n int) []string {
	out := make([]string, 0, n+2)
	out = append(out, "seq", "line")
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("c%d", i))
	}
	return out
}

func (d Dialect) quoteAll(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return strings.Join(q, ", ")
}

// CreateMetaSQL creates the meta table when missing.
func (d Dialect) CreateMetaSQL() string {
	defs := fmt.Sprintf("%s %s NOT NULL PRIMARY KEY, %s %s NOT NULL, %s %s NOT NULL, %s %s NOT NULL",
		d.Quote("name"), d.KeyType,
		d.Quote("columns"), d.TextType,
		d.Quote("row_count"), d.IntType,
		d.Quote("saved_at"), d.KeyType,
	)
	return d.CreateIfMissing(MetaTable, defs)
}

// DropDataSQL drops the rows table of a snapshot.
func (d Dialect) DropDataSQL(name string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(DataTable(name))
}

// CreateDataSQL creates the rows table of a snapshot with n value columns.
func (d Dialect) CreateDataSQL(name string, n int) string {
	cols := DataColumns(n)
	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := d.TextType
		if i < 2 {
			typ = d.IntType + " NOT NULL"
		}
		defs[i] = d.Quote(c) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(DataTable(name)), strings.Join(defs, ", "))
}

// DeleteMetaSQL removes the meta row of one snapshot.
func (d Dialect) DeleteMetaSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.Quote(MetaTable), d.Quote("name"), d.Placeholder(1))
}

// InsertMetaSQL inserts the meta row of one snapshot.
func (d Dialect) InsertMetaSQL() string {
	return d.InsertSQL(MetaTable, []string{"name", "columns", "row_count", "saved_at"}, 1)
}

// SelectMetaSQL reads the columns and row count of one snapshot.
func (d Dialect) SelectMetaSQL() string {
	return fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = %s",
		d.Quote("columns"), d.Quote("row_count"), d.Quote(MetaTable), d.Quote("name"), d.Placeholder(1))
}

// SelectDataSQL reads line and the n value columns in row order.
func (d Dialect) SelectDataSQL(name string, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		d.quoteAll(DataColumns(n)[1:]), d.Quote(DataTable(name)), d.Quote("seq"))
}

// InsertSQL builds a multi-row INSERT with numbered placeholders.
//
// Constraints:
//   - columns must be non-empty.
//   - rows*len(columns) must not exceed MaxParams; use BatchRows.
func (d Dialect) InsertSQL(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Quote(table))
	b.WriteString(" (")
	b.WriteString(d.quoteAll(columns))
	b.WriteString(") VALUES ")
	p := 1
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			p++
		}
		b.WriteString(")")
	}
	return b.String()
}

// BatchRows is the number of rows of width cols that fit in one INSERT.
func (d Dialect) BatchRows(cols int) int {
	if cols <= 0 {
		return 1
	}
	return max(1, d.MaxParams/cols)
}

// DoubleQuote quotes an identifier the ANSI way, as SQLite and Postgres do.
func DoubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// CreateTableIfNotExists is the CreateIfMissing of SQLite and Postgres.
func CreateTableIfNotExists(quote func(string) string) func(table, defs string) string {
	return func(table, defs string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), defs)
	}
}
