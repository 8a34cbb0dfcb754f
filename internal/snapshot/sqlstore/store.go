package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadetl/internal/snapshot"
	"leadetl/internal/table"
)

// Store implements snapshot.Store over database/sql.
type Store struct {
	db  *sql.DB
	d   Dialect
	now func() time.Time
}

// New wraps an open database. Call Init before the first Save.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, d: d, now: time.Now}
}

// Init creates the meta table when missing.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.CreateMetaSQL()); err != nil {
		return fmt.Errorf("snapshot: %s: create %s: %w", s.d.Name, MetaTable, err)
	}
	return nil
}

// Save replaces the snapshot in one transaction.
func (s *Store) Save(ctx context.Context, name string, t *table.Table) (err error) {
	if err := snapshot.ValidName(name); err != nil {
		return err
	}
	meta, err := MetaArgs(name, t, s.now())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: %s: begin: %w", s.d.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	n := len(t.Columns)
	for _, q := range []string{s.d.DropDataSQL(name), s.d.CreateDataSQL(name, n)} {
		if _, err = tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("snapshot: %s: save %s: %w", s.d.Name, name, err)
		}
	}
	if _, err = tx.ExecContext(ctx, s.d.DeleteMetaSQL(), name); err != nil {
		return fmt.Errorf("snapshot: %s: save %s: %w", s.d.Name, name, err)
	}
	if _, err = tx.ExecContext(ctx, s.d.InsertMetaSQL(), meta...); err != nil {
		return fmt.Errorf("snapshot: %s: save %s: %w", s.d.Name, name, err)
	}

	cols := DataColumns(n)
	batch := s.d.BatchRows(len(cols))
	rows := RowArgs(t)
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		args := make([]any, 0, (end-start)*len(cols))
		for _, r := range rows[start:end] {
			args = append(args, r...)
		}
		if _, err = tx.ExecContext(ctx, s.d.InsertSQL(DataTable(name), cols, end-start), args...); err != nil {
			return fmt.Errorf("snapshot: %s: save %s rows %d-%d: %w", s.d.Name, name, start, end, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: %s: commit %s: %w", s.d.Name, name, err)
	}
	return nil
}

// Load reads a snapshot back in saved row order.
func (s *Store) Load(ctx context.Context, name string) (*table.Table, error) {
	if err := snapshot.ValidName(name); err != nil {
		return nil, err
	}
	var (
		rawCols string
		count   int64
	)
	err := s.db.QueryRowContext(ctx, s.d.SelectMetaSQL(), name).Scan(&rawCols, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &snapshot.NotFoundError{Kind: s.d.Name, Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s: load %s: %w", s.d.Name, name, err)
	}
	columns, err := DecodeColumns(rawCols)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s: load %s: %w", s.d.Name, name, err)
	}

	rows, err := s.db.QueryContext(ctx, s.d.SelectDataSQL(name, len(columns)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s: load %s: %w", s.d.Name, name, err)
	}
	defer rows.Close()

	out := table.New(name, columns...)
	for rows.Next() {
		var line int64
		vals := make([]sql.NullString, len(columns))
		dest := make([]any, 0, len(columns)+1)
		dest = append(dest, &line)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("snapshot: %s: load %s: %w", s.d.Name, name, err)
		}
		r := table.Row{V: make([]string, len(columns)), Line: int(line)}
		for i, v := range vals {
			r.V[i] = v.String
		}
		out.Rows = append(out.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: %s: load %s: %w", s.d.Name, name, err)
	}
	if int64(out.Len()) != count {
		return nil, fmt.Errorf("snapshot: %s: load %s: expected %d rows, read %d", s.d.Name, name, count, out.Len())
	}
	return out, nil
}

func (s *Store) Close() error { return s.db.Close() }

// MetaArgs returns the bind arguments of InsertMetaSQL.
func MetaArgs(name string, t *table.Table, now time.Time) ([]any, error) {
	cols := t.Columns
	if cols == nil {
		cols = []string{}
	}
	raw, err := json.Marshal(cols)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode columns of %s: %w", name, err)
	}
	return []any{name, string(raw), int64(t.Len()), now.UTC().Format(time.RFC3339Nano)}, nil
}

// DecodeColumns parses the columns field of the meta table.
func DecodeColumns(raw string) ([]string, error) {
	var cols []string
	if err := json.Unmarshal([]byte(raw), &cols); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}
	return cols, nil
}

// RowArgs flattens the table into rows of DataColumns order: seq, line and
// the values.
func RowArgs(t *table.Table) [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, 0, len(t.Columns)+2)
		row = append(row, int64(i), int64(r.Line))
		for j := range t.Columns {
			v := ""
			if j < len(r.V) {
				v = r.V[j]
			}
			row = append(row, v)
		}
		out[i] = row
	}
	return out
}
