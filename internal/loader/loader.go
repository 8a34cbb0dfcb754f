// Package loader reads heterogeneous tabular sources (delimited text,
// spreadsheet workbooks, JSON documents and HTML table exports) into
// *table.Table values.
//
// The file extension selects the reader. Unknown extensions are rejected with
// an *UnsupportedExtensionError; missing or unreadable files surface the
// underlying os error. Both are fatal for the calling stage.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"leadetl/internal/table"
)

// ErrUnsupportedExtension is matched by every *UnsupportedExtensionError.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// ErrSheetNotFound is returned when a requested workbook sheet does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrNoMatch is matched by every *NoMatchError.
var ErrNoMatch = errors.New("no input files matched")

// NoMatchError reports an input pattern that matched no files.
type NoMatchError struct {
	Pattern string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("loader: %q: no input files matched", e.Pattern)
}

func (e *NoMatchError) Is(target error) bool { return target == ErrNoMatch }

// UnsupportedExtensionError names the rejected file.
type UnsupportedExtensionError struct {
	Path string
	Ext  string
}

func (e *UnsupportedExtensionError) Error() string {
	return fmt.Sprintf("loader: %s: unsupported file extension %q", e.Path, e.Ext)
}

func (e *UnsupportedExtensionError) Is(target error) bool { return target == ErrUnsupportedExtension }

// LayoutError reports a source whose physical layout does not match what the
// reader was told to expect (for example a report section with the wrong
// number of columns).
type LayoutError struct {
	Path   string
	Detail string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("loader: %s: unexpected layout: %s", e.Path, e.Detail)
}

// Encoding of delimited text sources.
type Encoding string

const (
	UTF8   Encoding = "utf-8"
	Latin1 Encoding = "iso-8859-1"
)

// Options tune how a source is read. The zero value reads the first sheet or
// the whole file, with the header on the first row, UTF-8, comma separated,
// cells trimmed.
type Options struct {
	// Sheet selects a workbook sheet by name. Empty means the first sheet.
	Sheet string

	// HeaderRow is the 0-based row holding column names. Rows above it are
	// discarded.
	HeaderRow int

	// MaxColumns keeps only the first N columns when > 0.
	MaxColumns int

	// Encoding of delimited text. Empty means UTF-8.
	Encoding Encoding

	// Comma is the field delimiter for delimited text. Zero means ','.
	Comma rune

	// HeaderMap renames source headers (after trimming) on load.
	HeaderMap map[string]string

	// KeepSpace disables trimming of header and cell whitespace.
	KeepSpace bool
}

// Load reads one file into a table named after the file.
func Load(ctx context.Context, path string, opt Options) (*table.Table, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := strings.ToLower(filepath.Ext(path))

	var (
		header  []string
		records [][]string
		err     error
	)
	switch ext {
	case ".csv", ".txt", ".tsv":
		if ext == ".tsv" && opt.Comma == 0 {
			opt.Comma = '\t'
		}
		header, records, err = readDelimited(ctx, path, opt)
	case ".xlsx", ".xlsm":
		header, records, err = readWorkbook(path, opt)
	case ".json":
		header, records, err = readJSON(path)
	case ".html", ".htm":
		header, records, err = readHTML(path)
	default:
		return nil, &UnsupportedExtensionError{Path: path, Ext: ext}
	}
	if err != nil {
		return nil, err
	}

	header = normalizeHeader(header, opt)
	if opt.MaxColumns > 0 && len(header) > opt.MaxColumns {
		header = header[:opt.MaxColumns]
	}
	if !opt.KeepSpace {
		for _, rec := range records {
			for i, v := range rec {
				rec[i] = strings.TrimSpace(v)
			}
		}
	}
	return table.FromRecords(name, header, records)
}

// LoadGlob loads every file matched by pattern (see Glob) and returns the
// tables in path order together with the matched paths.
func LoadGlob(ctx context.Context, pattern string, opt Options) ([]*table.Table, []string, error) {
	paths, err := Glob(pattern)
	if err != nil {
		return nil, nil, err
	}
	out := make([]*table.Table, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		t, err := Load(ctx, p, opt)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, t)
	}
	return out, paths, nil
}

// normalizeHeader trims names, strips a UTF-8 BOM, applies HeaderMap and makes
// every name unique ("Zip", "Zip.1") and non-empty ("Unnamed: 3").
func normalizeHeader(h []string, opt Options) []string {
	out := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, name := range h {
		if i == 0 {
			name = strings.TrimPrefix(name, "\uFEFF")
		}
		if !opt.KeepSpace {
			name = strings.TrimSpace(name)
		}
		if mapped, ok := opt.HeaderMap[name]; ok {
			name = mapped
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// splitHeader separates the header row from data rows according to opt.
func splitHeader(rows [][]string, opt Options) ([]string, [][]string) {
	if opt.HeaderRow >= len(rows) {
		return nil, nil
	}
	return rows[opt.HeaderRow], rows[opt.HeaderRow+1:]
}
