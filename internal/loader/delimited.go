package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/charmap"
)

// readDelimited reads a delimited text file. Malformed records abort the load:
// a partially read source is worse than a failed stage.
func readDelimited(ctx context.Context, path string, opt Options) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if opt.Encoding == Latin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(f)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}

	var rows [][]string
	line := 0
	for {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("loader: %s line %d: %w", path, line, err)
		}
		rows = append(rows, rec)
	}

	header, records := splitHeader(rows, opt)
	return header, records, nil
}
