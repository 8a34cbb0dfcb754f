package loader

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// readJSON flattens a JSON document into rows.
//
// Accepted shapes:
//   - a root array of objects
//   - a root object with an array-of-objects field (envelope; the first such
//     field wins, e.g. {"data": [...]})
//   - a single root object (one row)
//
// Scalar members become cells; nested objects and arrays are kept as raw JSON
// text. Columns appear in first-seen order across all rows.
func readJSON(path string) ([]string, [][]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	if !gjson.ValidBytes(b) {
		return nil, nil, &LayoutError{Path: path, Detail: "invalid JSON"}
	}
	root := gjson.ParseBytes(b)

	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.IsObject():
		root.ForEach(func(_, v gjson.Result) bool {
			if v.IsArray() && len(v.Array()) > 0 && v.Array()[0].IsObject() {
				items = v.Array()
				return false
			}
			return true
		})
		if items == nil {
			items = []gjson.Result{root}
		}
	default:
		return nil, nil, &LayoutError{Path: path, Detail: "JSON root must be an object or array"}
	}

	var header []string
	pos := map[string]int{}
	rows := make([]map[int]string, 0, len(items))
	for _, it := range items {
		if !it.IsObject() {
			continue
		}
		row := map[int]string{}
		it.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			ix, ok := pos[key]
			if !ok {
				ix = len(header)
				pos[key] = ix
				header = append(header, key)
			}
			row[ix] = jsonCell(v)
			return true
		})
		rows = append(rows, row)
	}

	records := make([][]string, len(rows))
	for i, row := range rows {
		rec := make([]string, len(header))
		for ix, v := range row {
			rec[ix] = v
		}
		records[i] = rec
	}
	return header, records, nil
}

func jsonCell(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.JSON:
		return v.Raw
	default:
		return v.String()
	}
}
