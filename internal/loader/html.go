package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// readHTML reads the first <table> of an HTML export. The header is the first
// row containing <th> cells, or the first row when no <th> exists.
func readHTML(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: parse html %s: %w", path, err)
	}
	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, nil, &LayoutError{Path: path, Detail: "no <table> element"}
	}

	var (
		header []string
		rows   [][]string
	)
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if header == nil {
			if th := tr.Find("th"); th.Length() > 0 {
				header = cellTexts(th)
				return
			}
		}
		cells := cellTexts(tr.Find("td"))
		if len(cells) == 0 {
			return
		}
		rows = append(rows, cells)
	})
	if header == nil {
		if len(rows) == 0 {
			return nil, nil, nil
		}
		header, rows = rows[0], rows[1:]
	}
	return header, rows, nil
}

func cellTexts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.TrimSpace(c.Text()))
	})
	return out
}
