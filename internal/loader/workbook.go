package loader

import (
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"
)

// Sheets lists the sheet names of a workbook in tab order.
func Sheets(path string) ([]string, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// SheetGrid returns the raw cell grid of one sheet, without header handling.
// Reports with several stacked sections (call-center agent sheets) are parsed
// from this grid by the caller.
func SheetGrid(path, sheet string) ([][]string, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sheetRows(f, path, sheet)
}

func readWorkbook(path string, opt Options) ([]string, [][]string, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	rows, err := sheetRows(f, path, opt.Sheet)
	if err != nil {
		return nil, nil, err
	}
	header, records := splitHeader(rows, opt)
	return header, records, nil
}

func openWorkbook(path string) (*excelize.File, error) {
	// Raw values keep long numeric ids and phone numbers intact instead of
	// rendering them through the cell number format.
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("loader: open workbook %s: %w", path, err)
	}
	return f, nil
}

func sheetRows(f *excelize.File, path, sheet string) ([][]string, error) {
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("loader: %s: %w: workbook has no sheets", path, ErrSheetNotFound)
		}
		sheet = list[0]
	} else if !slices.Contains(f.GetSheetList(), sheet) {
		return nil, fmt.Errorf("loader: %s: %w: %q", path, ErrSheetNotFound, sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("loader: read sheet %q of %s: %w", sheet, path, err)
	}
	return rows, nil
}
