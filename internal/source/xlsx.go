package source

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// XLSXOptions configures ReadXLSX.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	Strict     bool
}

// ReadXLSX parses the first header-led sheet of a workbook. Rows above the
// header (titles, notes) are skipped; the header is the first row that
// names brand, model and year.
func ReadXLSX(path string, opts XLSXOptions) ([]model.RawEntry, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var (
		h       Header
		entries []model.RawEntry
	)
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if h == nil {
			if parsed, err := ParseHeader(cells); err == nil {
				h = parsed
			}
			continue
		}
		if blank(cells) {
			continue
		}
		e, err := ParseRow(h, cells, i+1)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			zap.L().Warn("xlsx: skipping row", zap.Int("row", i+1), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	if h == nil {
		return nil, eris.Errorf("xlsx: no header row in sheet %q", sheet.Name)
	}
	return entries, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
