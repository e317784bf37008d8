package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// LoadFile reads entries from a .csv, .txt or .xlsx file.
func LoadFile(ctx context.Context, path string) ([]model.RawEntry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "source: open entries")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, CSVOptions{})
	default:
		return nil, eris.Errorf("source: unsupported entries file %q", path)
	}
}
