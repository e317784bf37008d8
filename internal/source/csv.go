package source

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// CSVOptions configures ReadCSV.
type CSVOptions struct {
	Delimiter rune // 0 sniffs ',' or ';' from the header line
	Comment   rune
	Strict    bool // fail on the first bad row instead of skipping it
}

// ReadCSV parses a header-led price list. Rows that fail to parse are
// logged and skipped unless opts.Strict is set.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.RawEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "csv: read input")
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = opts.Delimiter
	if reader.Comma == 0 {
		reader.Comma = sniffDelimiter(text)
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	cols, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, eris.New("csv: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	h, err := ParseHeader(cols)
	if err != nil {
		return nil, err
	}

	var entries []model.RawEntry
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		e, err := ParseRow(h, record, line)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			zap.L().Warn("csv: skipping row", zap.Int("line", line), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func sniffDelimiter(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
