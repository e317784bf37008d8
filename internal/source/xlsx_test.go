package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_SkipsTitleRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Hinnasto": {
			{"Price list 2024"},
			{"Brand", "Model", "Package", "Year", "Price"},
			{"LYNX", "Rave", "RE", "2024", "18990"},
			{"", "", "", "", ""},
			{"SKI-DOO", "Summit X", "", "2024", "23490"},
		},
	})

	entries, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Rave", entries[0].Model)
	assert.Equal(t, 3, entries[0].SourceRow)
	assert.Equal(t, "Summit X", entries[1].Model)
	assert.Equal(t, 5, entries[1].SourceRow)
}

func TestReadXLSX_NoHeader(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a", "b"}, {"1", "2"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"Brand"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
}

func TestLoadFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"Brand", "Model", "Year"}, {"LYNX", "Rave", "2024"}},
	})

	entries, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
