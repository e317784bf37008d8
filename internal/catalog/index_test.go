package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-resolver/internal/model"
)

func TestNewIndex_DerivesKeys(t *testing.T) {
	idx, err := NewIndex([]model.BaseCatalogModel{
		{Brand: "LYNX", ModelFamily: "Rave", Package: "RE", Year: 2026},
		{Brand: "LYNX", ModelFamily: "Adventure", Year: 2026, LookupKey: "LYNX_Adventure_2026"},
	})
	require.NoError(t, err)

	m, ok := idx.Lookup("LYNX_Rave_RE_2026")
	require.True(t, ok)
	assert.Equal(t, "Rave", m.ModelFamily)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []string{"LYNX_Adventure_2026", "LYNX_Rave_RE_2026"}, idx.Keys())
}

func TestNewIndex_RejectsDuplicates(t *testing.T) {
	_, err := NewIndex([]model.BaseCatalogModel{
		{Brand: "LYNX", ModelFamily: "Rave", Year: 2026},
		{Brand: "LYNX", ModelFamily: "Rave", Year: 2026},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate lookup key")
}

func TestNewIndex_RejectsIncompleteModel(t *testing.T) {
	_, err := NewIndex([]model.BaseCatalogModel{{Brand: "LYNX", Year: 2026}})
	require.Error(t, err)
}

func TestCandidates_FilterByBrandAndYear(t *testing.T) {
	idx, err := NewIndex([]model.BaseCatalogModel{
		{Brand: "LYNX", ModelFamily: "Rave RE 850", Year: 2026},
		{Brand: "LYNX", ModelFamily: "Adventure 900", Year: 2026},
		{Brand: "LYNX", ModelFamily: "Rave", Year: 2025},
		{Brand: "SKI-DOO", ModelFamily: "Summit", Year: 2026},
	})
	require.NoError(t, err)

	got := idx.Candidates("lynx", 2026)
	require.Len(t, got, 2)
	assert.Equal(t, "Adventure 900", got[0].ModelFamily)
	assert.Equal(t, "Rave RE 850", got[1].ModelFamily)

	assert.Empty(t, idx.Candidates("POLARIS", 2026))
}

func TestCandidates_ReturnsCopyOfGroup(t *testing.T) {
	idx, err := NewIndex([]model.BaseCatalogModel{
		{Brand: "LYNX", ModelFamily: "Rave", Year: 2026},
	})
	require.NoError(t, err)

	got := idx.Candidates("LYNX", 2026)
	got[0] = nil
	assert.NotNil(t, idx.Candidates("LYNX", 2026)[0])
}

const sampleCatalog = `
models:
  - brand: LYNX
    model_family: Rave
    package: RE
    year: 2026
    lookup_key: LYNX_Rave_RE_2026
    options:
      engine:
        default: "850"
        options:
          "600":
            label: Rotax 600R E-TEC
            displacement_cc: 599
            engine_type: E-TEC
          "850":
            label: Rotax 850 E-TEC
            displacement_cc: 849
            engine_type: E-TEC
      track:
        options:
          "137":
            label: 137in x 16in x 1.6in Ice Cobra
            length_mm: 3480
            width_mm: 406
            lug_mm: 41
    dimensions:
      dry_weight_kg: 218
    features:
      - Heated grips
`

func TestLoadYAML(t *testing.T) {
	models, err := LoadYAML(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, models, 1)

	m := models[0]
	assert.Equal(t, "LYNX_Rave_RE_2026", m.LookupKey)
	assert.Equal(t, 849, m.Options.Engine.Options["850"].DisplacementCC)
	assert.Equal(t, "850", m.Options.Engine.DefaultID())
	assert.Equal(t, "137", m.Options.Track.DefaultID())
	assert.Equal(t, 218, m.Dimensions.DryWeightKG)
	assert.Equal(t, []string{"Heated grips"}, m.Features)
}

func TestLoadYAML_UnknownField(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("models:\n  - brand: LYNX\n    colour: red\n"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	idx, err := LoadFile(path)
	require.NoError(t, err)
	_, ok := idx.Lookup("LYNX_Rave_RE_2026")
	assert.True(t, ok)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
