package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-resolver/internal/config"
	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/pipeline"
	"github.com/sells-group/catalog-resolver/internal/source"
	"github.com/sells-group/catalog-resolver/internal/store"
	anthropicpkg "github.com/sells-group/catalog-resolver/pkg/anthropic"
)

const testCatalog = `
models:
  - brand: LYNX
    model_family: Rave RE
    year: 2026
    lookup_key: LYNX_Rave_RE_2026
    options:
      engine:
        default: "850"
        options:
          "850":
            label: 850 E-TEC
            displacement_cc: 849
          "600":
            label: 600R E-TEC
            displacement_cc: 599
      track:
        options:
          "137":
            label: 137in
            length_mm: 3487
            width_mm: 381
    features:
      - Heated grips
`

const testSeed = `
options:
  - name: Shot starter
    brand: LYNX
    model_family: Rave RE
    modifications:
      add_features: [SHOT starter]
`

const testEntries = `Brand,Model,Package,Engine,Spring Options,Price,Currency,Market,Year
LYNX,Rave,RE,600R E-TEC,Shot starter,18990,EUR,FI,2026
SKI-DOO,Summit X,,850 E-TEC,,23490,EUR,FI,2026
`

func writeFixtures(t *testing.T) (dir string, c *config.Config) {
	t.Helper()
	dir = t.TempDir()
	for name, body := range map[string]string{
		"catalog.yaml": testCatalog,
		"known.yaml":   testSeed,
		"entries.csv":  testEntries,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	c = &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "resolver.db")
	c.Catalog.Path = filepath.Join(dir, "catalog.yaml")
	c.Registry.SeedPath = filepath.Join(dir, "known.yaml")
	c.Matching.FuzzyThreshold = 0.8
	c.Batch.MaxConcurrentEntries = 2
	c.Registry.CacheTTLSecs = 60
	c.Reasoning.MaxAttempts = 1
	return dir, c
}

func TestInitResolver_EndToEnd(t *testing.T) {
	dir, c := writeFixtures(t)
	ctx := context.Background()

	st, err := initStore(ctx, c)
	require.NoError(t, err)
	env, err := initResolver(ctx, c, st, nil)
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Reasoner)

	entries, err := source.LoadFile(ctx, filepath.Join(dir, "entries.csv"))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	report, err := env.Runner.Run(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Resolved)
	assert.Equal(t, 1, report.Summary.Unmatched)

	o := report.Outcomes[0]
	require.Equal(t, pipeline.StateResolved, o.State)
	assert.True(t, o.Persisted)
	assert.Equal(t, "600", o.Product.Spec.Engine.OptionID)
	assert.Contains(t, o.Product.Spec.Features, "SHOT starter")
	assert.Equal(t, model.StatusPassed, o.Product.Status)
	assert.GreaterOrEqual(t, o.Product.Confidence, 0.85)

	stored, err := st.GetResolvedProduct(ctx, o.Product.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Product.Status, stored.Status)
	assert.Len(t, stored.Trail, 5)

	path := filepath.Join(dir, "metrics.prom")
	require.NoError(t, prometheus.WriteToTextfile(path, env.Metrics))
	prom, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `resolver_entries_total{state="unmatched"} 1`)

	known, err := st.ListOptions(ctx, store.OptionFilter{Provenance: string(model.ProvenanceKnown)})
	require.NoError(t, err)
	require.Len(t, known, 1)
	assert.Equal(t, "Shot starter", known[0].Name)
}

func TestInitResolver_MissingCatalog(t *testing.T) {
	_, c := writeFixtures(t)
	c.Catalog.Path = filepath.Join(t.TempDir(), "nope.yaml")
	ctx := context.Background()

	st, err := initStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = initResolver(ctx, c, st, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load catalog")
}

func TestInitReasoner(t *testing.T) {
	c := &config.Config{}
	assert.Nil(t, initReasoner(c, nil), "disabled")

	c.Reasoning.Enabled = true
	assert.Nil(t, initReasoner(c, nil), "no key")

	c.Reasoning.MaxAttempts = 2
	c.Reasoning.RatePerSec = 1
	c.Reasoning.Burst = 1
	r := initReasoner(c, anthropicpkg.NewClient("sk-ant-test"))
	require.NotNil(t, r)
	assert.Empty(t, r.Breakers())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON("", &buf, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeJSON(path, nil, []string{"x"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []string{"x"}, got)
}
