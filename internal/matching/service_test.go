package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-resolver/internal/catalog"
	"github.com/sells-group/catalog-resolver/internal/model"
)

func newIndex(t *testing.T, models ...model.BaseCatalogModel) *catalog.Index {
	t.Helper()
	idx, err := catalog.NewIndex(models)
	require.NoError(t, err)
	return idx
}

func raveEntry() model.RawEntry {
	return model.RawEntry{Brand: "LYNX", Model: "Rave", Package: "RE", Year: 2026}
}

func TestMatchOne_ExactKey(t *testing.T) {
	idx := newIndex(t, model.BaseCatalogModel{
		Brand: "LYNX", ModelFamily: "Rave", Package: "RE", Year: 2026, LookupKey: "LYNX_Rave_RE_2026",
	})
	svc := NewService(idx, 0)

	r := svc.MatchOne(raveEntry())
	require.True(t, r.Matched)
	assert.Equal(t, model.MatchDeterministic, r.Method)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, "LYNX_Rave_RE_2026", r.BaseKey)
	assert.Equal(t, []string{"LYNX_Rave_RE_2026"}, r.AttemptedKeys)
	assert.NoError(t, Err(r))
}

func TestMatchOne_PackageStrippedVariation(t *testing.T) {
	idx := newIndex(t, model.BaseCatalogModel{
		Brand: "LYNX", ModelFamily: "Rave", Year: 2026, LookupKey: "LYNX_Rave_2026",
	})
	svc := NewService(idx, 0)

	r := svc.MatchOne(raveEntry())
	require.True(t, r.Matched)
	assert.Equal(t, model.MatchDeterministic, r.Method)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, "LYNX_Rave_2026", r.BaseKey)
	assert.Equal(t, []string{"LYNX_Rave_RE_2026", "LYNX_Rave_2026"}, r.AttemptedKeys)
}

func TestMatchOne_FuzzyFallback(t *testing.T) {
	idx := newIndex(t,
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Rave RE 850", Year: 2026},
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Adventure 900", Year: 2026},
	)
	svc := NewService(idx, 0.8)

	r := svc.MatchOne(model.RawEntry{Brand: "LYNX", Model: "Rave RE", Year: 2026})
	require.True(t, r.Matched)
	assert.Equal(t, model.MatchFuzzy, r.Method)
	assert.Equal(t, "Rave RE 850", r.Base.ModelFamily)
	assert.GreaterOrEqual(t, r.Confidence, 0.8)
	// canonical plus four variations were tried before falling back
	assert.Len(t, r.AttemptedKeys, 5)
}

func TestMatchOne_NoCandidateForBrand(t *testing.T) {
	idx := newIndex(t,
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Rave", Year: 2026},
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Adventure", Year: 2026},
	)
	svc := NewService(idx, 0)

	r := svc.MatchOne(model.RawEntry{Brand: "SKI-DOO", Model: "Rave", Year: 2026})
	assert.False(t, r.Matched)
	assert.Equal(t, model.MatchNone, r.Method)
	assert.Equal(t, 0.0, r.Confidence)
	assert.Equal(t, model.ReasonNoCandidates, r.Reason)
	assert.ErrorIs(t, Err(r), ErrNoCandidate)
}

func TestMatchOne_LowConfidenceReportsBestScore(t *testing.T) {
	idx := newIndex(t, model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Adventure Grand Tourer", Year: 2026})
	svc := NewService(idx, 0.95)

	r := svc.MatchOne(model.RawEntry{Brand: "LYNX", Model: "Adventure LX", Year: 2026})
	assert.False(t, r.Matched)
	assert.Equal(t, model.MatchNone, r.Method)
	assert.Equal(t, model.ReasonLowConfidence, r.Reason)
	assert.Greater(t, r.Confidence, 0.0)
	assert.Less(t, r.Confidence, 0.95)
	assert.ErrorIs(t, Err(r), ErrLowConfidence)
}

func TestMatchOne_Deterministic(t *testing.T) {
	idx := newIndex(t,
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Rave RE 850", Year: 2026},
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Rave RE 600", Year: 2026},
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Rave", Year: 2026},
	)
	svc := NewService(idx, 0)

	entries := []model.RawEntry{
		{Brand: "LYNX", Model: "Rave RE", Year: 2026},
		{Brand: "LYNX", Model: "Rave", Package: "RE", Year: 2026},
		{Brand: "LYNX", Model: "Xterrain", Year: 2026},
		{Brand: "POLARIS", Model: "Rave", Year: 2026},
	}
	for _, e := range entries {
		assert.Equal(t, svc.MatchOne(e), svc.MatchOne(e))
	}
}

func TestMatchBatch_PreservesOrderAndStats(t *testing.T) {
	idx := newIndex(t,
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Rave", Package: "RE", Year: 2026},
		model.BaseCatalogModel{Brand: "LYNX", ModelFamily: "Adventure 900", Year: 2026},
	)
	svc := NewService(idx, 0)

	entries := []model.RawEntry{
		raveEntry(),
		{Brand: "LYNX", Model: "Adventure", Year: 2026},
		{Brand: "SKI-DOO", Model: "Summit", Year: 2026},
	}
	results, stats, err := svc.MatchBatch(context.Background(), entries, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, model.MatchDeterministic, results[0].Method)
	assert.Equal(t, model.MatchFuzzy, results[1].Method)
	assert.Equal(t, model.MatchNone, results[2].Method)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Deterministic)
	assert.Equal(t, 1, stats.Fuzzy)
	assert.Equal(t, 1, stats.NoCandidates)
	assert.InDelta(t, 0.667, stats.MatchRate, 0.001)
}

func TestMatchBatch_CancelledContext(t *testing.T) {
	svc := NewService(newIndex(t), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.MatchBatch(ctx, []model.RawEntry{raveEntry()}, 1)
	require.Error(t, err)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, BatchStats{}, Summarize(nil))
}
