package matching

import (
	"github.com/sells-group/catalog-resolver/internal/catalog"
	"github.com/sells-group/catalog-resolver/internal/lookup"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// Deterministic matches by exact lookup key: the canonical key first, then
// each variation in order. At most 1+lookup.MaxVariations lookups are made.
type Deterministic struct{}

// Method implements Strategy.
func (Deterministic) Method() model.MatchMethod { return model.MatchDeterministic }

// Match returns the first catalog model found and the keys tried.
func (Deterministic) Match(e model.RawEntry, idx *catalog.Index) (*model.BaseCatalogModel, []string) {
	keys := lookup.Keys(e)
	tried := make([]string, 0, len(keys))
	for _, k := range keys {
		tried = append(tried, k)
		if m, ok := idx.Lookup(k); ok {
			return m, tried
		}
	}
	return nil, tried
}

func (d Deterministic) attempt(e model.RawEntry, idx *catalog.Index) attempt {
	m, tried := d.Match(e, idx)
	if m == nil {
		return attempt{keys: tried, candidates: -1}
	}
	return attempt{base: m, confidence: 1.0, accepted: true, keys: tried, candidates: -1}
}
