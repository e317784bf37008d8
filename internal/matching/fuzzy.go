package matching

import (
	"strings"

	"github.com/sells-group/catalog-resolver/internal/catalog"
	"github.com/sells-group/catalog-resolver/internal/lookup"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// Field weights for fuzzy scoring.
const (
	WeightModel  = 0.4
	WeightBrand  = 0.3
	WeightYear   = 0.2
	WeightEngine = 0.1
)

// DefaultFuzzyThreshold is the minimum accepted fuzzy score.
const DefaultFuzzyThreshold = 0.8

// Fuzzy scores brand/year-filtered candidates by weighted field similarity.
type Fuzzy struct {
	Threshold float64
}

// NewFuzzy creates a fuzzy matcher. A non-positive threshold selects the default.
func NewFuzzy(threshold float64) Fuzzy {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return Fuzzy{Threshold: threshold}
}

// Method implements Strategy.
func (Fuzzy) Method() model.MatchMethod { return model.MatchFuzzy }

// Match returns the best-scoring candidate and its score. Candidates whose
// brand or year differ from the entry are discarded first; when none remain
// it returns (nil, 0). The threshold is not applied here.
func (f Fuzzy) Match(e model.RawEntry, candidates []*model.BaseCatalogModel) (*model.BaseCatalogModel, float64) {
	var best *model.BaseCatalogModel
	bestScore := 0.0
	for _, c := range candidates {
		if c == nil || !c.SameBrandYear(e.Brand, e.Year) {
			continue
		}
		s := f.Score(e, c)
		if best == nil || s > bestScore || (s == bestScore && c.LookupKey < best.LookupKey) {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

// Score computes the weighted similarity of one candidate, rounded to three
// decimals. Brand or year mismatch scores exactly 0. The engine factor only
// counts when the entry carries engine text.
func (f Fuzzy) Score(e model.RawEntry, c *model.BaseCatalogModel) float64 {
	if !c.SameBrandYear(e.Brand, e.Year) {
		return 0
	}

	sum := WeightModel*ModelSimilarity(e.Model, c.ModelFamily) + WeightBrand + WeightYear
	total := WeightModel + WeightBrand + WeightYear

	if strings.TrimSpace(e.EngineText) != "" {
		total += WeightEngine
		if engineCompatible(e.EngineText, c.Options.Engine) {
			sum += WeightEngine
		}
	}
	return model.Round3(model.Clamp(sum / total))
}

// Accepts reports whether a score meets the threshold.
func (f Fuzzy) Accepts(score float64) bool {
	return score >= f.Threshold
}

func (f Fuzzy) attempt(e model.RawEntry, idx *catalog.Index) attempt {
	candidates := idx.Candidates(e.Brand, e.Year)
	if len(candidates) == 0 {
		return attempt{}
	}
	best, score := f.Match(e, candidates)
	return attempt{
		base:       best,
		confidence: score,
		accepted:   best != nil && f.Accepts(score),
		candidates: len(candidates),
	}
}

// ModelSimilarity compares two model names: 1.0 when equal, 0.8 when one
// contains the other, otherwise the Jaccard index of their word sets.
func ModelSimilarity(a, b string) float64 {
	na, nb := lookup.Normalize(a), lookup.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.8
	}
	return Jaccard(strings.Fields(na), strings.Fields(nb))
}

// Jaccard returns |A∩B| / |A∪B| over the token sets.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func engineCompatible(text string, engines model.OptionSet) bool {
	for _, id := range engines.IDs() {
		if lookup.Contains(text, engines.Options[id].Label) {
			return true
		}
	}
	return false
}
