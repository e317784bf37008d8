// Package matching finds the base catalog model for a raw entry:
// deterministic key lookup first, weighted fuzzy scoring as fallback.
package matching

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-resolver/internal/catalog"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// Strategy is one matching variant. The set is closed: Deterministic and
// Fuzzy are the only implementations.
type Strategy interface {
	Method() model.MatchMethod
	attempt(e model.RawEntry, idx *catalog.Index) attempt
}

type attempt struct {
	base       *model.BaseCatalogModel
	confidence float64
	accepted   bool
	keys       []string
	candidates int // -1 when the strategy does not filter candidates
}

// Service orchestrates the strategies against one catalog snapshot.
type Service struct {
	index      *catalog.Index
	strategies []Strategy
}

// NewService creates a matching service using deterministic lookup followed
// by fuzzy matching at the given threshold.
func NewService(idx *catalog.Index, fuzzyThreshold float64) *Service {
	return &Service{
		index:      idx,
		strategies: []Strategy{Deterministic{}, NewFuzzy(fuzzyThreshold)},
	}
}

// Index returns the catalog snapshot the service matches against.
func (s *Service) Index() *catalog.Index {
	return s.index
}

// MatchOne matches a single entry. The result depends only on the entry and
// the snapshot, so repeated calls return identical results.
func (s *Service) MatchOne(e model.RawEntry) model.MatchResult {
	var (
		keys       []string
		bestScore  float64
		candidates = -1
	)

	for _, st := range s.strategies {
		a := st.attempt(e, s.index)
		keys = append(keys, a.keys...)
		if a.accepted {
			return model.MatchResult{
				Matched:       true,
				Base:          a.base,
				BaseKey:       a.base.LookupKey,
				Confidence:    model.Clamp(a.confidence),
				Method:        st.Method(),
				AttemptedKeys: keys,
			}
		}
		if a.candidates >= 0 {
			candidates = a.candidates
		}
		if a.confidence > bestScore {
			bestScore = a.confidence
		}
	}

	r := model.MatchResult{
		Method:        model.MatchNone,
		Confidence:    model.Clamp(bestScore),
		AttemptedKeys: keys,
	}
	if candidates == 0 {
		r.Reason = model.ReasonNoCandidates
		r.Confidence = 0
	} else {
		r.Reason = model.ReasonLowConfidence
	}
	return r
}

// BatchStats summarizes a batch of match results.
type BatchStats struct {
	Total             int     `json:"total"`
	Matched           int     `json:"matched"`
	Deterministic     int     `json:"deterministic"`
	Fuzzy             int     `json:"fuzzy"`
	Unmatched         int     `json:"unmatched"`
	NoCandidates      int     `json:"no_candidates"`
	LowConfidence     int     `json:"low_confidence"`
	MatchRate         float64 `json:"match_rate"`
	DeterministicRate float64 `json:"deterministic_rate"`
	FuzzyRate         float64 `json:"fuzzy_rate"`
	MeanConfidence    float64 `json:"mean_confidence"`
}

// Summarize aggregates match results. Mean confidence covers matched
// results only.
func Summarize(results []model.MatchResult) BatchStats {
	st := BatchStats{Total: len(results)}
	sum := 0.0
	for _, r := range results {
		if !r.Matched {
			st.Unmatched++
			switch r.Reason {
			case model.ReasonNoCandidates:
				st.NoCandidates++
			case model.ReasonLowConfidence:
				st.LowConfidence++
			}
			continue
		}
		st.Matched++
		sum += r.Confidence
		switch r.Method {
		case model.MatchDeterministic:
			st.Deterministic++
		case model.MatchFuzzy:
			st.Fuzzy++
		}
	}
	if st.Total > 0 {
		st.MatchRate = model.Round3(float64(st.Matched) / float64(st.Total))
		st.DeterministicRate = model.Round3(float64(st.Deterministic) / float64(st.Total))
		st.FuzzyRate = model.Round3(float64(st.Fuzzy) / float64(st.Total))
	}
	if st.Matched > 0 {
		st.MeanConfidence = model.Round3(sum / float64(st.Matched))
	}
	return st
}

// MatchBatch matches entries concurrently. Results keep input order.
func (s *Service) MatchBatch(ctx context.Context, entries []model.RawEntry, concurrency int) ([]model.MatchResult, BatchStats, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]model.MatchResult, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.MatchOne(e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, BatchStats{}, eris.Wrap(err, "matching: batch")
	}

	stats := Summarize(results)
	zap.L().Info("matching: batch complete",
		zap.Int("total", stats.Total),
		zap.Int("deterministic", stats.Deterministic),
		zap.Int("fuzzy", stats.Fuzzy),
		zap.Int("unmatched", stats.Unmatched),
		zap.Float64("match_rate", stats.MatchRate),
	)
	return results, stats, nil
}
