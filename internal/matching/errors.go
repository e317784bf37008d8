package matching

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/model"
)

var (
	// ErrNoCandidate means no base model exists for the entry's brand and year.
	ErrNoCandidate = eris.New("matching: no candidate for brand and year")
	// ErrLowConfidence means the best fuzzy candidate scored below threshold.
	ErrLowConfidence = eris.New("matching: best candidate below threshold")
)

// Err maps an unmatched result to its taxonomy error. Matched results
// return nil.
func Err(r model.MatchResult) error {
	if r.Matched {
		return nil
	}
	switch r.Reason {
	case model.ReasonNoCandidates:
		return ErrNoCandidate
	default:
		return eris.Wrapf(ErrLowConfidence, "best score %.3f", r.Confidence)
	}
}
