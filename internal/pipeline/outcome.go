// Package pipeline runs price-list entries through matching, inheritance,
// variant selection, spring options and validation.
package pipeline

import (
	"fmt"
	"time"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// State is the terminal state of one entry in a batch.
type State string

const (
	StateResolved  State = "resolved"
	StateUnmatched State = "unmatched"
	StateFailed    State = "failed"
)

// Outcome is the result of resolving one entry.
type Outcome struct {
	Index        int                    `json:"index"`
	Entry        model.RawEntry         `json:"entry"`
	State        State                  `json:"state"`
	Match        model.MatchResult      `json:"match"`
	Product      *model.ResolvedProduct `json:"product,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Persisted    bool                   `json:"persisted"`
	PersistError string                 `json:"persist_error,omitempty"`
	Duration     time.Duration          `json:"duration_ns"`
}

// UnexpectedError wraps a programming or data-shape failure caught at the
// batch boundary. The entry is marked failed; the batch continues.
type UnexpectedError struct {
	Entry string
	Err   error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("pipeline: unexpected error for %s: %v", e.Entry, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// Summary aggregates a batch.
type Summary struct {
	Total          int     `json:"total"`
	Resolved       int     `json:"resolved"`
	Unmatched      int     `json:"unmatched"`
	Failed         int     `json:"failed"`
	Passed         int     `json:"passed"`
	RequiresReview int     `json:"requires_review"`
	Rejected       int     `json:"rejected"`
	AutoAccepted   int     `json:"auto_accepted"`
	PersistErrors  int     `json:"persist_errors"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Summarize counts outcomes. Mean confidence covers resolved products only.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	sum := 0.0
	for _, o := range outcomes {
		if o.PersistError != "" {
			s.PersistErrors++
		}
		switch o.State {
		case StateUnmatched:
			s.Unmatched++
			continue
		case StateFailed:
			s.Failed++
			continue
		}
		s.Resolved++
		if o.Product == nil {
			continue
		}
		sum += o.Product.Confidence
		switch o.Product.Status {
		case model.StatusPassed:
			s.Passed++
		case model.StatusRequiresReview:
			s.RequiresReview++
		case model.StatusFailed:
			s.Rejected++
		}
		if o.Product.AutoAccepted {
			s.AutoAccepted++
		}
	}
	if s.Resolved > 0 {
		s.MeanConfidence = model.Round3(sum / float64(s.Resolved))
	}
	return s
}

// Report is the output of Runner.Run.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
	Summary  Summary   `json:"summary"`
}
