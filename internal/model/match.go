package model

// MatchMethod identifies the strategy that produced a match.
type MatchMethod string

const (
	MatchDeterministic MatchMethod = "deterministic"
	MatchFuzzy         MatchMethod = "fuzzy"
	MatchNone          MatchMethod = "none"
)

// UnmatchedReason explains why an entry did not match.
type UnmatchedReason string

const (
	ReasonNoCandidates  UnmatchedReason = "no_candidates"
	ReasonLowConfidence UnmatchedReason = "low_confidence"
)

// MatchResult is the immutable outcome of one matching attempt.
type MatchResult struct {
	Matched       bool              `json:"matched"`
	Base          *BaseCatalogModel `json:"-"`
	BaseKey       string            `json:"base_key,omitempty"`
	Confidence    float64           `json:"confidence"`
	Method        MatchMethod       `json:"method"`
	Reason        UnmatchedReason   `json:"reason,omitempty"`
	AttemptedKeys []string          `json:"attempted_keys,omitempty"`
}
