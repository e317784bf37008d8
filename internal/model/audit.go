package model

import "time"

// Pipeline stage numbers.
const (
	StageMatching    = 1
	StageInheritance = 2
	StageVariant     = 3
	StageSpring      = 4
	StageValidation  = 5
)

// StageNames maps stage numbers to names used in audit records and logs.
var StageNames = map[int]string{
	StageMatching:    "matching",
	StageInheritance: "inheritance",
	StageVariant:     "variant_selection",
	StageSpring:      "spring_options",
	StageValidation:  "validation",
}

// AuditStageRecord summarizes one pipeline stage. Records are append-only.
type AuditStageRecord struct {
	ID         string         `json:"id"`
	Stage      int            `json:"stage"`
	Name       string         `json:"name"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
}
