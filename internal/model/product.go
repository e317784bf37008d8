package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ValidationStatus is the decision state of a resolved product.
type ValidationStatus string

const (
	StatusPending        ValidationStatus = "PENDING"
	StatusPassed         ValidationStatus = "PASSED"
	StatusRequiresReview ValidationStatus = "REQUIRES_REVIEW"
	StatusFailed         ValidationStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s ValidationStatus) Terminal() bool {
	return s == StatusPassed || s == StatusRequiresReview || s == StatusFailed
}

// ErrFinalized is returned when a stage tries to change a finalized product.
var ErrFinalized = eris.New("product already finalized")

// VariantSpec is the specification of one variant dimension: the option
// currently selected plus the options still available.
type VariantSpec struct {
	OptionID  string                      `json:"option_id,omitempty"`
	Option    OptionDescriptor            `json:"option"`
	Available map[string]OptionDescriptor `json:"available,omitempty"`
	Resolved  bool                        `json:"resolved"`
}

// Specification is the resolved product specification, grouped by category.
// Additional collects fields that have no named home.
type Specification struct {
	Engine     VariantSpec       `json:"engine"`
	Track      VariantSpec       `json:"track"`
	Starter    VariantSpec       `json:"starter"`
	Display    VariantSpec       `json:"display"`
	Dimensions Measurements      `json:"dimensions"`
	Features   []string          `json:"features,omitempty"`
	Color      string            `json:"color,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// Variant returns a pointer to the variant spec for a dimension, or nil.
func (s *Specification) Variant(dim string) *VariantSpec {
	switch dim {
	case DimEngine:
		return &s.Engine
	case DimTrack:
		return &s.Track
	case DimStarter:
		return &s.Starter
	case DimDisplay:
		return &s.Display
	default:
		return nil
	}
}

// AddFeatures unions features into the list, skipping case-insensitive
// duplicates. Returns the features actually added.
func (s *Specification) AddFeatures(features ...string) []string {
	seen := make(map[string]bool, len(s.Features))
	for _, f := range s.Features {
		seen[strings.ToLower(strings.TrimSpace(f))] = true
	}
	var added []string
	for _, f := range features {
		f = strings.TrimSpace(f)
		k := strings.ToLower(f)
		if f == "" || seen[k] {
			continue
		}
		seen[k] = true
		s.Features = append(s.Features, f)
		added = append(added, f)
	}
	return added
}

// Selection records how a variant dimension was narrowed.
type Selection struct {
	Requested  string  `json:"requested,omitempty"`
	OptionID   string  `json:"option_id,omitempty"`
	Resolved   bool    `json:"resolved"`
	Applicable bool    `json:"applicable"`
	Confidence float64 `json:"confidence"`
}

// AppliedOption records one spring option token and its effect.
type AppliedOption struct {
	Token         string          `json:"token"`
	Name          string          `json:"name,omitempty"`
	Provenance    Provenance      `json:"provenance,omitempty"`
	Resolved      bool            `json:"resolved"`
	Confidence    float64         `json:"confidence"`
	Modifications ModificationSet `json:"modifications,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// LayerOutcome is the verdict of one validation layer.
type LayerOutcome string

const (
	LayerPass    LayerOutcome = "pass"
	LayerReview  LayerOutcome = "review"
	LayerFail    LayerOutcome = "fail"
	LayerSkipped LayerOutcome = "skipped"
)

// LayerResult is the outcome of one validation layer.
type LayerResult struct {
	Layer   string       `json:"layer"`
	Outcome LayerOutcome `json:"outcome"`
	Issues  []string     `json:"issues,omitempty"`
}

// StageConfidence holds the confidence produced by each scoring stage.
type StageConfidence struct {
	Inheritance float64 `json:"inheritance"`
	Variant     float64 `json:"variant"`
	Spring      float64 `json:"spring"`
}

// ResolvedProduct is the draft built up by the pipeline stages. It is
// mutated in place until Status becomes terminal.
type ResolvedProduct struct {
	ID                  string               `json:"id"`
	Entry               RawEntry             `json:"entry"`
	BaseKey             string               `json:"base_key"`
	BrandName           string               `json:"brand"`
	ModelFamily         string               `json:"model_family"`
	Year                int                  `json:"year"`
	Spec                Specification        `json:"specification"`
	Selections          map[string]Selection `json:"selections,omitempty"`
	SpringModifications []AppliedOption      `json:"spring_modifications,omitempty"`
	StageConfidence     StageConfidence      `json:"stage_confidence"`
	Confidence          float64              `json:"confidence"`
	Status              ValidationStatus     `json:"validation_status"`
	AutoAccepted        bool                 `json:"auto_accepted"`
	Validation          []LayerResult        `json:"validation,omitempty"`
	Trail               []AuditStageRecord   `json:"audit_trail"`
}

// Mutable returns ErrFinalized once the product has reached a terminal status.
func (p *ResolvedProduct) Mutable() error {
	if p.Status.Terminal() {
		return eris.Wrapf(ErrFinalized, "product %s is %s", p.ID, p.Status)
	}
	return nil
}

// Finalize moves the product from PENDING to a terminal status.
func (p *ResolvedProduct) Finalize(status ValidationStatus, autoAccepted bool) error {
	if err := p.Mutable(); err != nil {
		return err
	}
	if !status.Terminal() {
		return eris.Errorf("invalid terminal status %q", status)
	}
	p.Status = status
	p.AutoAccepted = autoAccepted && status == StatusPassed
	return nil
}

// LastStage returns the highest stage number recorded so far.
func (p *ResolvedProduct) LastStage() int {
	if len(p.Trail) == 0 {
		return 0
	}
	return p.Trail[len(p.Trail)-1].Stage
}
