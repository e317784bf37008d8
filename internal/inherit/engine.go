// Package inherit builds draft products from matched base catalog models.
package inherit

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/audit"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// BaselineConfidence is the inheritance-stage confidence of every draft.
const BaselineConfidence = 0.85

// Engine copies base catalog models into mutable drafts.
type Engine struct {
	recorder *audit.Recorder
}

// New creates an Engine recording into rec. A nil recorder uses the wall clock.
func New(rec *audit.Recorder) *Engine {
	if rec == nil {
		rec = audit.NewRecorder()
	}
	return &Engine{recorder: rec}
}

// Inherit creates a PENDING draft from a successful match. The draft owns deep
// copies of every option set, the dimensions and the feature list, so later
// stages never touch the catalog snapshot. Stages 1 and 2 are recorded.
func (e *Engine) Inherit(entry model.RawEntry, match model.MatchResult) (*model.ResolvedProduct, error) {
	if !match.Matched || match.Base == nil {
		return nil, eris.Errorf("inherit: entry %q is not matched", entry.Label())
	}
	base := match.Base

	p := &model.ResolvedProduct{
		ID:          uuid.New().String(),
		Entry:       entry,
		BaseKey:     base.LookupKey,
		BrandName:   base.Brand,
		ModelFamily: base.ModelFamily,
		Year:        base.Year,
		Status:      model.StatusPending,
		Selections:  make(map[string]model.Selection, len(model.Dimensions)),
	}

	p.Spec = model.Specification{
		Dimensions: base.Dimensions,
		Color:      entry.Color,
	}
	for _, dim := range model.Dimensions {
		*p.Spec.Variant(dim) = defaultVariant(base.Options.Set(dim))
	}
	if len(base.Features) > 0 {
		p.Spec.Features = append([]string(nil), base.Features...)
	}
	p.StageConfidence.Inheritance = BaselineConfidence

	if _, err := e.recorder.Record(p, model.StageMatching,
		map[string]any{
			"entry":          entry.Label(),
			"attempted_keys": append([]string(nil), match.AttemptedKeys...),
		},
		map[string]any{
			"base_key": match.BaseKey,
			"method":   string(match.Method),
		},
		match.Confidence,
	); err != nil {
		return nil, eris.Wrap(err, "inherit: record matching")
	}

	if _, err := e.recorder.Record(p, model.StageInheritance,
		map[string]any{"base_key": base.LookupKey},
		map[string]any{
			"engine_options":  len(p.Spec.Engine.Available),
			"track_options":   len(p.Spec.Track.Available),
			"starter_options": len(p.Spec.Starter.Available),
			"display_options": len(p.Spec.Display.Available),
			"features":        len(p.Spec.Features),
		},
		BaselineConfidence,
	); err != nil {
		return nil, eris.Wrap(err, "inherit: record inheritance")
	}

	return p, nil
}

// defaultVariant seeds a variant spec with every option available and the
// set's default selected.
func defaultVariant(set model.OptionSet) model.VariantSpec {
	cp := set.Clone()
	id := cp.DefaultID()
	return model.VariantSpec{
		OptionID:  id,
		Option:    cp.Options[id],
		Available: cp.Options,
	}
}
