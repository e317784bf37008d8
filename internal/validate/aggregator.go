package validate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-resolver/internal/audit"
	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/reasoning"
)

// Reviewer performs the semantic review.
type Reviewer interface {
	ReviewProduct(ctx context.Context, p *model.ResolvedProduct, rc reasoning.ReviewContext) (*reasoning.Review, error)
}

// Options configures an Aggregator.
type Options struct {
	// RequireSemantic treats a skipped semantic layer as needing review.
	// When false a skipped semantic layer counts as a pass.
	RequireSemantic bool
	Limits          Limits
	Currencies      map[string]string
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		RequireSemantic: true,
		Limits:          DefaultLimits(),
		Currencies:      DefaultCurrencies(),
	}
}

// Aggregator runs the validation stage.
type Aggregator struct {
	reviewer Reviewer
	recorder *audit.Recorder
	opts     Options
}

// NewAggregator creates an Aggregator. A nil reviewer skips the semantic layer.
func NewAggregator(reviewer Reviewer, rec *audit.Recorder, opts Options) *Aggregator {
	if rec == nil {
		rec = audit.NewRecorder()
	}
	if opts.Currencies == nil {
		opts.Currencies = DefaultCurrencies()
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	return &Aggregator{reviewer: reviewer, recorder: rec, opts: opts}
}

// Finalize runs the three layers, computes the aggregate confidence, moves
// the product to its terminal status and records stage 5.
func (a *Aggregator) Finalize(ctx context.Context, p *model.ResolvedProduct, base *model.BaseCatalogModel) (model.ValidationStatus, error) {
	if p == nil {
		return "", eris.New("validate: nil product")
	}
	if err := p.Mutable(); err != nil {
		return p.Status, eris.Wrap(err, "validate: finalize")
	}

	layers := []model.LayerResult{
		Technical(p, a.opts.Limits),
		Business(p, base, a.opts.Currencies),
		a.semantic(ctx, p),
	}

	scored := layers
	if !a.opts.RequireSemantic {
		scored = make([]model.LayerResult, len(layers))
		copy(scored, layers)
		for i := range scored {
			if scored[i].Outcome == model.LayerSkipped {
				scored[i].Outcome = model.LayerPass
			}
		}
	}

	agg := Aggregate(p.StageConfidence, scored)
	status, auto := Decide(agg, scored, a.opts.RequireSemantic)

	p.Validation = layers
	p.Confidence = agg

	outcomes := make(map[string]any, len(layers))
	for _, l := range layers {
		outcomes[l.Layer] = string(l.Outcome)
	}
	if _, err := a.recorder.Record(p, model.StageValidation,
		map[string]any{
			"inheritance_confidence": p.StageConfidence.Inheritance,
			"variant_confidence":     p.StageConfidence.Variant,
			"spring_confidence":      p.StageConfidence.Spring,
			"require_semantic":       a.opts.RequireSemantic,
		},
		map[string]any{
			"layers":        outcomes,
			"aggregate":     agg,
			"status":        string(status),
			"auto_accepted": auto,
		},
		agg,
	); err != nil {
		return p.Status, eris.Wrap(err, "validate: record")
	}
	if err := p.Finalize(status, auto); err != nil {
		return p.Status, eris.Wrap(err, "validate: finalize")
	}

	zap.L().Debug("validate: finalized",
		zap.String("product_id", p.ID),
		zap.String("status", string(status)),
		zap.Bool("auto_accepted", auto),
		zap.Float64("confidence", agg),
	)
	return status, nil
}

func (a *Aggregator) semantic(ctx context.Context, p *model.ResolvedProduct) model.LayerResult {
	res := model.LayerResult{Layer: LayerSemantic, Outcome: model.LayerSkipped}
	if a.reviewer == nil {
		res.Issues = []string{"no reviewer configured"}
		return res
	}

	rev, err := a.reviewer.ReviewProduct(ctx, p, reasoning.ReviewContext{Entry: p.Entry, BaseKey: p.BaseKey})
	if err != nil || rev == nil {
		if err == nil {
			err = eris.New("validate: empty review")
		}
		zap.L().Warn("validate: semantic review skipped", zap.String("product_id", p.ID), zap.Error(err))
		res.Issues = []string{err.Error()}
		return res
	}

	res.Issues = rev.Issues
	if rev.Passed {
		res.Outcome = model.LayerPass
	} else {
		res.Outcome = model.LayerReview
	}
	return res
}
