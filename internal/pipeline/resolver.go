package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-resolver/internal/audit"
	"github.com/sells-group/catalog-resolver/internal/inherit"
	"github.com/sells-group/catalog-resolver/internal/matching"
	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/springopt"
	"github.com/sells-group/catalog-resolver/internal/validate"
	"github.com/sells-group/catalog-resolver/internal/variant"
)

// Matcher finds the base model for an entry.
type Matcher interface {
	MatchOne(e model.RawEntry) model.MatchResult
}

// Resolver runs the five stages for one entry.
type Resolver struct {
	matcher   Matcher
	inherit   *inherit.Engine
	variants  *variant.Selector
	spring    *springopt.Resolver
	validator *validate.Aggregator
}

// Deps are the stage implementations a Resolver chains.
type Deps struct {
	Matcher  Matcher
	Registry springopt.Registry
	Research springopt.Researcher
	Reviewer validate.Reviewer
	Recorder *audit.Recorder
	Validate validate.Options
	// OptionConcurrency bounds concurrent option research per entry.
	OptionConcurrency int
}

// NewResolver wires the stages. A nil registry uses an empty in-memory one.
func NewResolver(d Deps) (*Resolver, error) {
	if d.Matcher == nil {
		return nil, eris.New("pipeline: matcher is required")
	}
	if d.Recorder == nil {
		d.Recorder = audit.NewRecorder()
	}
	if d.Registry == nil {
		d.Registry = springopt.NewMemoryRegistry()
	}
	return &Resolver{
		matcher:   d.Matcher,
		inherit:   inherit.New(d.Recorder),
		variants:  variant.New(d.Recorder),
		spring:    springopt.NewResolver(d.Registry, d.Research, d.Recorder, d.OptionConcurrency),
		validator: validate.NewAggregator(d.Reviewer, d.Recorder, d.Validate),
	}, nil
}

// Resolve runs one entry through every stage. Unmatched entries stop after
// matching and are not errors. A returned error, including a recovered
// stage panic, leaves the outcome holding the partially built product,
// still PENDING.
func (r *Resolver) Resolve(ctx context.Context, e model.RawEntry) (out *Outcome, err error) {
	start := time.Now()
	log := zap.L().With(zap.String("entry", e.Label()), zap.Int("row", e.SourceRow))
	out = &Outcome{Entry: e}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline: stage panic", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			err = eris.New(fmt.Sprintf("panic: %v", rec))
		}
		out.Duration = time.Since(start)
	}()

	out.Match = r.matcher.MatchOne(e)
	if !out.Match.Matched {
		out.State = StateUnmatched
		err := matching.Err(out.Match)
		out.Error = err.Error()
		log.Info("pipeline: entry unmatched",
			zap.String("reason", string(out.Match.Reason)),
			zap.Float64("best_score", out.Match.Confidence),
		)
		return out, nil
	}

	p, err := r.inherit.Inherit(e, out.Match)
	if err != nil {
		return out, eris.Wrap(err, "pipeline: inherit")
	}
	out.Product = p
	log = log.With(zap.String("product_id", p.ID), zap.String("base_key", p.BaseKey))

	if _, err := r.variants.Select(p); err != nil {
		return out, eris.Wrap(err, "pipeline: variant selection")
	}
	if err := ctx.Err(); err != nil {
		return out, eris.Wrap(err, "pipeline: after variant selection")
	}
	if _, err := r.spring.Apply(ctx, p); err != nil {
		return out, eris.Wrap(err, "pipeline: spring options")
	}
	status, err := r.validator.Finalize(ctx, p, out.Match.Base)
	if err != nil {
		return out, eris.Wrap(err, "pipeline: validation")
	}

	out.State = StateResolved
	log.Info("pipeline: entry resolved",
		zap.String("method", string(out.Match.Method)),
		zap.String("status", string(status)),
		zap.Bool("auto_accepted", p.AutoAccepted),
		zap.Float64("confidence", p.Confidence),
	)
	return out, nil
}

// failProduct marks a partially built product FAILED and captures err in
// its trail. Products already terminal are left as they are.
func failProduct(rec *audit.Recorder, p *model.ResolvedProduct, err error) {
	if p == nil || p.Status.Terminal() {
		return
	}
	if p.LastStage() < model.StageValidation {
		if _, recErr := rec.Record(p, model.StageValidation,
			map[string]any{"last_stage": p.LastStage()},
			map[string]any{"error": err.Error(), "status": string(model.StatusFailed)},
			0,
		); recErr != nil {
			zap.L().Warn("pipeline: record failure", zap.String("product_id", p.ID), zap.Error(recErr))
		}
	}
	p.Confidence = 0
	if finErr := p.Finalize(model.StatusFailed, false); finErr != nil {
		zap.L().Warn("pipeline: finalize failure", zap.String("product_id", p.ID), zap.Error(finErr))
	}
}
