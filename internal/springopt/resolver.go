package springopt

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-resolver/internal/audit"
	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/reasoning"
)

// Stage confidences.
const (
	KnownConfidence      = 0.95
	UnresolvedConfidence = 0.3
	NoOptionsConfidence  = 1.0
)

// Researcher interprets option text the registry does not know.
type Researcher interface {
	ResearchOption(ctx context.Context, oc reasoning.OptionContext, text string) (*reasoning.OptionResearch, error)
}

// Resolver runs the spring option stage.
type Resolver struct {
	registry    Registry
	researcher  Researcher
	recorder    *audit.Recorder
	concurrency int
}

// NewResolver creates a Resolver. A nil researcher leaves every unknown
// option unresolved.
func NewResolver(reg Registry, researcher Researcher, rec *audit.Recorder, concurrency int) *Resolver {
	if rec == nil {
		rec = audit.NewRecorder()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Resolver{registry: reg, researcher: researcher, recorder: rec, concurrency: concurrency}
}

// Apply resolves the entry's spring option text against the registry,
// researches unknown tokens concurrently, merges the results into the draft
// in token order and records stage 4. Returns the stage confidence.
func (r *Resolver) Apply(ctx context.Context, p *model.ResolvedProduct) (float64, error) {
	if p == nil {
		return 0, eris.New("springopt: nil product")
	}
	if err := p.Mutable(); err != nil {
		return 0, eris.Wrap(err, "springopt: apply")
	}

	tokens := Tokenize(p.Entry.SpringOptions)
	if len(tokens) == 0 {
		p.StageConfidence.Spring = NoOptionsConfidence
		if _, err := r.recorder.Record(p, model.StageSpring, nil, map[string]any{"tokens": 0}, NoOptionsConfidence); err != nil {
			return NoOptionsConfidence, eris.Wrap(err, "springopt: record")
		}
		return NoOptionsConfidence, nil
	}

	log := zap.L().With(zap.String("product_id", p.ID), zap.String("entry", p.Entry.Label()))
	scope := model.Scope{Brand: p.BrandName, ModelFamily: p.ModelFamily, Year: p.Year}
	applied := make([]model.AppliedOption, len(tokens))

	var unknown []int
	for i, tok := range tokens {
		applied[i] = model.AppliedOption{Token: tok}
		opt, err := r.lookup(ctx, scope, tok)
		if err != nil {
			log.Warn("springopt: registry lookup failed", zap.String("token", tok), zap.Error(err))
		}
		if opt == nil {
			unknown = append(unknown, i)
			continue
		}
		applied[i].Name = opt.Name
		applied[i].Provenance = opt.Provenance
		applied[i].Resolved = true
		applied[i].Confidence = registryConfidence(opt)
		applied[i].Modifications = opt.Modifications.Clone()
	}

	if len(unknown) > 0 {
		oc := reasoning.OptionContext{
			Scope:    scope,
			BaseKey:  p.BaseKey,
			Features: append([]string(nil), p.Spec.Features...),
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, i := range unknown {
			tok := applied[i].Token
			g.Go(func() error {
				defer func() {
					if rec := recover(); rec != nil {
						log.Error("springopt: research panicked", zap.String("token", tok), zap.Any("panic", rec))
						applied[i] = model.AppliedOption{
							Token:      tok,
							Confidence: UnresolvedConfidence,
							Error:      fmt.Sprintf("springopt: research panic: %v", rec),
						}
					}
				}()
				applied[i] = r.discover(gctx, log, oc, tok)
				return nil
			})
		}
		_ = g.Wait() // discover never fails the group
	}

	var sum float64
	for _, a := range applied {
		if a.Resolved {
			ApplyModifications(&p.Spec, a.Modifications)
		}
		sum += a.Confidence
	}
	conf := model.Round3(model.Clamp(sum / float64(len(applied))))
	p.SpringModifications = applied
	p.StageConfidence.Spring = conf

	resolved, discovered := 0, 0
	for _, a := range applied {
		if a.Resolved {
			resolved++
		}
		if a.Provenance == model.ProvenanceDiscovered {
			discovered++
		}
	}
	log.Debug("springopt: applied",
		zap.Int("tokens", len(tokens)),
		zap.Int("resolved", resolved),
		zap.Int("discovered", discovered),
		zap.Float64("confidence", conf),
	)

	if _, err := r.recorder.Record(p, model.StageSpring,
		map[string]any{"text": p.Entry.SpringOptions, "tokens": tokens},
		map[string]any{"resolved": resolved, "discovered": discovered, "unresolved": len(tokens) - resolved},
		conf,
	); err != nil {
		return conf, eris.Wrap(err, "springopt: record")
	}
	return conf, nil
}

// registryConfidence scores a registry hit. Only known options get
// KnownConfidence; discovered ones keep their stored confidence, capped there.
func registryConfidence(opt *model.SpringOption) float64 {
	if opt.Provenance == model.ProvenanceKnown {
		return KnownConfidence
	}
	return math.Min(model.Clamp(opt.Confidence), KnownConfidence)
}

func (r *Resolver) lookup(ctx context.Context, scope model.Scope, token string) (*model.SpringOption, error) {
	if r.registry == nil {
		return nil, nil
	}
	return r.registry.LookupOption(ctx, scope, token)
}

// discover researches one unknown token and registers the result. Failures
// leave the token unresolved at UnresolvedConfidence.
func (r *Resolver) discover(ctx context.Context, log *zap.Logger, oc reasoning.OptionContext, token string) model.AppliedOption {
	out := model.AppliedOption{Token: token, Confidence: UnresolvedConfidence}
	if r.researcher == nil {
		out.Error = reasoning.ErrUnavailable.Error()
		return out
	}

	res, err := r.researcher.ResearchOption(ctx, oc, token)
	if err != nil || res == nil {
		if err == nil {
			err = eris.New("springopt: empty research result")
		}
		log.Warn("springopt: option unresolved", zap.String("token", token), zap.Error(err))
		out.Error = err.Error()
		return out
	}

	opt := model.SpringOption{
		Name:          token,
		Scope:         oc.Scope,
		Modifications: res.Modifications.Clone(),
		Confidence:    model.Clamp(res.Confidence),
		Provenance:    model.ProvenanceDiscovered,
	}
	if r.registry != nil {
		if err := r.registry.UpsertOption(ctx, opt); err != nil {
			log.Warn("springopt: register discovered option", zap.String("token", token), zap.Error(err))
		}
	}

	out.Name = res.Name
	out.Provenance = model.ProvenanceDiscovered
	out.Resolved = true
	out.Confidence = opt.Confidence
	out.Modifications = opt.Modifications
	return out
}
