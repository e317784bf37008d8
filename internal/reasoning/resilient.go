package reasoning

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/resilience"
)

// Operation names used for breakers and logs.
const (
	OpResearchOption = "research_option"
	OpReviewProduct  = "review_product"
)

// Resilient decorates a Reasoner with throttling, a per-attempt timeout,
// bounded retries and one circuit breaker per operation. Every failure it
// returns wraps ErrUnavailable.
type Resilient struct {
	next     Reasoner
	policy   resilience.Policy
	breakers *resilience.Breakers
	limiter  *rate.Limiter
}

// NewResilient wraps next. A nil limiter disables throttling.
func NewResilient(next Reasoner, policy resilience.Policy, breaker resilience.CircuitBreakerConfig, limiter *rate.Limiter) *Resilient {
	return &Resilient{
		next:     next,
		policy:   policy,
		breakers: resilience.NewBreakers(breaker),
		limiter:  limiter,
	}
}

// ResearchOption implements Reasoner.
func (r *Resilient) ResearchOption(ctx context.Context, oc OptionContext, text string) (*OptionResearch, error) {
	return call(ctx, r, OpResearchOption, func(ctx context.Context) (*OptionResearch, error) {
		return r.next.ResearchOption(ctx, oc, text)
	})
}

// ReviewProduct implements Reasoner.
func (r *Resilient) ReviewProduct(ctx context.Context, p *model.ResolvedProduct, rc ReviewContext) (*Review, error) {
	return call(ctx, r, OpReviewProduct, func(ctx context.Context) (*Review, error) {
		return r.next.ReviewProduct(ctx, p, rc)
	})
}

// Breakers exposes the circuit state per operation.
func (r *Resilient) Breakers() map[string]resilience.CircuitState {
	return r.breakers.States()
}

func call[T any](ctx context.Context, r *Resilient, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil || r.next == nil {
		return zero, eris.Wrapf(ErrUnavailable, "%s: no reasoner configured", op)
	}

	cb := r.breakers.Get(op)
	policy := r.policy
	policy.OnRetry = resilience.RetryLogger(op)

	val, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (T, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return zero, eris.Wrap(err, "reasoning: throttle")
			}
		}
		return resilience.ExecuteVal(ctx, cb, fn)
	})
	if err != nil {
		zap.L().Warn("reasoning: call failed",
			zap.String("operation", op),
			zap.Error(err),
		)
		return zero, eris.Wrapf(ErrUnavailable, "%s: %v", op, err)
	}
	return val, nil
}
