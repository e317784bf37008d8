package reasoning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/resilience"
)

var errFlaky = errors.New("flaky")

func fastPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		AttemptTimeout: 20 * time.Millisecond,
	}
}

func TestResilient_RetriesThenSucceeds(t *testing.T) {
	next := &flakyReasoner{failures: 2, err: errFlaky}
	r := NewResilient(next, fastPolicy(), resilience.BreakerConfig(10, 60), nil)

	res, err := r.ResearchOption(context.Background(), OptionContext{}, "Black Edition")
	require.NoError(t, err)
	assert.Equal(t, "Black Edition", res.Name)
	assert.Equal(t, int32(3), next.research.Load())
}

func TestResilient_ExhaustionIsUnavailable(t *testing.T) {
	next := &flakyReasoner{failures: 100, err: errFlaky}
	r := NewResilient(next, fastPolicy(), resilience.BreakerConfig(10, 60), nil)

	_, err := r.ReviewProduct(context.Background(), &model.ResolvedProduct{}, ReviewContext{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), next.review.Load())
}

func TestResilient_PermanentErrorNotRetried(t *testing.T) {
	next := &flakyReasoner{failures: 100, err: resilience.Permanent(errFlaky)}
	r := NewResilient(next, fastPolicy(), resilience.BreakerConfig(10, 60), nil)

	_, err := r.ResearchOption(context.Background(), OptionContext{}, "x")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), next.research.Load())
}

func TestResilient_AttemptTimeout(t *testing.T) {
	next := &flakyReasoner{block: true}
	r := NewResilient(next, fastPolicy(), resilience.BreakerConfig(10, 60), nil)

	start := time.Now()
	_, err := r.ResearchOption(context.Background(), OptionContext{}, "x")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), next.research.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResilient_BreakerOpensPerOperation(t *testing.T) {
	next := &flakyReasoner{failures: 100, err: errFlaky}
	p := fastPolicy()
	p.MaxAttempts = 1
	r := NewResilient(next, p, resilience.BreakerConfig(2, 60), nil)

	for i := 0; i < 4; i++ {
		_, _ = r.ResearchOption(context.Background(), OptionContext{}, "x")
	}
	assert.Equal(t, int32(2), next.research.Load())
	assert.Equal(t, resilience.CircuitOpen, r.Breakers()[OpResearchOption])

	_, _ = r.ReviewProduct(context.Background(), &model.ResolvedProduct{}, ReviewContext{})
	assert.Equal(t, int32(1), next.review.Load())
}

func TestResilient_Throttled(t *testing.T) {
	next := &flakyReasoner{}
	r := NewResilient(next, fastPolicy(), resilience.BreakerConfig(10, 60), rate.NewLimiter(rate.Limit(1000), 1))

	for i := 0; i < 3; i++ {
		_, err := r.ResearchOption(context.Background(), OptionContext{}, "x")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), next.research.Load())
}

func TestResilient_NilNext(t *testing.T) {
	r := NewResilient(nil, fastPolicy(), resilience.DefaultCircuitBreakerConfig(), nil)
	_, err := r.ResearchOption(context.Background(), OptionContext{}, "x")
	require.ErrorIs(t, err, ErrUnavailable)
}
