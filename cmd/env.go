package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/catalog-resolver/internal/catalog"
	"github.com/sells-group/catalog-resolver/internal/config"
	"github.com/sells-group/catalog-resolver/internal/matching"
	"github.com/sells-group/catalog-resolver/internal/pipeline"
	"github.com/sells-group/catalog-resolver/internal/reasoning"
	"github.com/sells-group/catalog-resolver/internal/resilience"
	"github.com/sells-group/catalog-resolver/internal/springopt"
	"github.com/sells-group/catalog-resolver/internal/store"
	"github.com/sells-group/catalog-resolver/internal/validate"
	anthropicpkg "github.com/sells-group/catalog-resolver/pkg/anthropic"
)

// resolverEnv holds the store, catalog and stages needed by the resolve
// command.
type resolverEnv struct {
	Store    store.Store
	Index    *catalog.Index
	Resolver *pipeline.Resolver
	Runner   *pipeline.Runner
	Reasoner *reasoning.Resilient // nil when reasoning is disabled
	Metrics  *prometheus.Registry
}

// Close releases resources held by the environment.
func (e *resolverEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: c.Store.MaxConns,
		MinConns: c.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// seedRegistry loads the known spring options file, if configured.
func seedRegistry(ctx context.Context, reg springopt.Registry, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrap(err, "open registry seed")
	}
	defer f.Close() //nolint:errcheck

	opts, err := springopt.LoadKnown(f)
	if err != nil {
		return err
	}
	if err := springopt.Seed(ctx, reg, opts); err != nil {
		return err
	}
	zap.L().Info("registry seeded", zap.String("path", path), zap.Int("options", len(opts)))
	return nil
}

// initReasoner wraps the Anthropic client in retry, breaker and throttle.
// Returns nil when reasoning is disabled or no key is configured.
func initReasoner(c *config.Config, client anthropicpkg.Client) *reasoning.Resilient {
	if !c.Reasoning.Enabled {
		return nil
	}
	if client == nil {
		if c.Anthropic.Key == "" {
			zap.L().Warn("RESOLVER_ANTHROPIC_KEY not set, reasoning disabled")
			return nil
		}
		client = anthropicpkg.NewClient(c.Anthropic.Key)
	}

	rc := c.Reasoning
	policy := resilience.NewPolicy(rc.MaxAttempts, rc.InitialBackoffMs, rc.MaxBackoffMs, rc.TimeoutSecs)
	limiter := rate.NewLimiter(rate.Limit(rc.RatePerSec), rc.Burst)
	if rc.RatePerSec <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return reasoning.NewResilient(
		reasoning.NewAnthropic(client, c.Anthropic.Model, c.Anthropic.MaxTokens),
		policy,
		resilience.BreakerConfig(rc.BreakerThreshold, rc.BreakerResetSecs),
		limiter,
	)
}

// initResolver builds the full stage chain on top of st.
func initResolver(ctx context.Context, c *config.Config, st store.Store, client anthropicpkg.Client) (*resolverEnv, error) {
	idx, err := catalog.LoadFile(c.Catalog.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load catalog")
	}
	if err := seedRegistry(ctx, st, c.Registry.SeedPath); err != nil {
		return nil, err
	}

	env := &resolverEnv{
		Store:    st,
		Index:    idx,
		Reasoner: initReasoner(c, client),
		Metrics:  prometheus.NewRegistry(),
	}
	metrics, err := pipeline.NewMetrics(env.Metrics)
	if err != nil {
		return nil, err
	}

	var reg springopt.Registry = st
	if c.Registry.CacheTTLSecs > 0 {
		reg = springopt.NewCachedRegistry(st, time.Duration(c.Registry.CacheTTLSecs)*time.Second)
	}

	deps := pipeline.Deps{
		Matcher:           matching.NewService(idx, c.Matching.FuzzyThreshold),
		Registry:          reg,
		OptionConcurrency: c.Reasoning.MaxConcurrency,
		Validate: validate.Options{
			RequireSemantic: c.Validation.RequireSemantic,
		},
	}
	if env.Reasoner != nil {
		deps.Research = env.Reasoner
		deps.Reviewer = env.Reasoner
	}

	env.Resolver, err = pipeline.NewResolver(deps)
	if err != nil {
		return nil, err
	}
	env.Runner = pipeline.NewRunner(env.Resolver, st, pipeline.RunnerConfig{
		Concurrency:  c.Batch.MaxConcurrentEntries,
		EntryTimeout: time.Duration(c.Batch.EntryTimeoutSecs) * time.Second,
		Metrics:      metrics,
	})

	zap.L().Info("resolver ready",
		zap.Int("catalog_models", idx.Len()),
		zap.Bool("reasoning", env.Reasoner != nil),
		zap.String("store", c.Store.Driver),
	)
	return env, nil
}
