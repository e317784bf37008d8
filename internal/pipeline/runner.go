package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-resolver/internal/audit"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// EntryResolver resolves a single entry.
type EntryResolver interface {
	Resolve(ctx context.Context, e model.RawEntry) (*Outcome, error)
}

// Persister stores finished products and their audit trails.
type Persister interface {
	SaveResolvedProduct(ctx context.Context, p *model.ResolvedProduct) error
	SaveAuditRecords(ctx context.Context, productID string, recs []model.AuditStageRecord) error
}

// RunnerConfig tunes batch execution.
type RunnerConfig struct {
	Concurrency  int
	EntryTimeout time.Duration
	// Recorder captures failures in product trails; defaults to the wall clock.
	Recorder *audit.Recorder
	// Metrics is optional.
	Metrics *Metrics
}

// Runner resolves entry batches concurrently. A failing entry never stops
// its siblings.
type Runner struct {
	resolver  EntryResolver
	persister Persister
	cfg       RunnerConfig
}

// NewRunner creates a Runner. persister may be nil.
func NewRunner(resolver EntryResolver, persister Persister, cfg RunnerConfig) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Recorder == nil {
		cfg.Recorder = audit.NewRecorder()
	}
	return &Runner{resolver: resolver, persister: persister, cfg: cfg}
}

// Run resolves every entry and returns the outcomes in input order. The
// error is non-nil only when ctx ended before the batch finished; the
// report still covers every entry.
func (r *Runner) Run(ctx context.Context, entries []model.RawEntry) (*Report, error) {
	outcomes := make([]Outcome, len(entries))

	zap.L().Info("pipeline: processing batch",
		zap.Int("entries", len(entries)),
		zap.Int("concurrency", r.cfg.Concurrency),
	)

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for i, e := range entries {
		g.Go(func() error {
			outcomes[i] = r.runOne(ctx, i, e)
			return nil // don't abort batch on individual failure
		})
	}
	_ = g.Wait()

	report := &Report{Outcomes: outcomes, Summary: Summarize(outcomes)}
	zap.L().Info("pipeline: batch complete",
		zap.Int("total", report.Summary.Total),
		zap.Int("resolved", report.Summary.Resolved),
		zap.Int("unmatched", report.Summary.Unmatched),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("auto_accepted", report.Summary.AutoAccepted),
	)
	if err := ctx.Err(); err != nil {
		return report, eris.Wrap(err, "pipeline: batch interrupted")
	}
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, i int, e model.RawEntry) (out Outcome) {
	out = Outcome{Index: i, Entry: e}
	log := zap.L().With(zap.String("entry", e.Label()), zap.Int("index", i))
	start := time.Now()
	defer func() { r.cfg.Metrics.Observe(out, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		out.State = StateFailed
		out.Error = eris.Wrap(err, "pipeline: batch cancelled").Error()
		return out
	}

	ectx := ctx
	if r.cfg.EntryTimeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, r.cfg.EntryTimeout)
		defer cancel()
	}

	res, err := r.resolve(ectx, e)
	if res != nil {
		out.Match = res.Match
		out.Product = res.Product
		out.State = res.State
		out.Error = res.Error
		out.Duration = res.Duration
	}
	if err != nil {
		uerr := &UnexpectedError{Entry: e.Label(), Err: err}
		log.Error("pipeline: entry failed", zap.Error(uerr))
		failProduct(r.cfg.Recorder, out.Product, uerr)
		out.State = StateFailed
		out.Error = uerr.Error()
	}

	if out.Product != nil && r.persister != nil {
		if perr := r.persist(ctx, out.Product); perr != nil {
			log.Warn("pipeline: persist failed", zap.Error(perr))
			out.PersistError = perr.Error()
		} else {
			out.Persisted = true
		}
	}
	return out
}

// resolve calls the resolver, turning a panic into an error.
func (r *Runner) resolve(ctx context.Context, e model.RawEntry) (out *Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("pipeline: panic", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			err = eris.New(fmt.Sprintf("panic: %v", rec))
		}
	}()
	return r.resolver.Resolve(ctx, e)
}

func (r *Runner) persist(ctx context.Context, p *model.ResolvedProduct) error {
	// Products are saved even when the batch context has ended.
	pctx := context.WithoutCancel(ctx)
	if err := r.persister.SaveResolvedProduct(pctx, p); err != nil {
		return eris.Wrap(err, "pipeline: save product")
	}
	if err := r.persister.SaveAuditRecords(pctx, p.ID, p.Trail); err != nil {
		return eris.Wrap(err, "pipeline: save audit records")
	}
	return nil
}
