package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-resolver/internal/model"
)

func entries(n int) []model.RawEntry {
	out := make([]model.RawEntry, n)
	for i := range out {
		e := raveEntry()
		e.SourceRow = i + 2
		out[i] = e
	}
	return out
}

func TestRun_ResolvesBatchInOrder(t *testing.T) {
	r := newTestResolver(t, nil)
	in := entries(6)
	in[3].Brand = "SKI-DOO"

	report, err := NewRunner(r, nil, RunnerConfig{Concurrency: 3}).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 6)

	for i, o := range report.Outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, i+2, o.Entry.SourceRow)
	}
	assert.Equal(t, StateUnmatched, report.Outcomes[3].State)
	assert.Equal(t, Summary{
		Total: 6, Resolved: 5, Unmatched: 1, Passed: 5, AutoAccepted: 5, MeanConfidence: 0.97,
	}, report.Summary)
}

func TestRun_PanicIsolated(t *testing.T) {
	res := resolverFunc(func(_ context.Context, e model.RawEntry) (*Outcome, error) {
		if e.SourceRow == 3 {
			panic("bad row shape")
		}
		return &Outcome{Entry: e, State: StateUnmatched}, nil
	})

	report, err := NewRunner(res, nil, RunnerConfig{Concurrency: 2}).Run(context.Background(), entries(4))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, report.Outcomes[1].State)
	assert.Contains(t, report.Outcomes[1].Error, "panic: bad row shape")
	assert.Contains(t, report.Outcomes[1].Error, "unexpected error")
	for _, i := range []int{0, 2, 3} {
		assert.Equal(t, StateUnmatched, report.Outcomes[i].State)
	}
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, 3, report.Summary.Unmatched)
}

func TestRun_ErrorFailsPartialProduct(t *testing.T) {
	res := resolverFunc(func(_ context.Context, e model.RawEntry) (*Outcome, error) {
		p := &model.ResolvedProduct{ID: "p-1", Entry: e, Status: model.StatusPending, Confidence: 0.5,
			Trail: []model.AuditStageRecord{{Stage: 1}, {Stage: 2}}}
		return &Outcome{Entry: e, Product: p}, errors.New("spec shape broken")
	})
	persister := &mockPersister{}
	persister.On("SaveResolvedProduct", mock.Anything, mock.MatchedBy(func(p *model.ResolvedProduct) bool {
		return p.Status == model.StatusFailed
	})).Return(nil).Once()
	persister.On("SaveAuditRecords", mock.Anything, "p-1", mock.MatchedBy(func(recs []model.AuditStageRecord) bool {
		return len(recs) == 3 && recs[2].Stage == model.StageValidation
	})).Return(nil).Once()

	report, err := NewRunner(res, persister, RunnerConfig{}).Run(context.Background(), entries(1))
	require.NoError(t, err)

	o := report.Outcomes[0]
	assert.Equal(t, StateFailed, o.State)
	assert.True(t, o.Persisted)
	require.NotNil(t, o.Product)
	assert.Equal(t, model.StatusFailed, o.Product.Status)
	assert.Zero(t, o.Product.Confidence)
	last := o.Product.Trail[len(o.Product.Trail)-1]
	assert.Contains(t, last.Outputs["error"], "spec shape broken")
	persister.AssertExpectations(t)
}

func TestRun_EntryTimeout(t *testing.T) {
	res := resolverFunc(func(ctx context.Context, e model.RawEntry) (*Outcome, error) {
		if e.SourceRow == 2 {
			<-ctx.Done()
			return &Outcome{Entry: e}, ctx.Err()
		}
		return &Outcome{Entry: e, State: StateUnmatched}, nil
	})

	report, err := NewRunner(res, nil, RunnerConfig{Concurrency: 2, EntryTimeout: 20 * time.Millisecond}).
		Run(context.Background(), entries(3))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, report.Outcomes[0].State)
	assert.Contains(t, report.Outcomes[0].Error, "deadline exceeded")
	assert.Equal(t, StateUnmatched, report.Outcomes[1].State)
	assert.Equal(t, StateUnmatched, report.Outcomes[2].State)
}

func TestRun_PersistError(t *testing.T) {
	r := newTestResolver(t, nil)
	persister := &mockPersister{}
	persister.On("SaveResolvedProduct", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	report, err := NewRunner(r, persister, RunnerConfig{}).Run(context.Background(), entries(2))
	require.NoError(t, err)

	for _, o := range report.Outcomes {
		assert.Equal(t, StateResolved, o.State)
		assert.False(t, o.Persisted)
		assert.Contains(t, o.PersistError, "disk full")
	}
	assert.Equal(t, 2, report.Summary.PersistErrors)
	persister.AssertNotCalled(t, "SaveAuditRecords", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_CancelledBatch(t *testing.T) {
	var calls atomic.Int32
	res := resolverFunc(func(_ context.Context, e model.RawEntry) (*Outcome, error) {
		calls.Add(1)
		return &Outcome{Entry: e, State: StateUnmatched}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(res, nil, RunnerConfig{Concurrency: 2}).Run(ctx, entries(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, report.Outcomes, 5)
	assert.Equal(t, 5, report.Summary.Failed)
	assert.Zero(t, calls.Load())
}

func TestRun_Concurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	res := resolverFunc(func(_ context.Context, e model.RawEntry) (*Outcome, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return &Outcome{Entry: e, State: StateUnmatched}, nil
	})

	_, err := NewRunner(res, nil, RunnerConfig{Concurrency: 3}).Run(context.Background(), entries(12))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestSummarize(t *testing.T) {
	outcomes := []Outcome{
		{State: StateResolved, Product: &model.ResolvedProduct{Status: model.StatusPassed, AutoAccepted: true, Confidence: 0.97}},
		{State: StateResolved, Product: &model.ResolvedProduct{Status: model.StatusRequiresReview, Confidence: 0.9}},
		{State: StateResolved, Product: &model.ResolvedProduct{Status: model.StatusFailed, Confidence: 0.5}},
		{State: StateUnmatched},
		{State: StateFailed, PersistError: "x"},
	}
	s := Summarize(outcomes)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Resolved)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.RequiresReview)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 1, s.AutoAccepted)
	assert.Equal(t, 1, s.Unmatched)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.PersistErrors)
	assert.InDelta(t, 0.79, s.MeanConfidence, 1e-9)
}

func TestUnexpectedError(t *testing.T) {
	base := errors.New("boom")
	err := &UnexpectedError{Entry: "LYNX Rave 2026", Err: base}
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, fmt.Sprintf("pipeline: unexpected error for LYNX Rave 2026: %v", base), err.Error())
}
