package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// --- Persister Mock ---

type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) SaveResolvedProduct(ctx context.Context, p *model.ResolvedProduct) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPersister) SaveAuditRecords(ctx context.Context, productID string, recs []model.AuditStageRecord) error {
	return m.Called(ctx, productID, recs).Error(0)
}

// --- Resolver Fake ---

type resolverFunc func(ctx context.Context, e model.RawEntry) (*Outcome, error)

func (f resolverFunc) Resolve(ctx context.Context, e model.RawEntry) (*Outcome, error) {
	return f(ctx, e)
}
