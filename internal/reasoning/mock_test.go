package reasoning

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:      "msg_1",
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// flakyReasoner fails the first failures calls of each operation.
type flakyReasoner struct {
	failures int32
	err      error
	research atomic.Int32
	review   atomic.Int32
	block    bool
}

func (f *flakyReasoner) ResearchOption(ctx context.Context, _ OptionContext, text string) (*OptionResearch, error) {
	n := f.research.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n <= f.failures {
		return nil, f.err
	}
	return &OptionResearch{Name: text, Confidence: 0.8}, nil
}

func (f *flakyReasoner) ReviewProduct(_ context.Context, _ *model.ResolvedProduct, _ ReviewContext) (*Review, error) {
	n := f.review.Add(1)
	if n <= f.failures {
		return nil, f.err
	}
	return &Review{Passed: true, Confidence: 0.9}, nil
}
