package anthropic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: `{"name":`},
		{Type: "thinking", Text: "ignored"},
		{Type: "text", Text: `"Black Edition"}`},
	}}
	assert.Equal(t, `{"name":"Black Edition"}`, resp.Text())

	var nilResp *MessageResponse
	assert.Empty(t, nilResp.Text())
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		model string
		usage TokenUsage
		want  float64
	}{
		{"sonnet", "claude-sonnet-4-5-20250929", TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 18.0},
		{"haiku", "claude-haiku-4-5-20251001", TokenUsage{InputTokens: 1_000_000}, 1.0},
		{"cache", "claude-sonnet-4-5-20250929", TokenUsage{CacheCreationInputTokens: 1_000_000, CacheReadInputTokens: 1_000_000}, 3.75 + 0.3},
		{"unknown", "gpt-x", TokenUsage{InputTokens: 1_000_000}, 0},
		{"zero", "claude-opus-4-6", TokenUsage{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.usage.EstimateCost(tt.model), 1e-9)
		})
	}
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 10}.LogCost("claude-sonnet-4-5-20250929", "research_option")
	})
}

func TestStatusCode_NonAPIError(t *testing.T) {
	assert.Zero(t, StatusCode(nil))
	assert.Zero(t, StatusCode(errors.New("dial tcp: refused")))
}

func TestToSDKMessages(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "other", Content: "c"},
	})
	assert.Len(t, out, 3)
	assert.Empty(t, toSDKMessages(nil))
}

func TestToSDKSystemBlocks(t *testing.T) {
	out := toSDKSystemBlocks(CachedSystem("prompt", "1h"))
	assert.Len(t, out, 1)
	assert.Equal(t, "prompt", out[0].Text)
	assert.Equal(t, "1h", string(out[0].CacheControl.TTL))

	plain := toSDKSystemBlocks([]SystemBlock{{Text: "x"}})
	assert.Equal(t, "x", plain[0].Text)
}
