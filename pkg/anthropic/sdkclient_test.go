package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageBody(text string) map[string]any {
	return map[string]any{
		"id":   "msg_test_001",
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"model":       "claude-sonnet-4-5-20250929",
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":                120,
			"output_tokens":               40,
			"cache_creation_input_tokens": 0,
			"cache_read_input_tokens":     100,
		},
	}
}

func TestSDKClient_CreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "claude-sonnet-4-5-20250929", body["model"])
		assert.Contains(t, string(raw), "cache_control")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageBody(`{"passed":true}`))
	}))
	defer ts.Close()

	client := NewClient("test-key", option.WithBaseURL(ts.URL))
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 512,
		System:    CachedSystem("You review snowmobile specifications.", "5m"),
		Messages:  []Message{{Role: "user", Content: "Review this"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `{"passed":true}`, resp.Text())
	assert.Equal(t, int64(120), resp.Usage.InputTokens)
	assert.Equal(t, int64(100), resp.Usage.CacheReadInputTokens)
}

func TestSDKClient_CreateMessage_StatusCode(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusBadRequest} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":  "error",
				"error": map[string]any{"type": "api_error", "message": "nope"},
			})
		}))

		client := NewClient("test-key", option.WithBaseURL(ts.URL))
		_, err := client.CreateMessage(context.Background(), MessageRequest{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 16,
			Messages:  []Message{{Role: "user", Content: "hi"}},
		})
		ts.Close()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic: create message")
		assert.Equal(t, code, StatusCode(err))
	}
}
