package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/pkg/anthropic"
)

func TestAnthropic_ResearchOption(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == 512 &&
			len(req.Messages) == 1 &&
			assert.ObjectsAreEqual("user", req.Messages[0].Role)
	})).Return(textResponse("Sure:\n```json\n"+
		`{"name":"Black Edition","confidence":0.8,"set":{"Color":"Black","track.lug_mm":41.5,"track.width_mm":381},"add_features":["Black seat","Black skis"]}`+
		"\n```"), nil)

	a := NewAnthropic(client, "claude-sonnet-4-5-20250929", 512)
	res, err := a.ResearchOption(context.Background(), OptionContext{
		Scope:   model.Scope{Brand: "LYNX", ModelFamily: "Rave RE", Year: 2026},
		BaseKey: "LYNX_Rave_RE_2026",
	}, "Black Edition")

	require.NoError(t, err)
	assert.Equal(t, "Black Edition", res.Name)
	assert.Equal(t, 0.8, res.Confidence)
	assert.Equal(t, map[string]string{
		"color":          "Black",
		"track.lug_mm":   "41.5",
		"track.width_mm": "381",
	}, res.Modifications.Set)
	assert.Equal(t, []string{"Black seat", "Black skis"}, res.Modifications.AddFeatures)
	client.AssertExpectations(t)
}

func TestAnthropic_ResearchOption_NoJSON(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("I am not sure."), nil)

	_, err := NewAnthropic(client, "m", 0).ResearchOption(context.Background(), OptionContext{}, "??")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestAnthropic_ResearchOption_ClampsAndDefaultsName(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"confidence":1.4}`), nil)

	res, err := NewAnthropic(client, "m", 0).ResearchOption(context.Background(), OptionContext{}, " Race kit ")
	require.NoError(t, err)
	assert.Equal(t, "Race kit", res.Name)
	assert.Equal(t, 1.0, res.Confidence)
	assert.True(t, res.Modifications.Empty())
}

func TestAnthropic_ReviewProduct(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 && req.System[0].CacheControl != nil
	})).Return(textResponse(`{"passed":false,"issues":["track too short for deep snow"],"confidence":0.7}`), nil)

	p := &model.ResolvedProduct{BaseKey: "LYNX_Rave_RE_2026"}
	rev, err := NewAnthropic(client, "m", 0).ReviewProduct(context.Background(), p, ReviewContext{BaseKey: p.BaseKey})
	require.NoError(t, err)
	assert.False(t, rev.Passed)
	assert.Equal(t, []string{"track too short for deep snow"}, rev.Issues)
	assert.Equal(t, 0.7, rev.Confidence)
}

func TestAnthropic_ClientError(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset by peer"))

	_, err := NewAnthropic(client, "m", 0).ReviewProduct(context.Background(), &model.ResolvedProduct{}, ReviewContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reasoning: review_product")
}

func TestExtractJSON(t *testing.T) {
	raw, ok := extractJSON("prefix {\"a\":{\"b\":1}} suffix")
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":1}}`, raw)

	_, ok = extractJSON("} nothing {")
	assert.False(t, ok)
}

func TestScalar(t *testing.T) {
	assert.Equal(t, "381", scalar(381.0))
	assert.Equal(t, "41.5", scalar(41.5))
	assert.Equal(t, "Black", scalar(" Black "))
	assert.Equal(t, "true", scalar(true))
	assert.Equal(t, "", scalar(nil))
}
