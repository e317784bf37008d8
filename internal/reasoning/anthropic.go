package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/resilience"
	"github.com/sells-group/catalog-resolver/pkg/anthropic"
)

// Anthropic implements Reasoner with Claude. Responses are JSON objects
// embedded in the text reply.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates the adapter.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

type researchReply struct {
	Name        string         `json:"name"`
	Confidence  float64        `json:"confidence"`
	Set         map[string]any `json:"set"`
	AddFeatures []string       `json:"add_features"`
}

// ResearchOption implements Reasoner.
func (a *Anthropic) ResearchOption(ctx context.Context, oc OptionContext, text string) (*OptionResearch, error) {
	prompt := fmt.Sprintf("Brand: %s\nModel family: %s\nModel year: %d\nBase key: %s\nBase features: %s\nOption text: %q",
		oc.Scope.Brand, oc.Scope.ModelFamily, oc.Scope.Year, oc.BaseKey,
		strings.Join(oc.Features, "; "), text)

	var reply researchReply
	if err := a.ask(ctx, OpResearchOption, researchSystemPrompt, prompt, &reply); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(reply.Name)
	if name == "" {
		name = strings.TrimSpace(text)
	}
	mods := model.ModificationSet{AddFeatures: reply.AddFeatures}
	if len(reply.Set) > 0 {
		mods.Set = make(map[string]string, len(reply.Set))
		for k, v := range reply.Set {
			mods.Set[strings.ToLower(strings.TrimSpace(k))] = scalar(v)
		}
	}
	return &OptionResearch{
		Name:          name,
		Modifications: mods,
		Confidence:    model.Clamp(reply.Confidence),
	}, nil
}

// ReviewProduct implements Reasoner.
func (a *Anthropic) ReviewProduct(ctx context.Context, p *model.ResolvedProduct, rc ReviewContext) (*Review, error) {
	if p == nil {
		return nil, resilience.Permanent(eris.New("reasoning: nil product"))
	}
	payload, err := json.Marshal(struct {
		Entry   model.RawEntry      `json:"entry"`
		BaseKey string              `json:"base_key"`
		Spec    model.Specification `json:"specification"`
	}{rc.Entry, rc.BaseKey, p.Spec})
	if err != nil {
		return nil, resilience.Permanent(eris.Wrap(err, "reasoning: marshal product"))
	}

	var reply Review
	if err := a.ask(ctx, OpReviewProduct, reviewSystemPrompt, string(payload), &reply); err != nil {
		return nil, err
	}
	reply.Confidence = model.Clamp(reply.Confidence)
	return &reply, nil
}

func (a *Anthropic) ask(ctx context.Context, op, system, prompt string, out any) error {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.CachedSystem(system, "5m"),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		if code := anthropic.StatusCode(err); code >= 400 && code < 500 && !resilience.IsTransientHTTPStatus(code) {
			return resilience.Permanent(eris.Wrapf(err, "reasoning: %s", op))
		}
		return eris.Wrapf(err, "reasoning: %s", op)
	}
	resp.Usage.LogCost(a.model, op)

	raw, ok := extractJSON(resp.Text())
	if !ok {
		return eris.Errorf("reasoning: %s: no JSON object in reply", op)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return eris.Wrapf(err, "reasoning: %s: decode reply", op)
	}
	return nil
}

// extractJSON returns the outermost {...} span of text.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// scalar renders a decoded JSON value as a specification string.
func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", x), "0"), ".")
	default:
		return fmt.Sprint(x)
	}
}
