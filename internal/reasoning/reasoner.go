// Package reasoning defines the external reasoning collaborator used to
// research unknown spring options and to sanity-check resolved products.
package reasoning

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// ErrUnavailable marks a reasoning call that could not produce an answer
// after retries. Callers degrade the affected sub-result instead of failing.
var ErrUnavailable = eris.New("reasoning: collaborator unavailable")

// OptionContext describes the product an unknown option text belongs to.
type OptionContext struct {
	Scope    model.Scope `json:"scope"`
	BaseKey  string      `json:"base_key"`
	Features []string    `json:"features,omitempty"`
}

// OptionResearch is the collaborator's interpretation of an option text.
type OptionResearch struct {
	Name          string                `json:"name"`
	Modifications model.ModificationSet `json:"modifications"`
	Confidence    float64               `json:"confidence"`
}

// ReviewContext carries the source entry for a holistic review.
type ReviewContext struct {
	Entry   model.RawEntry `json:"entry"`
	BaseKey string         `json:"base_key"`
}

// Review is the outcome of a semantic review.
type Review struct {
	Passed     bool     `json:"passed"`
	Issues     []string `json:"issues,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Reasoner is the reasoning collaborator.
type Reasoner interface {
	ResearchOption(ctx context.Context, oc OptionContext, text string) (*OptionResearch, error)
	ReviewProduct(ctx context.Context, p *model.ResolvedProduct, rc ReviewContext) (*Review, error)
}
