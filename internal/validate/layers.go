package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/catalog-resolver/internal/lookup"
	"github.com/sells-group/catalog-resolver/internal/model"
	"github.com/sells-group/catalog-resolver/internal/variant"
)

// Layer names.
const (
	LayerTechnical = "technical"
	LayerBusiness  = "business"
	LayerSemantic  = "semantic"
)

// Range is an inclusive numeric range.
type Range struct {
	Min, Max float64
}

func (r Range) contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Limits bounds the technical checks. Zero values in a specification mean
// unknown and are not range checked.
type Limits struct {
	DisplacementCC Range
	TrackLengthMM  Range
	TrackWidthMM   Range
	DryWeightKG    Range
}

// DefaultLimits covers every production snowmobile with margin.
func DefaultLimits() Limits {
	return Limits{
		DisplacementCC: Range{50, 1300},
		TrackLengthMM:  Range{2500, 5500},
		TrackWidthMM:   Range{300, 600},
		DryWeightKG:    Range{100, 450},
	}
}

// DefaultCurrencies maps market codes to their expected currency.
func DefaultCurrencies() map[string]string {
	return map[string]string{
		"FI": "EUR",
		"SE": "SEK",
		"NO": "NOK",
		"DK": "DKK",
		"DE": "EUR",
		"AT": "EUR",
		"US": "USD",
		"CA": "CAD",
	}
}

// findings accumulates issues at two severities.
type findings struct {
	layer  string
	fails  []string
	review []string
}

func (f *findings) fail(format string, args ...any) {
	f.fails = append(f.fails, fmt.Sprintf(format, args...))
}

func (f *findings) flag(format string, args ...any) {
	f.review = append(f.review, fmt.Sprintf(format, args...))
}

func (f *findings) result() model.LayerResult {
	res := model.LayerResult{Layer: f.layer, Outcome: model.LayerPass}
	switch {
	case len(f.fails) > 0:
		res.Outcome = model.LayerFail
	case len(f.review) > 0:
		res.Outcome = model.LayerReview
	}
	res.Issues = append(append([]string(nil), f.fails...), f.review...)
	return res
}

// Technical checks that required specification fields are present and
// within sane ranges.
func Technical(p *model.ResolvedProduct, lim Limits) model.LayerResult {
	f := &findings{layer: LayerTechnical}
	spec := p.Spec

	if spec.Engine.OptionID == "" {
		f.fail("engine option missing")
	}
	if spec.Track.OptionID == "" {
		f.fail("track option missing")
	}

	check := func(name string, v float64, r Range) {
		if v != 0 && !r.contains(v) {
			f.fail("%s %g outside %g-%g", name, v, r.Min, r.Max)
		}
	}
	check("displacement_cc", float64(spec.Engine.Option.DisplacementCC), lim.DisplacementCC)
	check("track.length_mm", float64(spec.Track.Option.LengthMM), lim.TrackLengthMM)
	check("track.width_mm", float64(spec.Track.Option.WidthMM), lim.TrackWidthMM)
	check("dimensions.dry_weight_kg", float64(spec.Dimensions.DryWeightKG), lim.DryWeightKG)

	return f.result()
}

// Business checks brand and model family compatibility, engine
// compatibility with the base model and market/currency consistency.
func Business(p *model.ResolvedProduct, base *model.BaseCatalogModel, currencies map[string]string) model.LayerResult {
	f := &findings{layer: LayerBusiness}
	e := p.Entry

	if !strings.EqualFold(strings.TrimSpace(p.BrandName), strings.TrimSpace(e.Brand)) {
		f.fail("brand %q does not match entry brand %q", p.BrandName, e.Brand)
	}
	if !sharesToken(e.Model, p.ModelFamily) {
		f.flag("entry model %q shares no token with model family %q", e.Model, p.ModelFamily)
	}

	if base != nil && len(base.Options.Engine.Options) > 0 {
		if _, ok := base.Options.Engine.Options[p.Spec.Engine.OptionID]; !ok {
			f.fail("engine %q is not offered on %s", p.Spec.Engine.OptionID, base.LookupKey)
		}
	}
	if cc := p.Spec.Engine.Option.DisplacementCC; cc > 0 {
		if nums := variant.Displacements(e.EngineText); len(nums) > 0 && !near(nums, float64(cc)) {
			f.flag("entry engine %q does not match selected %dcc", e.EngineText, cc)
		}
	}

	market := strings.ToUpper(strings.TrimSpace(e.Market))
	currency := strings.ToUpper(strings.TrimSpace(e.Currency))
	if want, ok := currencies[market]; ok && currency != "" && currency != want {
		f.flag("currency %s unexpected for market %s (want %s)", currency, market, want)
	}
	if e.Price <= 0 {
		f.flag("price missing")
	}

	return f.result()
}

func sharesToken(a, b string) bool {
	set := make(map[string]bool)
	for _, t := range lookup.Tokens(a) {
		set[t] = true
	}
	for _, t := range lookup.Tokens(b) {
		if set[t] {
			return true
		}
	}
	return false
}

func near(nums []float64, cc float64) bool {
	for _, n := range nums {
		if math.Abs(n-cc) <= variant.DisplacementToleranceCC {
			return true
		}
	}
	return false
}
