// Package variant narrows each variant dimension of a draft from all base
// options down to the one named by the price-list entry.
package variant

import (
	"math"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-resolver/internal/audit"
	"github.com/sells-group/catalog-resolver/internal/lookup"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// Weights of each dimension in the stage confidence.
var Weights = map[string]float64{
	model.DimEngine:  0.4,
	model.DimTrack:   0.3,
	model.DimStarter: 0.15,
	model.DimDisplay: 0.15,
}

const (
	resolvedScore  = 1.0
	defaultedScore = 0.5

	// NoDimensionScore is the stage confidence when no dimension applies.
	NoDimensionScore = 0.5

	// DisplacementToleranceCC is how far a stated displacement may be from
	// an option's and still match it.
	DisplacementToleranceCC = 10

	trackToleranceMM = 15.0
	minTrackLengthMM = 2000.0
	inchLimit        = 300.0
	mmPerInch        = 25.4
)

var (
	displacementRe = regexp.MustCompile(`\b(\d{3,4})`)
	numberRe       = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Selector runs the variant selection stage.
type Selector struct {
	recorder *audit.Recorder
}

// New creates a Selector. A nil recorder uses the wall clock.
func New(rec *audit.Recorder) *Selector {
	if rec == nil {
		rec = audit.NewRecorder()
	}
	return &Selector{recorder: rec}
}

// Select narrows every dimension of the draft using the entry's text and
// records stage 3. Returns the stage confidence.
func (s *Selector) Select(p *model.ResolvedProduct) (float64, error) {
	if p == nil {
		return 0, eris.New("variant: nil product")
	}
	if err := p.Mutable(); err != nil {
		return 0, eris.Wrap(err, "variant: select")
	}
	if p.Selections == nil {
		p.Selections = make(map[string]model.Selection, len(model.Dimensions))
	}

	requested := map[string]string{
		model.DimEngine:  p.Entry.EngineText,
		model.DimTrack:   p.Entry.TrackText,
		model.DimStarter: p.Entry.StarterText,
		model.DimDisplay: p.Entry.DisplayText,
	}

	var sum, total float64
	outputs := make(map[string]any, len(model.Dimensions))
	for _, dim := range model.Dimensions {
		spec := p.Spec.Variant(dim)
		sel := selectDimension(dim, requested[dim], spec)
		p.Selections[dim] = sel
		outputs[dim] = sel.OptionID
		if !sel.Applicable {
			continue
		}
		sum += Weights[dim] * sel.Confidence
		total += Weights[dim]
	}

	conf := NoDimensionScore
	if total > 0 {
		conf = model.Round3(model.Clamp(sum / total))
	}
	p.StageConfidence.Variant = conf

	zap.L().Debug("variant: selected",
		zap.String("product_id", p.ID),
		zap.Any("selections", outputs),
		zap.Float64("confidence", conf),
	)

	inputs := make(map[string]any, len(requested))
	for dim, text := range requested {
		if text != "" {
			inputs[dim] = text
		}
	}
	if _, err := s.recorder.Record(p, model.StageVariant, inputs, outputs, conf); err != nil {
		return conf, eris.Wrap(err, "variant: record")
	}
	return conf, nil
}

// selectDimension narrows one variant spec in place. A single-option
// dimension resolves on its own only when the entry says nothing about it;
// requested text must still match that option.
func selectDimension(dim, text string, spec *model.VariantSpec) model.Selection {
	sel := model.Selection{Requested: text}
	set := model.OptionSet{Default: spec.OptionID, Options: spec.Available}
	ids := set.IDs()
	if len(ids) == 0 {
		return sel
	}
	sel.Applicable = true

	chosen := ""
	switch {
	case text == "" && len(ids) == 1:
		chosen = ids[0]
	case text != "":
		chosen = bestOption(dim, text, set)
	}

	if chosen == "" {
		sel.OptionID = set.DefaultID()
		sel.Confidence = defaultedScore
		spec.OptionID = sel.OptionID
		spec.Option = set.Options[sel.OptionID]
		spec.Resolved = false
		return sel
	}

	sel.OptionID = chosen
	sel.Resolved = true
	sel.Confidence = resolvedScore
	opt := set.Options[chosen]
	spec.OptionID = chosen
	spec.Option = opt
	spec.Resolved = true
	spec.Available = map[string]model.OptionDescriptor{chosen: opt}
	return sel
}

// bestOption returns the highest scoring option id, or "" when nothing
// matches. Ties go to the lowest id.
func bestOption(dim, text string, set model.OptionSet) string {
	var (
		best      string
		bestScore int
	)
	for _, id := range set.IDs() {
		var score int
		opt := set.Options[id]
		switch dim {
		case model.DimEngine:
			score = engineScore(text, opt)
		case model.DimTrack:
			score = trackScore(text, opt)
		default:
			score = labelScore(text, opt.Label)
		}
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	return best
}

// engineScore matches displacement and engine type. An option whose
// displacement contradicts the one in the text never matches.
func engineScore(text string, opt model.OptionDescriptor) int {
	score := 0
	if opt.DisplacementCC > 0 {
		if nums := Displacements(text); len(nums) > 0 {
			if !anyWithin(nums, float64(opt.DisplacementCC), DisplacementToleranceCC) {
				return 0
			}
			score += 2
		}
	}
	if opt.EngineType != "" && lookup.Contains(text, opt.EngineType) {
		score++
	}
	return score + labelScore(text, opt.Label)
}

// trackScore matches track length and width in millimetres. Numbers below
// 300 are read as inches. An option whose length contradicts a length in
// the text never matches.
func trackScore(text string, opt model.OptionDescriptor) int {
	nums := trackNumbers(text)
	if opt.LengthMM > 0 {
		if lengths := trackLengths(nums); len(lengths) > 0 && !anyWithin(lengths, float64(opt.LengthMM), trackToleranceMM) {
			return 0
		}
	}
	score := 0
	if opt.LengthMM > 0 && anyWithin(nums, float64(opt.LengthMM), trackToleranceMM) {
		score += 2
	}
	if opt.WidthMM > 0 && anyWithin(nums, float64(opt.WidthMM), trackToleranceMM) {
		score++
	}
	return score + labelScore(text, opt.Label)
}

// labelScore is 2 for an exact normalized label, 1 for containment either way.
func labelScore(text, label string) int {
	switch {
	case lookup.Normalize(text) == lookup.Normalize(label) && label != "":
		return 2
	case lookup.Contains(text, label):
		return 1
	default:
		return 0
	}
}

// Displacements returns the 3 or 4 digit numbers in engine text.
func Displacements(text string) []float64 {
	var out []float64
	for _, m := range displacementRe.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, float64(v))
		}
	}
	return out
}

func trackNumbers(text string) []float64 {
	var out []float64
	for _, m := range numberRe.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil || v <= 0 {
			continue
		}
		if v < inchLimit {
			v *= mmPerInch
		}
		out = append(out, v)
	}
	return out
}

// trackLengths keeps the numbers long enough to be a track length.
func trackLengths(nums []float64) []float64 {
	var out []float64
	for _, n := range nums {
		if n >= minTrackLengthMM {
			out = append(out, n)
		}
	}
	return out
}

func anyWithin(nums []float64, target, tol float64) bool {
	for _, n := range nums {
		if math.Abs(n-target) <= tol {
			return true
		}
	}
	return false
}
