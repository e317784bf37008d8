// Package validate runs the final validation layers over a draft product
// and decides its terminal status.
package validate

import (
	"github.com/sells-group/catalog-resolver/internal/model"
)

// Stage weights in the base confidence.
const (
	WeightInheritance = 0.2
	WeightVariant     = 0.4
	WeightSpring      = 0.4
)

// Decision thresholds.
const (
	AutoAcceptThreshold = 0.95
	PassThreshold       = 0.85
)

// outcomeFactor scales the base confidence per layer outcome. Every factor
// is at most 1, so an extra failing layer can only lower the aggregate.
var outcomeFactor = map[model.LayerOutcome]float64{
	model.LayerPass:    1.0,
	model.LayerSkipped: 0.95,
	model.LayerReview:  0.9,
	model.LayerFail:    0.5,
}

// Aggregate computes the final confidence:
//
//	(0.2·inheritance + 0.4·variant + 0.4·spring) × Π factor(layer outcome)
//
// clamped to [0,1] and rounded to three decimals.
func Aggregate(sc model.StageConfidence, layers []model.LayerResult) float64 {
	v := WeightInheritance*model.Clamp(sc.Inheritance) +
		WeightVariant*model.Clamp(sc.Variant) +
		WeightSpring*model.Clamp(sc.Spring)
	for _, l := range layers {
		f, ok := outcomeFactor[l.Outcome]
		if !ok {
			f = outcomeFactor[model.LayerFail]
		}
		v *= f
	}
	return model.Round3(model.Clamp(v))
}

// Decide maps the aggregate and layer outcomes to a terminal status, in
// order: any fail or an aggregate below 0.85 fails; any review, or a skipped
// layer when requireSkipped is set, needs review; 0.95 and above is
// auto-accepted; anything else passes without auto-accept.
func Decide(aggregate float64, layers []model.LayerResult, requireSkipped bool) (model.ValidationStatus, bool) {
	review := false
	for _, l := range layers {
		switch l.Outcome {
		case model.LayerPass:
		case model.LayerReview:
			review = true
		case model.LayerSkipped:
			if requireSkipped {
				review = true
			}
		default:
			return model.StatusFailed, false
		}
	}
	switch {
	case aggregate < PassThreshold:
		return model.StatusFailed, false
	case review:
		return model.StatusRequiresReview, false
	case aggregate >= AutoAcceptThreshold:
		return model.StatusPassed, true
	default:
		return model.StatusPassed, false
	}
}
