package model

import "math"

// Clamp bounds a confidence value to [0, 1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Round3 rounds to three decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
