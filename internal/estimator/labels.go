package estimator

import (
	"fmt"
	"math"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
)

const (
	GenderFemale = "Female"
	GenderMale   = "Male"
	// AgeUnknown is reported only when the rounded age score falls outside the bucket table
	AgeUnknown = "Unknown"
	// GenderThreshold is inclusive on the Female side
	GenderThreshold = 0.5
)

// AgeBuckets maps a rounded age score to its label
var AgeBuckets = []string{"<18", "18-30", "30-50", "50+"}

// ExpressionLabels is the fixed output order of the expression model
var ExpressionLabels = []string{"Angry", "Disgust", "Fear", "Happy", "Neutral", "Sad", "Surprise"}

// GenderLabel decodes the gender head
func GenderLabel(score float32) string {
	if score >= GenderThreshold {
		return GenderFemale
	}
	return GenderMale
}

// AgeLabel rounds half away from zero and looks the index up in AgeBuckets
func AgeLabel(score float32) string {
	rounded := math.Round(float64(score))
	if math.IsNaN(rounded) || rounded < 0 || rounded >= float64(len(AgeBuckets)) {
		return AgeUnknown
	}
	return AgeBuckets[int(rounded)]
}

// ArgMax returns the index of the largest score, preferring the first on ties
func ArgMax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

// ExpressionLabel decodes a 7-way score vector
func ExpressionLabel(scores []float32) (string, error) {
	if len(scores) != len(ExpressionLabels) {
		return "", fmt.Errorf("%w: expression output has %d scores, want %d", inference.ErrInference, len(scores), len(ExpressionLabels))
	}
	if !finite(scores) {
		return "", fmt.Errorf("%w: expression output is not finite: %v", inference.ErrInference, scores)
	}
	return ExpressionLabels[ArgMax(scores)], nil
}

// finite reports whether no value is NaN or infinite
func finite(values []float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
