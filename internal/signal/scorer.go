// Package signal provides the pluggable scorer library.
package signal

import (
	"context"

	"github.com/trustlane/kestrel/internal/domain"
)

// Scorer produces one risk signal from a feature vector. Implementations
// are stateless and deterministic: identical vectors and configuration
// always yield identical scores.
type Scorer interface {
	Name() string
	Category() domain.SignalCategory
	Score(ctx context.Context, fv *domain.FeatureVector) (domain.SignalScore, error)
}

// confidenceFor resolves a scorer's confidence. Scorers that track a
// feature (usually history_depth) abstain when it is empty; all others
// judge with full confidence.
func confidenceFor(fv *domain.FeatureVector, feature domain.FeatureID) float64 {
	if feature == "" {
		return 1
	}
	return fv.Norm(feature)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
