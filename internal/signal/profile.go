package signal

import (
	"context"

	"github.com/trustlane/kestrel/internal/domain"
)

// ProfileFactor names one component of a risk profile.
type ProfileFactor string

const (
	FactorAmount   ProfileFactor = "amount"
	FactorVelocity ProfileFactor = "velocity"
	FactorContext  ProfileFactor = "context"
	FactorTempo    ProfileFactor = "tempo"
)

// ProfileConfig defines a risk-profile scorer: a weight map over factors.
// Weights must sum to 1; the registry rejects any profile that does not.
type ProfileConfig struct {
	Name    string                    `json:"name"`
	Weights map[ProfileFactor]float64 `json:"weights"`
}

type profileScorer struct {
	cfg ProfileConfig
}

func (s *profileScorer) Name() string                    { return s.cfg.Name }
func (s *profileScorer) Category() domain.SignalCategory { return domain.CategoryProfile }

// Score blends the available factors by their validated weights. Factors
// that need history (velocity, tempo) drop out on thin history and the
// remaining weights are renormalized.
func (s *profileScorer) Score(ctx context.Context, fv *domain.FeatureVector) (domain.SignalScore, error) {
	depth := fv.Norm(domain.FeatureHistoryDepth)

	var weighted, total float64
	for factor, w := range s.cfg.Weights {
		value, ok := factorValue(fv, factor, depth)
		if !ok {
			continue
		}
		weighted += value * w
		total += w
	}

	value := 0.0
	if total > 0 {
		value = clamp(weighted/total, 0, 1)
	}
	return domain.SignalScore{
		Scorer:     s.cfg.Name,
		Category:   domain.CategoryProfile,
		Value:      value,
		Confidence: 1,
	}, nil
}

// factorValue resolves one factor against the vector. The history_depth
// norm is len(history)/5 capped at 1: 0.4 marks two entries, 0.2 one.
func factorValue(fv *domain.FeatureVector, factor ProfileFactor, depth float64) (float64, bool) {
	switch factor {
	case FactorAmount:
		return fv.Norm(domain.FeatureAmount), true
	case FactorVelocity:
		if depth < 0.4 {
			return 0, false
		}
		return fv.Norm(domain.FeatureVelocity), true
	case FactorContext:
		sum := fv.Norm(domain.FeatureNewDevice) +
			fv.Norm(domain.FeatureNewLocation) +
			fv.Norm(domain.FeatureUnusualTime)
		return sum / 3, true
	case FactorTempo:
		if depth < 0.2 {
			return 0, false
		}
		return fv.Norm(domain.FeatureFrequency), true
	}
	return 0, false
}
