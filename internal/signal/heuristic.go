package signal

import (
	"context"

	"github.com/trustlane/kestrel/internal/domain"
)

// HeuristicConfig defines a weighted-sum scorer over normalized features.
type HeuristicConfig struct {
	Name    string                       `json:"name"`
	Weights map[domain.FeatureID]float64 `json:"weights"`

	// Confidence names a feature whose normalized value becomes the
	// signal confidence. Empty means full confidence.
	Confidence domain.FeatureID `json:"confidence,omitempty"`
}

type heuristicScorer struct {
	cfg HeuristicConfig
}

func (s *heuristicScorer) Name() string                    { return s.cfg.Name }
func (s *heuristicScorer) Category() domain.SignalCategory { return domain.CategoryHeuristic }

// Score computes the weight-normalized sum of the configured features.
func (s *heuristicScorer) Score(ctx context.Context, fv *domain.FeatureVector) (domain.SignalScore, error) {
	var weighted, total float64
	for id, w := range s.cfg.Weights {
		weighted += fv.Norm(id) * w
		total += w
	}
	value := 0.0
	if total > 0 {
		value = clamp(weighted/total, 0, 1)
	}
	return domain.SignalScore{
		Scorer:     s.cfg.Name,
		Category:   domain.CategoryHeuristic,
		Value:      value,
		Confidence: confidenceFor(fv, s.cfg.Confidence),
	}, nil
}
