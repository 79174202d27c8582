package signal

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/trustlane/kestrel/internal/domain"
)

func vector(values map[domain.FeatureID]domain.FeatureValue) *domain.FeatureVector {
	return domain.NewFeatureVector("tenant-1", "subject-1", time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC), values)
}

func norms(pairs map[domain.FeatureID]float64) *domain.FeatureVector {
	values := make(map[domain.FeatureID]domain.FeatureValue, len(pairs))
	for id, n := range pairs {
		values[id] = domain.FeatureValue{Raw: n, Norm: n}
	}
	return vector(values)
}

func TestHeuristicScorer(t *testing.T) {
	s := &heuristicScorer{cfg: HeuristicConfig{
		Name: "amount-model",
		Weights: map[domain.FeatureID]float64{
			domain.FeatureAmount:      0.5,
			domain.FeatureHighValue:   0.3,
			domain.FeatureRoundAmount: 0.2,
		},
	}}

	t.Run("WeightedSum", func(t *testing.T) {
		fv := norms(map[domain.FeatureID]float64{
			domain.FeatureAmount:      1,
			domain.FeatureHighValue:   1,
			domain.FeatureRoundAmount: 0,
		})
		score, err := s.Score(context.Background(), fv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(score.Value-0.8) > 1e-9 {
			t.Errorf("expected value 0.8, got %f", score.Value)
		}
		if score.Confidence != 1 {
			t.Errorf("expected confidence 1, got %f", score.Confidence)
		}
	})

	t.Run("MissingFeaturesScoreZero", func(t *testing.T) {
		score, err := s.Score(context.Background(), norms(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score.Value != 0 {
			t.Errorf("expected value 0, got %f", score.Value)
		}
	})

	t.Run("ConfidenceTracksFeature", func(t *testing.T) {
		tracked := &heuristicScorer{cfg: HeuristicConfig{
			Name:       "velocity-model",
			Weights:    map[domain.FeatureID]float64{domain.FeatureVelocity: 1},
			Confidence: domain.FeatureHistoryDepth,
		}}
		fv := norms(map[domain.FeatureID]float64{
			domain.FeatureVelocity:     0.5,
			domain.FeatureHistoryDepth: 0.4,
		})
		score, err := tracked.Score(context.Background(), fv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score.Confidence != 0.4 {
			t.Errorf("expected confidence 0.4, got %f", score.Confidence)
		}
	})
}

func TestAnomalyScorer(t *testing.T) {
	s := &anomalyScorer{cfg: AnomalyConfig{
		Name:        "amount-spike",
		Feature:     domain.FeatureAmount,
		Sensitivity: 0.7,
	}}

	t.Run("SilentBelowSensitivity", func(t *testing.T) {
		score, err := s.Score(context.Background(), norms(map[domain.FeatureID]float64{domain.FeatureAmount: 0.69}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score.Value != 0 || score.Severity != "" {
			t.Errorf("expected silent signal, got value %f severity %s", score.Value, score.Severity)
		}
	})

	t.Run("SilentAtSensitivity", func(t *testing.T) {
		score, _ := s.Score(context.Background(), norms(map[domain.FeatureID]float64{domain.FeatureAmount: 0.7}))
		if score.Value != 0 {
			t.Errorf("expected no anomaly at exact sensitivity, got %f", score.Value)
		}
	})

	t.Run("SeverityBands", func(t *testing.T) {
		cases := []struct {
			norm     float64
			severity domain.AnomalySeverity
		}{
			{0.75, domain.SeverityMinor},
			{0.90, domain.SeverityMajor},
			{1.0, domain.SeverityCritical},
		}
		for _, tc := range cases {
			score, _ := s.Score(context.Background(), norms(map[domain.FeatureID]float64{domain.FeatureAmount: tc.norm}))
			if score.Severity != tc.severity {
				t.Errorf("norm %f: expected severity %s, got %s", tc.norm, tc.severity, score.Severity)
			}
			if score.Value != tc.norm {
				t.Errorf("norm %f: expected value passthrough, got %f", tc.norm, score.Value)
			}
		}
	})
}

func TestPatternScorer(t *testing.T) {
	s := &patternScorer{cfg: PatternConfig{
		Name:      "account-takeover",
		RiskScore: 0.9,
		Indicators: []Indicator{
			{Feature: domain.FeatureNewDevice},
			{Feature: domain.FeatureNewLocation},
			{Feature: domain.FeatureUnusualTime},
		},
	}}

	t.Run("MatchAboveHalf", func(t *testing.T) {
		fv := norms(map[domain.FeatureID]float64{
			domain.FeatureNewDevice:   1,
			domain.FeatureNewLocation: 1,
		})
		score, err := s.Score(context.Background(), fv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := 0.9 * (2.0 / 3.0)
		if math.Abs(score.Value-want) > 1e-9 {
			t.Errorf("expected value %f, got %f", want, score.Value)
		}
		if len(score.Matched) != 2 {
			t.Errorf("expected 2 matched indicators, got %d", len(score.Matched))
		}
	})

	t.Run("NoMatchAtExactlyHalf", func(t *testing.T) {
		half := &patternScorer{cfg: PatternConfig{
			Name:      "two-of-four",
			RiskScore: 0.9,
			Indicators: []Indicator{
				{Feature: domain.FeatureNewDevice},
				{Feature: domain.FeatureNewLocation},
				{Feature: domain.FeatureUnusualTime},
				{Feature: domain.FeatureHighValue},
			},
		}}
		fv := norms(map[domain.FeatureID]float64{
			domain.FeatureNewDevice:   1,
			domain.FeatureNewLocation: 1,
		})
		score, _ := half.Score(context.Background(), fv)
		if score.Value != 0 {
			t.Errorf("expected no match at exactly half, got %f", score.Value)
		}
	})

	t.Run("ThresholdIndicator", func(t *testing.T) {
		freq := &patternScorer{cfg: PatternConfig{
			Name:      "card-testing",
			RiskScore: 0.9,
			Indicators: []Indicator{
				{Feature: domain.FeatureFrequency, Min: 0.5},
				{Feature: domain.FeatureRoundAmount},
			},
		}}
		fv := norms(map[domain.FeatureID]float64{
			domain.FeatureFrequency:   0.6,
			domain.FeatureRoundAmount: 1,
		})
		score, _ := freq.Score(context.Background(), fv)
		if math.Abs(score.Value-0.9) > 1e-9 {
			t.Errorf("expected full match value 0.9, got %f", score.Value)
		}
	})

	t.Run("NonMatchKeepsConfidence", func(t *testing.T) {
		score, _ := s.Score(context.Background(), norms(nil))
		if score.Confidence != 1 {
			t.Errorf("expected confidence 1 on non-match, got %f", score.Confidence)
		}
	})
}

func TestProfileScorer(t *testing.T) {
	s := &profileScorer{cfg: ProfileConfig{
		Name: "baseline-profile",
		Weights: map[ProfileFactor]float64{
			FactorAmount:   0.35,
			FactorVelocity: 0.25,
			FactorContext:  0.25,
			FactorTempo:    0.15,
		},
	}}

	t.Run("RenormalizesWithoutHistory", func(t *testing.T) {
		fv := norms(map[domain.FeatureID]float64{
			domain.FeatureAmount:      1,
			domain.FeatureNewDevice:   1,
			domain.FeatureNewLocation: 1,
		})
		score, err := s.Score(context.Background(), fv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// velocity and tempo factors drop out; amount and context renormalize
		want := (0.35*1 + 0.25*(2.0/3.0)) / 0.6
		if math.Abs(score.Value-want) > 1e-9 {
			t.Errorf("expected value %f, got %f", want, score.Value)
		}
	})

	t.Run("AllFactorsWithHistory", func(t *testing.T) {
		fv := norms(map[domain.FeatureID]float64{
			domain.FeatureAmount:       0.4,
			domain.FeatureVelocity:     0.2,
			domain.FeatureFrequency:    0.6,
			domain.FeatureHistoryDepth: 1,
		})
		score, err := s.Score(context.Background(), fv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := 0.35*0.4 + 0.25*0.2 + 0.25*0.0 + 0.15*0.6
		if math.Abs(score.Value-want) > 1e-9 {
			t.Errorf("expected value %f, got %f", want, score.Value)
		}
	})
}

func TestExpressionScorer(t *testing.T) {
	env, err := newExpressionEnv()
	if err != nil {
		t.Fatalf("failed to create env: %v", err)
	}

	t.Run("BoolExpression", func(t *testing.T) {
		s, err := compileExpression(env, ExpressionConfig{
			Name:       "big-new-device",
			Expression: `amount > 0.5 && new_device == 1.0`,
		})
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}
		fv := norms(map[domain.FeatureID]float64{
			domain.FeatureAmount:    0.8,
			domain.FeatureNewDevice: 1,
		})
		score, err := s.Score(context.Background(), fv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score.Value != 1 {
			t.Errorf("expected value 1, got %f", score.Value)
		}
		if score.Category != domain.CategoryCustom {
			t.Errorf("expected custom category, got %s", score.Category)
		}
	})

	t.Run("DoubleExpressionClamped", func(t *testing.T) {
		s, err := compileExpression(env, ExpressionConfig{
			Name:       "double-amount",
			Expression: `amount * 3.0`,
		})
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}
		score, err := s.Score(context.Background(), norms(map[domain.FeatureID]float64{domain.FeatureAmount: 0.5}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score.Value != 1 {
			t.Errorf("expected clamped value 1, got %f", score.Value)
		}
	})

	t.Run("FeatureMapAccess", func(t *testing.T) {
		s, err := compileExpression(env, ExpressionConfig{
			Name:       "map-access",
			Expression: `features["high_value"]`,
		})
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}
		score, err := s.Score(context.Background(), norms(map[domain.FeatureID]float64{domain.FeatureHighValue: 1}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score.Value != 1 {
			t.Errorf("expected value 1, got %f", score.Value)
		}
	})

	t.Run("CompileErrorRejected", func(t *testing.T) {
		if _, err := compileExpression(env, ExpressionConfig{
			Name:       "broken",
			Expression: `amount >`,
		}); err == nil {
			t.Error("expected compile error")
		}
	})

	t.Run("StringOutputRejected", func(t *testing.T) {
		if _, err := compileExpression(env, ExpressionConfig{
			Name:       "stringy",
			Expression: `tenant_id`,
		}); err == nil {
			t.Error("expected output type error")
		}
	})
}
