package signal

import "github.com/trustlane/kestrel/internal/domain"

// DefaultRegistryConfig returns the stock scorer set. Deployments extend
// or replace it via configuration; the defaults cover the common payment
// fraud signals out of the box.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		Version: "v1",
		Heuristics: []HeuristicConfig{
			{
				Name: "velocity-model",
				Weights: map[domain.FeatureID]float64{
					domain.FeatureVelocity:  0.6,
					domain.FeatureFrequency: 0.4,
				},
				Confidence: domain.FeatureHistoryDepth,
			},
			{
				Name: "amount-model",
				Weights: map[domain.FeatureID]float64{
					domain.FeatureAmount:      0.5,
					domain.FeatureHighValue:   0.3,
					domain.FeatureRoundAmount: 0.2,
				},
			},
			{
				Name: "context-model",
				Weights: map[domain.FeatureID]float64{
					domain.FeatureNewDevice:   0.45,
					domain.FeatureNewLocation: 0.45,
					domain.FeatureUnusualTime: 0.10,
				},
			},
		},
		Anomalies: []AnomalyConfig{
			{Name: "amount-spike", Feature: domain.FeatureAmount, Sensitivity: 0.7},
			{Name: "tempo", Feature: domain.FeatureFrequency, Sensitivity: 0.7, Confidence: domain.FeatureHistoryDepth},
		},
		Patterns: []PatternConfig{
			{
				Name:      "card-testing",
				RiskScore: 0.9,
				Indicators: []Indicator{
					{Feature: domain.FeatureFrequency, Min: 0.5},
					{Feature: domain.FeatureRoundAmount},
					{Feature: domain.FeatureNewDevice},
				},
			},
			{
				Name:      "account-takeover",
				RiskScore: 0.9,
				Indicators: []Indicator{
					{Feature: domain.FeatureNewDevice},
					{Feature: domain.FeatureNewLocation},
					{Feature: domain.FeatureUnusualTime},
				},
			},
			{
				Name:      "high-value-probe",
				RiskScore: 0.9,
				Indicators: []Indicator{
					{Feature: domain.FeatureHighValue},
					{Feature: domain.FeatureNewLocation},
				},
			},
		},
		Profiles: []ProfileConfig{
			{
				Name: "baseline-profile",
				Weights: map[ProfileFactor]float64{
					FactorAmount:   0.35,
					FactorVelocity: 0.25,
					FactorContext:  0.25,
					FactorTempo:    0.15,
				},
			},
		},
	}
}
