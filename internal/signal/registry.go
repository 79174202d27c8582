package signal

import (
	"context"
	"fmt"
	"math"

	"github.com/trustlane/kestrel/internal/domain"
)

// weightEpsilon is the tolerance for profile weight sums.
const weightEpsilon = 1e-6

// RegistryConfig declares the scorer set for one deployment. The registry
// is built once at startup from this config and injected where needed;
// there is no global registry and no runtime mutation.
type RegistryConfig struct {
	Version     string             `json:"version"`
	Heuristics  []HeuristicConfig  `json:"heuristics,omitempty"`
	Anomalies   []AnomalyConfig    `json:"anomalies,omitempty"`
	Patterns    []PatternConfig    `json:"patterns,omitempty"`
	Profiles    []ProfileConfig    `json:"profiles,omitempty"`
	Expressions []ExpressionConfig `json:"expressions,omitempty"`
}

// Registry holds the validated, immutable scorer set.
type Registry struct {
	version string
	scorers []Scorer
	noise   NoiseSource
}

// NewRegistry validates every scorer configuration and builds the
// registry. Any invalid entry (unknown feature weights, profile weights
// not summing to 1, uncompilable expression) fails construction, which
// fails process startup.
func NewRegistry(cfg *RegistryConfig, noise NoiseSource) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("registry config is required")
	}
	if noise == nil {
		noise = NoNoise{}
	}

	version := cfg.Version
	if version == "" {
		version = "v1"
	}

	r := &Registry{version: version, noise: noise}
	seen := make(map[string]bool)

	add := func(name string, s Scorer) error {
		if name == "" {
			return fmt.Errorf("scorer name is required")
		}
		if seen[name] {
			return fmt.Errorf("duplicate scorer name %q", name)
		}
		seen[name] = true
		r.scorers = append(r.scorers, s)
		return nil
	}

	for _, hc := range cfg.Heuristics {
		if err := validateHeuristic(hc); err != nil {
			return nil, err
		}
		if err := add(hc.Name, &heuristicScorer{cfg: hc}); err != nil {
			return nil, err
		}
	}

	for _, ac := range cfg.Anomalies {
		if err := validateAnomaly(ac); err != nil {
			return nil, err
		}
		if err := add(ac.Name, &anomalyScorer{cfg: ac}); err != nil {
			return nil, err
		}
	}

	for _, pc := range cfg.Patterns {
		if err := validatePattern(pc); err != nil {
			return nil, err
		}
		if err := add(pc.Name, &patternScorer{cfg: pc}); err != nil {
			return nil, err
		}
	}

	for _, pc := range cfg.Profiles {
		if err := validateProfile(pc); err != nil {
			return nil, err
		}
		if err := add(pc.Name, &profileScorer{cfg: pc}); err != nil {
			return nil, err
		}
	}

	if len(cfg.Expressions) > 0 {
		env, err := newExpressionEnv()
		if err != nil {
			return nil, err
		}
		for _, ec := range cfg.Expressions {
			compiled, err := compileExpression(env, ec)
			if err != nil {
				return nil, err
			}
			if err := add(ec.Name, compiled); err != nil {
				return nil, err
			}
		}
	}

	if len(r.scorers) == 0 {
		return nil, fmt.Errorf("registry has no scorers")
	}

	return r, nil
}

// Version identifies the scorer set for reproducibility.
func (r *Registry) Version() string { return r.version }

// Len returns the number of registered scorers.
func (r *Registry) Len() int { return len(r.scorers) }

// Scorers returns a snapshot of the registered scorers in registration
// order.
func (r *Registry) Scorers() []Scorer {
	out := make([]Scorer, len(r.scorers))
	copy(out, r.scorers)
	return out
}

// Score runs one scorer by registry rules: jitter from the noise source
// is applied to the raw value and the result re-clamped.
func (r *Registry) Score(ctx context.Context, s Scorer, fv *domain.FeatureVector) (domain.SignalScore, error) {
	score, err := s.Score(ctx, fv)
	if err != nil {
		return score, err
	}
	if jitter := r.noise.Jitter(s.Name()); jitter != 0 {
		score.Value = clamp(score.Value+jitter, 0, 1)
	}
	return score, nil
}

func validateHeuristic(cfg HeuristicConfig) error {
	if len(cfg.Weights) == 0 {
		return fmt.Errorf("heuristic %s: at least one feature weight is required", cfg.Name)
	}
	for id, w := range cfg.Weights {
		if w <= 0 {
			return fmt.Errorf("heuristic %s: weight for %s must be positive", cfg.Name, id)
		}
	}
	return nil
}

func validateAnomaly(cfg AnomalyConfig) error {
	if cfg.Feature == "" {
		return fmt.Errorf("anomaly %s: feature is required", cfg.Name)
	}
	if cfg.Sensitivity <= 0 || cfg.Sensitivity >= 1 {
		return fmt.Errorf("anomaly %s: sensitivity must be in (0,1), got %f", cfg.Name, cfg.Sensitivity)
	}
	return nil
}

func validatePattern(cfg PatternConfig) error {
	if len(cfg.Indicators) == 0 {
		return fmt.Errorf("pattern %s: at least one indicator is required", cfg.Name)
	}
	if cfg.RiskScore <= 0 || cfg.RiskScore > 1 {
		return fmt.Errorf("pattern %s: risk score must be in (0,1], got %f", cfg.Name, cfg.RiskScore)
	}
	return nil
}

// validateProfile enforces the weight-map invariant at load time: weights
// must sum to 1 within epsilon, or the whole registry fails to build.
func validateProfile(cfg ProfileConfig) error {
	if len(cfg.Weights) == 0 {
		return fmt.Errorf("profile %s: weight map is required", cfg.Name)
	}
	var sum float64
	for factor, w := range cfg.Weights {
		if w < 0 {
			return fmt.Errorf("profile %s: weight for %s must not be negative", cfg.Name, factor)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightEpsilon {
		return fmt.Errorf("profile %s: weights sum to %f, expected 1", cfg.Name, sum)
	}
	return nil
}
