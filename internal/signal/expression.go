package signal

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/trustlane/kestrel/internal/domain"
)

// ExpressionConfig defines a tenant-authored CEL scorer. The expression
// sees every feature's normalized value as a double plus tenant_id and
// subject_id, and must return bool, int, or double. Compilation happens
// at registry build; a bad expression fails startup.
type ExpressionConfig struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`

	// Confidence names a feature whose normalized value becomes the
	// signal confidence. Empty means full confidence.
	Confidence domain.FeatureID `json:"confidence,omitempty"`
}

type expressionScorer struct {
	cfg     ExpressionConfig
	program cel.Program
}

// newExpressionEnv builds the shared CEL environment for all expression
// scorers in a registry.
func newExpressionEnv() (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.Variable("tenant_id", cel.StringType),
		cel.Variable("subject_id", cel.StringType),
		cel.Variable("features", cel.MapType(cel.StringType, cel.DoubleType)),
	}
	for _, id := range domain.AllFeatureIDs() {
		opts = append(opts, cel.Variable(string(id), cel.DoubleType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// compileExpression compiles and type-checks one expression scorer.
func compileExpression(env *cel.Env, cfg ExpressionConfig) (*expressionScorer, error) {
	ast, issues := env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %s: %w", cfg.Name, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("expression %s: must return bool, int, or double, got %s", cfg.Name, outputType)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for expression %s: %w", cfg.Name, err)
	}

	return &expressionScorer{cfg: cfg, program: program}, nil
}

func (s *expressionScorer) Name() string                    { return s.cfg.Name }
func (s *expressionScorer) Category() domain.SignalCategory { return domain.CategoryCustom }

func (s *expressionScorer) Score(ctx context.Context, fv *domain.FeatureVector) (domain.SignalScore, error) {
	features := make(map[string]float64, len(domain.AllFeatureIDs()))
	activation := map[string]any{
		"tenant_id":  fv.TenantID,
		"subject_id": fv.SubjectID,
	}
	for _, id := range domain.AllFeatureIDs() {
		norm := fv.Norm(id)
		features[string(id)] = norm
		activation[string(id)] = norm
	}
	activation["features"] = features

	out, _, err := s.program.Eval(activation)
	if err != nil {
		return domain.SignalScore{}, fmt.Errorf("expression %s evaluation: %w", s.cfg.Name, err)
	}

	return domain.SignalScore{
		Scorer:     s.cfg.Name,
		Category:   domain.CategoryCustom,
		Value:      clamp(toScore(out), 0, 1),
		Confidence: confidenceFor(fv, s.cfg.Confidence),
	}, nil
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}
