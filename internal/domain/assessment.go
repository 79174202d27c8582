package domain

import (
	"time"
)

// SignalCategory groups scorers for weighted aggregation.
type SignalCategory string

const (
	CategoryHeuristic SignalCategory = "heuristic"
	CategoryAnomaly   SignalCategory = "anomaly"
	CategoryPattern   SignalCategory = "pattern"
	CategoryProfile   SignalCategory = "profile"
	CategoryCustom    SignalCategory = "custom"
)

// RiskLevel is the discrete band for an aggregate score.
type RiskLevel string

const (
	LevelMinimal RiskLevel = "minimal"
	LevelLow     RiskLevel = "low"
	LevelMedium  RiskLevel = "medium"
	LevelHigh    RiskLevel = "high"
)

// Level thresholds. The mapping is a fixed step function: the same score
// always yields the same level.
const (
	LevelLowThreshold    = 0.4
	LevelMediumThreshold = 0.6
	LevelHighThreshold   = 0.8
)

// LevelForScore maps an aggregate score to its risk level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= LevelHighThreshold:
		return LevelHigh
	case score >= LevelMediumThreshold:
		return LevelMedium
	case score >= LevelLowThreshold:
		return LevelLow
	default:
		return LevelMinimal
	}
}

// Action is the recommended handling for an assessed event.
type Action string

const (
	ActionAutoApprove  Action = "auto_approve"
	ActionManualReview Action = "manual_review"
	ActionBlock        Action = "block"
)

// Escalate returns the action one tier closer to Block.
func (a Action) Escalate() Action {
	switch a {
	case ActionAutoApprove:
		return ActionManualReview
	default:
		return ActionBlock
	}
}

// AnomalySeverity bands for anomaly detector output.
type AnomalySeverity string

const (
	SeverityMinor    AnomalySeverity = "minor"
	SeverityMajor    AnomalySeverity = "major"
	SeverityCritical AnomalySeverity = "critical"
)

// SignalScore is the output of a single scorer.
type SignalScore struct {
	Scorer   string         `json:"scorer"`
	Category SignalCategory `json:"category"`

	// Value in [0,1]; Confidence in [0,1]. Confidence 0 means the scorer
	// had no basis to judge and the signal is excluded from aggregation.
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`

	// Optional detail
	Severity  AnomalySeverity `json:"severity,omitempty"`
	Matched   []FeatureID     `json:"matched,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	ProcessMs int64           `json:"processMs,omitempty"`
}

// RiskAssessment is the complete result for one assessed event.
type RiskAssessment struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	SubjectID string    `json:"subjectId"`
	ContextID string    `json:"contextId,omitempty"`
	Score     float64   `json:"score"`
	Level     RiskLevel `json:"level"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`

	// Per-scorer outputs
	Signals []SignalScore `json:"signals"`

	// Scorers that errored or timed out
	Failures []ScorerFailure `json:"failures,omitempty"`

	// Degraded is set when more than half of the scorers failed. A degraded
	// assessment is never auto-approved.
	Degraded bool `json:"degraded"`

	// Processing metadata
	Metadata AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID         string `json:"traceId,omitempty"`
	ExtractMs       int64  `json:"extractMs"`
	ScoreMs         int64  `json:"scoreMs"`
	TotalMs         int64  `json:"totalMs"`
	ScorersRun      int    `json:"scorersRun"`
	ScorersFailed   int    `json:"scorersFailed"`
	EngineVersion   string `json:"engineVersion"`
	RegistryVersion string `json:"registryVersion,omitempty"`
}

// AssessmentResponse is the API response for an assessment.
type AssessmentResponse struct {
	AssessmentID string             `json:"assessmentId"`
	TenantID     string             `json:"tenantId"`
	SubjectID    string             `json:"subjectId"`
	Score        float64            `json:"score"`
	Level        RiskLevel          `json:"level"`
	Action       Action             `json:"action"`
	Degraded     bool               `json:"degraded"`
	TicketID     string             `json:"ticketId,omitempty"`
	Reasons      []string           `json:"reasons,omitempty"`
	Metadata     AssessmentMetadata `json:"metadata"`
}

// ToResponse converts an assessment to an API response. Reasons collects
// the named signals that contributed at or above the low threshold.
func (a *RiskAssessment) ToResponse(ticketID string) *AssessmentResponse {
	var reasons []string
	for _, s := range a.Signals {
		if s.Value >= LevelLowThreshold && s.Confidence > 0 {
			reasons = append(reasons, s.Scorer)
		}
	}
	return &AssessmentResponse{
		AssessmentID: a.ID,
		TenantID:     a.TenantID,
		SubjectID:    a.SubjectID,
		Score:        a.Score,
		Level:        a.Level,
		Action:       a.Action,
		Degraded:     a.Degraded,
		TicketID:     ticketID,
		Reasons:      reasons,
		Metadata:     a.Metadata,
	}
}
