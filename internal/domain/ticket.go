package domain

import "time"

// TicketStatus is the review ticket lifecycle state.
type TicketStatus string

const (
	TicketPending  TicketStatus = "pending"
	TicketAssigned TicketStatus = "assigned"
	TicketApproved TicketStatus = "approved"
	TicketRejected TicketStatus = "rejected"
	TicketExpired  TicketStatus = "expired"
)

// IsTerminal reports whether the status permits no further transitions.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketApproved, TicketRejected, TicketExpired:
		return true
	}
	return false
}

// TicketPriority orders tickets for review and selects the SLA.
type TicketPriority string

const (
	PriorityCritical TicketPriority = "critical"
	PriorityHigh     TicketPriority = "high"
	PriorityNormal   TicketPriority = "normal"
	PriorityLow      TicketPriority = "low"
)

// PriorityForLevel maps a risk level to the ticket priority.
func PriorityForLevel(level RiskLevel) TicketPriority {
	switch level {
	case LevelHigh:
		return PriorityCritical
	case LevelMedium:
		return PriorityHigh
	case LevelLow:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// TicketOutcome is a reviewer decision.
type TicketOutcome string

const (
	OutcomeApproved TicketOutcome = "approved"
	OutcomeRejected TicketOutcome = "rejected"
)

// ReasonCode explains a rejection. Required when the outcome is rejected.
type ReasonCode string

const (
	ReasonInsufficientDocs ReasonCode = "insufficient_documentation"
	ReasonFraudRisk        ReasonCode = "fraud_risk"
	ReasonInvalidDetails   ReasonCode = "invalid_details"
	ReasonPolicyViolation  ReasonCode = "policy_violation"
	ReasonDuplicate        ReasonCode = "duplicate"
	ReasonOther            ReasonCode = "other"
)

// ValidReasonCode reports whether the code is in the fixed enumeration.
func ValidReasonCode(code ReasonCode) bool {
	switch code {
	case ReasonInsufficientDocs, ReasonFraudRisk, ReasonInvalidDetails,
		ReasonPolicyViolation, ReasonDuplicate, ReasonOther:
		return true
	}
	return false
}

// SLATable maps ticket priority to the review deadline window.
type SLATable map[TicketPriority]time.Duration

// DefaultSLATable returns the stock SLA windows. Tenants may override
// per priority via configuration.
func DefaultSLATable() SLATable {
	return SLATable{
		PriorityCritical: 4 * time.Hour,
		PriorityHigh:     12 * time.Hour,
		PriorityNormal:   24 * time.Hour,
		PriorityLow:      72 * time.Hour,
	}
}

// Window returns the SLA for a priority, falling back to the normal window.
func (t SLATable) Window(p TicketPriority) time.Duration {
	if d, ok := t[p]; ok {
		return d
	}
	return 24 * time.Hour
}

// ReviewTicket is a manual review work item opened for an assessment.
// At most one ticket exists per assessment.
type ReviewTicket struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenantId"`
	AssessmentID string         `json:"assessmentId"`
	SubjectID    string         `json:"subjectId"`
	Status       TicketStatus   `json:"status"`
	Priority     TicketPriority `json:"priority"`

	// Assignment
	Assignee string `json:"assignee,omitempty"`

	// Decision fields, set when terminal
	Reviewer   string        `json:"reviewer,omitempty"`
	Outcome    TicketOutcome `json:"outcome,omitempty"`
	ReasonCode ReasonCode    `json:"reasonCode,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	DecidedAt  *time.Time    `json:"decidedAt,omitempty"`

	// SLA deadline; tickets past due transition to expired on sweep
	DueAt time.Time `json:"dueAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TicketDecision is the API request payload for deciding a ticket.
type TicketDecision struct {
	Reviewer   string        `json:"reviewer" validate:"required"`
	Outcome    TicketOutcome `json:"outcome" validate:"required"`
	ReasonCode ReasonCode    `json:"reasonCode,omitempty"`
	Notes      string        `json:"notes,omitempty"`
}

// TicketAssignment is the API request payload for assigning a ticket.
type TicketAssignment struct {
	Assignee string `json:"assignee" validate:"required"`
}
