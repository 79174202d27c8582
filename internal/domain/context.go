package domain

import (
	"time"
)

// Event types accepted by the assessment pipeline.
const (
	EventPayment         = "payment"
	EventAccountActivity = "account_activity"
)

// RiskContext is the full input to a risk assessment.
type RiskContext struct {
	// Core identifiers
	ID        string `json:"id"`
	TenantID  string `json:"tenantId"`
	SubjectID string `json:"subjectId"`

	// Event type ("payment" or "account_activity")
	Type string `json:"type"`

	// Financial details (required for payment events)
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Session context
	DeviceID    string `json:"deviceId,omitempty"`
	Location    string `json:"location,omitempty"`
	NewDevice   bool   `json:"newDevice"`
	NewLocation bool   `json:"newLocation"`

	// Temporal
	OccurredAt time.Time `json:"occurredAt"`
	CreatedAt  time.Time `json:"createdAt"`

	// Bounded recent history for the subject, oldest first
	History []HistoryEntry `json:"history,omitempty"`

	// Optional metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HistoryEntry is one prior transaction for the subject.
type HistoryEntry struct {
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Validate checks required fields. Missing optional fields fall back to
// documented defaults during feature extraction; required fields fail here.
func (rc *RiskContext) Validate() error {
	if rc.TenantID == "" {
		return &ValidationError{Field: "tenantId", Reason: "required"}
	}
	if rc.SubjectID == "" {
		return &ValidationError{Field: "subjectId", Reason: "required"}
	}
	switch rc.Type {
	case EventPayment:
		if rc.Amount <= 0 {
			return &ValidationError{Field: "amount", Reason: "must be greater than zero for payment events"}
		}
	case EventAccountActivity:
		// amount optional
	default:
		return &ValidationError{Field: "type", Reason: "must be payment or account_activity"}
	}
	return nil
}

// AssessRequest is the API request payload for a risk assessment.
type AssessRequest struct {
	TenantID   string                 `json:"tenantId" validate:"required"`
	SubjectID  string                 `json:"subjectId" validate:"required"`
	Type       string                 `json:"type" validate:"required"`
	Amount     Amount                 `json:"amount"`
	Session    Session                `json:"session"`
	OccurredAt time.Time              `json:"occurredAt,omitempty"`
	History    []HistoryEntry         `json:"history,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Session carries device and location context for the event.
type Session struct {
	DeviceID    string `json:"deviceId,omitempty"`
	Location    string `json:"location,omitempty"`
	NewDevice   bool   `json:"newDevice"`
	NewLocation bool   `json:"newLocation"`
}

// Amount represents a monetary value.
type Amount struct {
	Value    float64 `json:"value" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"required,len=3"`
}

// ToRiskContext converts a request to a RiskContext domain object.
func (r *AssessRequest) ToRiskContext() *RiskContext {
	now := time.Now().UTC()
	occurred := r.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	return &RiskContext{
		TenantID:    r.TenantID,
		SubjectID:   r.SubjectID,
		Type:        r.Type,
		Amount:      r.Amount.Value,
		Currency:    r.Amount.Currency,
		DeviceID:    r.Session.DeviceID,
		Location:    r.Session.Location,
		NewDevice:   r.Session.NewDevice,
		NewLocation: r.Session.NewLocation,
		OccurredAt:  occurred,
		CreatedAt:   now,
		History:     r.History,
		Metadata:    r.Metadata,
	}
}
