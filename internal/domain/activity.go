package domain

import "time"

// Activity event types tracked by the monitor.
const (
	ActivityLogin         = "login"
	ActivityPayment       = "payment"
	ActivityProfileChange = "profile_change"
	ActivityPasswordReset = "password_reset"
)

// ActivityEvent is one observed subject action. Events are append-only;
// the monitor never mutates them after ingestion.
type ActivityEvent struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	SubjectID  string    `json:"subjectId"`
	Type       string    `json:"type"`
	DeviceID   string    `json:"deviceId,omitempty"`
	Location   string    `json:"location,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Validate checks required fields on an activity event.
func (e *ActivityEvent) Validate() error {
	if e.TenantID == "" {
		return &ValidationError{Field: "tenantId", Reason: "required"}
	}
	if e.SubjectID == "" {
		return &ValidationError{Field: "subjectId", Reason: "required"}
	}
	if e.Type == "" {
		return &ValidationError{Field: "type", Reason: "required"}
	}
	return nil
}

// Alert types emitted by the activity monitor and the ticket sweeper.
const (
	AlertRapidActivity  = "rapid_activity"
	AlertDeviceCycling  = "device_cycling"
	AlertLocationSpread = "location_spread"
	AlertTicketExpired  = "ticket_expired"
)

// AlertSeverity ranks alerts for downstream routing.
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// Alert is a notification-worthy observation about a subject. Alerts are
// append-only and deduplicated per (subject, type) within a cooldown.
type Alert struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenantId"`
	SubjectID string        `json:"subjectId"`
	Type      string        `json:"type"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`

	// Window context for monitor alerts
	Window string `json:"window,omitempty"`
	Count  int    `json:"count,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// WindowStats summarizes one sliding window for a subject.
type WindowStats struct {
	Window            string    `json:"window"`
	Count             int       `json:"count"`
	DistinctDevices   int       `json:"distinctDevices"`
	DistinctLocations int       `json:"distinctLocations"`
	TotalAmount       float64   `json:"totalAmount"`
	OldestAt          time.Time `json:"oldestAt,omitempty"`
	NewestAt          time.Time `json:"newestAt,omitempty"`
}
