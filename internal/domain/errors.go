package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across adapters.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates malformed input to a storage operation.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// ScorerFailure records a scorer that errored, panicked, or timed out.
// Failures are contained: they are attached to the assessment instead of
// aborting the remaining scorers.
type ScorerFailure struct {
	Scorer  string `json:"scorer"`
	Reason  string `json:"reason"`
	Timeout bool   `json:"timeout"`
	err     error
}

// NewScorerFailure wraps a scorer error for the assessment record.
func NewScorerFailure(scorer string, err error, timeout bool) *ScorerFailure {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	return &ScorerFailure{Scorer: scorer, Reason: reason, Timeout: timeout, err: err}
}

func (e *ScorerFailure) Error() string {
	if e.Timeout {
		return fmt.Sprintf("scorer %s timed out", e.Scorer)
	}
	return fmt.Sprintf("scorer %s failed: %s", e.Scorer, e.Reason)
}

func (e *ScorerFailure) Unwrap() error { return e.err }

// ConflictError reports a ticket update that lost an optimistic
// concurrency race: the ticket was not in the expected status.
type ConflictError struct {
	TicketID string
	Expected TicketStatus
	Actual   TicketStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("ticket %s status conflict: expected %s, found %s", e.TicketID, e.Expected, e.Actual)
}

// ExpiredTicketError reports a decision attempted on a ticket that the
// SLA sweep already expired.
type ExpiredTicketError struct {
	TicketID string
	DueAt    time.Time
}

func (e *ExpiredTicketError) Error() string {
	return fmt.Sprintf("ticket %s expired at %s", e.TicketID, e.DueAt.Format(time.RFC3339))
}

// DegradedServiceError reports that too few scorers produced usable
// signals to form an assessment. Callers must treat the event as
// requiring manual review, never as approved.
type DegradedServiceError struct {
	Failed int
	Total  int
}

func (e *DegradedServiceError) Error() string {
	return fmt.Sprintf("degraded service: %d of %d scorers failed", e.Failed, e.Total)
}
