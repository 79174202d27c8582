// Package domain defines the core types and ports for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation, except
// ListTicketsDue which the system-level SLA sweep runs across tenants.
type Repository interface {
	// Assessment operations
	SaveAssessment(ctx context.Context, tenantID string, a *RiskAssessment) error
	GetAssessment(ctx context.Context, tenantID string, id string) (*RiskAssessment, error)

	// SaveAssessmentWithTicket persists an assessment and its review ticket
	// in a single transaction. Either both commit or neither does.
	SaveAssessmentWithTicket(ctx context.Context, tenantID string, a *RiskAssessment, t *ReviewTicket) error

	// Ticket operations
	GetTicket(ctx context.Context, tenantID string, id string) (*ReviewTicket, error)
	GetTicketByAssessment(ctx context.Context, tenantID string, assessmentID string) (*ReviewTicket, error)
	ListTickets(ctx context.Context, tenantID string, status TicketStatus, limit int) ([]*ReviewTicket, error)

	// ListTicketsDue returns open tickets whose SLA deadline has passed,
	// across all tenants, oldest deadline first.
	ListTicketsDue(ctx context.Context, now time.Time, limit int) ([]*ReviewTicket, error)

	// UpdateTicket applies a conditional update keyed on the ticket's
	// current status. When the row is not in the expected status the update
	// is rejected with *ConflictError carrying the actual status.
	UpdateTicket(ctx context.Context, tenantID string, id string, expected TicketStatus, update *TicketUpdate) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// TicketUpdate is the mutable slice of a ticket applied by UpdateTicket.
type TicketUpdate struct {
	Status     TicketStatus
	Assignee   string
	Reviewer   string
	Outcome    TicketOutcome
	ReasonCode ReasonCode
	Notes      string
	DecidedAt  *time.Time
	UpdatedAt  time.Time
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
