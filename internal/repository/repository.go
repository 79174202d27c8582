// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trustlane/kestrel/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveAssessment stores an assessment with tenant isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.RiskAssessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	return r.insertAssessment(ctx, r.db, tenantID, a)
}

func (r *SQLRepository) insertAssessment(ctx context.Context, ex execer, tenantID string, a *domain.RiskAssessment) error {
	signals, _ := json.Marshal(a.Signals)
	failures, _ := json.Marshal(a.Failures)
	metadata, _ := json.Marshal(a.Metadata)

	degraded := 0
	if a.Degraded {
		degraded = 1
	}

	query := `
		INSERT INTO assessments (
			id, tenant_id, subject_id, context_id, score, level, action,
			degraded, signals, failures, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := ex.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.SubjectID, a.ContextID,
		a.Score, string(a.Level), string(a.Action),
		degraded, string(signals), string(failures), string(metadata),
		a.CreatedAt,
	)
	return err
}

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, id string) (*domain.RiskAssessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, subject_id, context_id, score, level, action,
			   degraded, signals, failures, metadata, created_at
		FROM assessments
		WHERE tenant_id = ? AND id = ?
	`

	var a domain.RiskAssessment
	var contextID sql.NullString
	var degraded int
	var signals, failures, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id).Scan(
		&a.ID, &a.TenantID, &a.SubjectID, &contextID,
		&a.Score, &a.Level, &a.Action,
		&degraded, &signals, &failures, &metadata,
		&a.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.ContextID = contextID.String
	a.Degraded = degraded == 1
	json.Unmarshal([]byte(signals), &a.Signals)
	if failures != "" {
		json.Unmarshal([]byte(failures), &a.Failures)
	}
	json.Unmarshal([]byte(metadata), &a.Metadata)

	return &a, nil
}

// SaveAssessmentWithTicket persists an assessment and its review ticket
// in one transaction.
func (r *SQLRepository) SaveAssessmentWithTicket(ctx context.Context, tenantID string, a *domain.RiskAssessment, t *domain.ReviewTicket) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertAssessment(ctx, tx, tenantID, a); err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	if err := r.insertTicket(ctx, tx, tenantID, t); err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}

	return tx.Commit()
}

func (r *SQLRepository) insertTicket(ctx context.Context, ex execer, tenantID string, t *domain.ReviewTicket) error {
	query := `
		INSERT INTO tickets (
			id, tenant_id, assessment_id, subject_id, status, priority,
			assignee, reviewer, outcome, reason_code, notes,
			decided_at, due_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := ex.ExecContext(ctx, r.rebind(query),
		t.ID, tenantID, t.AssessmentID, t.SubjectID,
		string(t.Status), string(t.Priority),
		t.Assignee, t.Reviewer, string(t.Outcome), string(t.ReasonCode), t.Notes,
		t.DecidedAt, t.DueAt, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

const ticketColumns = `id, tenant_id, assessment_id, subject_id, status, priority,
	   assignee, reviewer, outcome, reason_code, notes,
	   decided_at, due_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.ReviewTicket, error) {
	var t domain.ReviewTicket
	var decidedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.TenantID, &t.AssessmentID, &t.SubjectID,
		&t.Status, &t.Priority,
		&t.Assignee, &t.Reviewer, &t.Outcome, &t.ReasonCode, &t.Notes,
		&decidedAt, &t.DueAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if decidedAt.Valid {
		t.DecidedAt = &decidedAt.Time
	}
	return &t, nil
}

// GetTicket retrieves a ticket by ID with tenant isolation.
func (r *SQLRepository) GetTicket(ctx context.Context, tenantID string, id string) (*domain.ReviewTicket, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id = ? AND id = ?`

	t, err := scanTicket(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// GetTicketByAssessment retrieves the ticket opened for an assessment.
func (r *SQLRepository) GetTicketByAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.ReviewTicket, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id = ? AND assessment_id = ?`

	t, err := scanTicket(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// ListTickets retrieves tickets for a tenant, optionally filtered by
// status, newest first.
func (r *SQLRepository) ListTickets(ctx context.Context, tenantID string, status domain.TicketStatus, limit int) ([]*domain.ReviewTicket, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.ReviewTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// ListTicketsDue retrieves open tickets past their SLA deadline across
// all tenants, oldest deadline first. Used by the sweep.
func (r *SQLRepository) ListTicketsDue(ctx context.Context, now time.Time, limit int) ([]*domain.ReviewTicket, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status IN (?, ?) AND due_at < ?
		ORDER BY due_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query),
		string(domain.TicketPending), string(domain.TicketAssigned), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.ReviewTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// UpdateTicket applies a conditional update keyed on the expected status.
// The status guard lives in the WHERE clause, so two racing writers
// resolve at the database: the loser's update matches zero rows and is
// reported as *ConflictError with the status that actually won.
func (r *SQLRepository) UpdateTicket(ctx context.Context, tenantID string, id string, expected domain.TicketStatus, update *domain.TicketUpdate) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		UPDATE tickets
		SET status = ?,
			assignee = COALESCE(NULLIF(?, ''), assignee),
			reviewer = ?,
			outcome = ?,
			reason_code = ?,
			notes = ?,
			decided_at = ?,
			updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(update.Status), update.Assignee,
		update.Reviewer, string(update.Outcome), string(update.ReasonCode), update.Notes,
		update.DecidedAt, update.UpdatedAt,
		tenantID, id, string(expected),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: the ticket is missing or its status moved. Re-read to
	// tell the caller which.
	current, err := r.GetTicket(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return &domain.ConflictError{TicketID: id, Expected: expected, Actual: current.Status}
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
