package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/trustlane/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testAssessment(id, subject string) *domain.RiskAssessment {
	return &domain.RiskAssessment{
		ID:        id,
		TenantID:  "tenant-001",
		SubjectID: subject,
		ContextID: "ctx-001",
		Score:     0.85,
		Level:     domain.LevelHigh,
		Action:    domain.ActionBlock,
		CreatedAt: time.Now().UTC(),
		Signals: []domain.SignalScore{
			{Scorer: "velocity-model", Category: domain.CategoryHeuristic, Value: 0.9, Confidence: 1},
		},
		Failures: []domain.ScorerFailure{
			{Scorer: "tempo", Reason: "deadline exceeded", Timeout: true},
		},
		Degraded: false,
		Metadata: domain.AssessmentMetadata{
			EngineVersion: "kestrel-1.0",
			ScorersRun:    9,
			ScorersFailed: 1,
		},
	}
}

func testTicket(id, assessmentID string, due time.Time) *domain.ReviewTicket {
	now := time.Now().UTC()
	return &domain.ReviewTicket{
		ID:           id,
		TenantID:     "tenant-001",
		AssessmentID: assessmentID,
		SubjectID:    "subject-001",
		Status:       domain.TicketPending,
		Priority:     domain.PriorityCritical,
		DueAt:        due,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetAssessment", func(t *testing.T) {
		a := testAssessment("assessment-001", "subject-001")

		if err := repo.SaveAssessment(ctx, tenantID, a); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}

		retrieved, err := repo.GetAssessment(ctx, tenantID, a.ID)
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}

		if retrieved.ID != a.ID {
			t.Errorf("expected ID %s, got %s", a.ID, retrieved.ID)
		}
		if retrieved.Score != a.Score {
			t.Errorf("expected Score %.2f, got %.2f", a.Score, retrieved.Score)
		}
		if retrieved.Level != domain.LevelHigh || retrieved.Action != domain.ActionBlock {
			t.Errorf("expected high/block, got %s/%s", retrieved.Level, retrieved.Action)
		}
		if len(retrieved.Signals) != 1 || retrieved.Signals[0].Scorer != "velocity-model" {
			t.Errorf("signals did not roundtrip: %+v", retrieved.Signals)
		}
		if len(retrieved.Failures) != 1 || !retrieved.Failures[0].Timeout {
			t.Errorf("failures did not roundtrip: %+v", retrieved.Failures)
		}
		if retrieved.Metadata.EngineVersion != "kestrel-1.0" {
			t.Errorf("metadata did not roundtrip: %+v", retrieved.Metadata)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetAssessment(ctx, "tenant-002", "assessment-001")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := repo.SaveAssessment(ctx, "", testAssessment("assessment-x", "s")); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := repo.GetAssessment(ctx, "", "assessment-001"); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := repo.GetTicket(ctx, "", "ticket-001"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("SaveAssessmentWithTicket", func(t *testing.T) {
		a := testAssessment("assessment-002", "subject-001")
		tk := testTicket("ticket-001", a.ID, time.Now().UTC().Add(4*time.Hour))

		if err := repo.SaveAssessmentWithTicket(ctx, tenantID, a, tk); err != nil {
			t.Fatalf("SaveAssessmentWithTicket failed: %v", err)
		}

		if _, err := repo.GetAssessment(ctx, tenantID, a.ID); err != nil {
			t.Errorf("assessment not persisted: %v", err)
		}

		retrieved, err := repo.GetTicket(ctx, tenantID, tk.ID)
		if err != nil {
			t.Fatalf("GetTicket failed: %v", err)
		}
		if retrieved.Status != domain.TicketPending || retrieved.Priority != domain.PriorityCritical {
			t.Errorf("ticket did not roundtrip: %+v", retrieved)
		}
		if retrieved.DecidedAt != nil {
			t.Errorf("expected nil decidedAt, got %v", retrieved.DecidedAt)
		}

		byAssessment, err := repo.GetTicketByAssessment(ctx, tenantID, a.ID)
		if err != nil {
			t.Fatalf("GetTicketByAssessment failed: %v", err)
		}
		if byAssessment.ID != tk.ID {
			t.Errorf("expected ticket %s, got %s", tk.ID, byAssessment.ID)
		}
	})

	t.Run("DuplicateTicketRollsBackAssessment", func(t *testing.T) {
		// Second ticket for assessment-002 violates the unique constraint;
		// the new assessment must not survive the failed transaction.
		a := testAssessment("assessment-003", "subject-001")
		tk := testTicket("ticket-dup", "assessment-002", time.Now().UTC().Add(time.Hour))

		if err := repo.SaveAssessmentWithTicket(ctx, tenantID, a, tk); err == nil {
			t.Fatal("expected unique constraint violation")
		}

		if _, err := repo.GetAssessment(ctx, tenantID, a.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected assessment rolled back, got: %v", err)
		}
	})

	t.Run("UpdateTicket", func(t *testing.T) {
		err := repo.UpdateTicket(ctx, tenantID, "ticket-001", domain.TicketPending, &domain.TicketUpdate{
			Status:    domain.TicketAssigned,
			Assignee:  "alice",
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("UpdateTicket failed: %v", err)
		}

		retrieved, err := repo.GetTicket(ctx, tenantID, "ticket-001")
		if err != nil {
			t.Fatalf("GetTicket failed: %v", err)
		}
		if retrieved.Status != domain.TicketAssigned || retrieved.Assignee != "alice" {
			t.Errorf("expected assigned/alice, got %s/%s", retrieved.Status, retrieved.Assignee)
		}
	})

	t.Run("UpdateTicketKeepsAssigneeWhenBlank", func(t *testing.T) {
		decidedAt := time.Now().UTC()
		err := repo.UpdateTicket(ctx, tenantID, "ticket-001", domain.TicketAssigned, &domain.TicketUpdate{
			Status:     domain.TicketRejected,
			Reviewer:   "carol",
			Outcome:    domain.OutcomeRejected,
			ReasonCode: domain.ReasonFraudRisk,
			Notes:      "confirmed",
			DecidedAt:  &decidedAt,
			UpdatedAt:  decidedAt,
		})
		if err != nil {
			t.Fatalf("UpdateTicket failed: %v", err)
		}

		retrieved, err := repo.GetTicket(ctx, tenantID, "ticket-001")
		if err != nil {
			t.Fatalf("GetTicket failed: %v", err)
		}
		if retrieved.Assignee != "alice" {
			t.Errorf("expected assignee preserved, got %q", retrieved.Assignee)
		}
		if retrieved.ReasonCode != domain.ReasonFraudRisk {
			t.Errorf("expected fraud_risk, got %s", retrieved.ReasonCode)
		}
		if retrieved.DecidedAt == nil || !retrieved.DecidedAt.Equal(decidedAt) {
			t.Errorf("decidedAt did not roundtrip: %v", retrieved.DecidedAt)
		}
	})

	t.Run("UpdateTicketConflict", func(t *testing.T) {
		// ticket-001 is rejected now; an update expecting assigned loses.
		err := repo.UpdateTicket(ctx, tenantID, "ticket-001", domain.TicketAssigned, &domain.TicketUpdate{
			Status:    domain.TicketApproved,
			UpdatedAt: time.Now().UTC(),
		})

		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got: %v", err)
		}
		if conflict.Actual != domain.TicketRejected {
			t.Errorf("expected actual status rejected, got %s", conflict.Actual)
		}
	})

	t.Run("UpdateMissingTicket", func(t *testing.T) {
		err := repo.UpdateTicket(ctx, tenantID, "nonexistent", domain.TicketPending, &domain.TicketUpdate{
			Status:    domain.TicketAssigned,
			UpdatedAt: time.Now().UTC(),
		})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetAssessment(ctx, tenantID, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetTicket(ctx, tenantID, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetTicketByAssessment(ctx, tenantID, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestListTickets(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"
	now := time.Now().UTC()

	seed := []struct {
		assessment string
		ticket     string
		due        time.Duration
	}{
		{"assessment-a", "ticket-a", -2 * time.Hour},
		{"assessment-b", "ticket-b", -1 * time.Hour},
		{"assessment-c", "ticket-c", 6 * time.Hour},
	}
	for _, s := range seed {
		a := testAssessment(s.assessment, "subject-001")
		tk := testTicket(s.ticket, s.assessment, now.Add(s.due))
		if err := repo.SaveAssessmentWithTicket(ctx, tenantID, a, tk); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	t.Run("ByStatus", func(t *testing.T) {
		tickets, err := repo.ListTickets(ctx, tenantID, domain.TicketPending, 10)
		if err != nil {
			t.Fatalf("ListTickets failed: %v", err)
		}
		if len(tickets) != 3 {
			t.Errorf("expected 3 pending tickets, got %d", len(tickets))
		}
	})

	t.Run("StatusFilterExcludes", func(t *testing.T) {
		tickets, err := repo.ListTickets(ctx, tenantID, domain.TicketApproved, 10)
		if err != nil {
			t.Fatalf("ListTickets failed: %v", err)
		}
		if len(tickets) != 0 {
			t.Errorf("expected no approved tickets, got %d", len(tickets))
		}
	})

	t.Run("Limit", func(t *testing.T) {
		tickets, err := repo.ListTickets(ctx, tenantID, "", 2)
		if err != nil {
			t.Fatalf("ListTickets failed: %v", err)
		}
		if len(tickets) != 2 {
			t.Errorf("expected limit 2 respected, got %d", len(tickets))
		}
	})

	t.Run("DueOldestFirst", func(t *testing.T) {
		due, err := repo.ListTicketsDue(ctx, now, 10)
		if err != nil {
			t.Fatalf("ListTicketsDue failed: %v", err)
		}
		if len(due) != 2 {
			t.Fatalf("expected 2 due tickets, got %d", len(due))
		}
		if due[0].ID != "ticket-a" || due[1].ID != "ticket-b" {
			t.Errorf("expected oldest deadline first, got %s then %s", due[0].ID, due[1].ID)
		}
	})

	t.Run("DueExcludesTerminal", func(t *testing.T) {
		err := repo.UpdateTicket(ctx, tenantID, "ticket-a", domain.TicketPending, &domain.TicketUpdate{
			Status:    domain.TicketExpired,
			UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("UpdateTicket failed: %v", err)
		}

		due, err := repo.ListTicketsDue(ctx, now, 10)
		if err != nil {
			t.Fatalf("ListTicketsDue failed: %v", err)
		}
		if len(due) != 1 || due[0].ID != "ticket-b" {
			t.Errorf("expected only ticket-b due, got %+v", due)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
