package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"hostdrift/internal/domain"
)

// newTestRepo connects to HOSTDRIFT_TEST_POSTGRES_DSN or skips the test
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("HOSTDRIFT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HOSTDRIFT_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func testReport(at time.Time) *domain.Report {
	return &domain.Report{
		ID:          uuid.NewString(),
		GeneratedAt: at,
		Mode:        domain.MatchModeShort,
		Status:      domain.StatusDrift,
		Summary:     domain.Summary{LiveHosts: 1, CMDBDevices: 1, Warning: 1},
		Hosts: []domain.HostReport{
			{
				Identity: "pgtest-" + uuid.NewString(),
				Key:      "pgtest",
				Match:    domain.MatchKindMatched,
				Severity: domain.SeverityWarning,
				Verdicts: []domain.AttributeVerdict{
					{Attribute: domain.AttrRAMGB, Status: domain.VerdictMismatch, LiveValue: 512, CMDBValue: 256},
				},
			},
		},
	}
}

func TestPendingMigrations(t *testing.T) {
	list, err := pendingMigrations(0)
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	if len(list) == 0 || list[0].version != 1 || list[0].name != "001_init.sql" {
		t.Fatalf("pendingMigrations(0) = %+v", list)
	}
	for i := 1; i < len(list); i++ {
		if list[i].version <= list[i-1].version {
			t.Errorf("migrations out of order: %+v", list)
		}
	}

	list, err = pendingMigrations(1 << 20)
	if err != nil || len(list) != 0 {
		t.Errorf("pendingMigrations(max) = %+v, %v", list, err)
	}
}

func TestLimitArg(t *testing.T) {
	if limitArg(0) != nil || limitArg(-3) != nil {
		t.Error("non-positive limits should be NULL")
	}
	if got := limitArg(5); got == nil || *got != 5 {
		t.Errorf("limitArg(5) = %v", got)
	}
}

func TestRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Microsecond)
	report := testReport(at)
	if err := repo.SaveRun(ctx, report); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	t.Cleanup(func() {
		repo.pool.Exec(context.Background(), `DELETE FROM runs WHERE id = $1`, report.ID)
	})

	got, err := repo.GetRun(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.ID != report.ID || got.Summary != report.Summary || len(got.Hosts) != 1 {
		t.Errorf("GetRun() = %+v", got)
	}

	history, err := repo.HostHistory(ctx, report.Hosts[0].Identity, 10)
	if err != nil {
		t.Fatalf("HostHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].RunID != report.ID {
		t.Fatalf("HostHistory() = %+v", history)
	}
	if len(history[0].Mismatches) != 1 || history[0].Mismatches[0] != domain.AttrRAMGB {
		t.Errorf("mismatches = %v", history[0].Mismatches)
	}
	if !history[0].GeneratedAt.Equal(at) {
		t.Errorf("GeneratedAt = %v, want %v", history[0].GeneratedAt, at)
	}

	runs, err := repo.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("ListRuns(1) returned %d runs", len(runs))
	}

	if err := repo.SaveRun(ctx, report); err == nil {
		t.Error("saving the same run twice should fail")
	}
}

func TestGetRunNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetRun(context.Background(), uuid.NewString())
	if !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestPruneBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := testReport(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := repo.SaveRun(ctx, old); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	n, err := repo.PruneBefore(ctx, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PruneBefore() error = %v", err)
	}
	if n < 1 {
		t.Errorf("PruneBefore() removed %d runs", n)
	}
	if _, err := repo.GetRun(ctx, old.ID); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("pruned run still present: %v", err)
	}
	history, err := repo.HostHistory(ctx, old.Hosts[0].Identity, 0)
	if err != nil || len(history) != 0 {
		t.Errorf("host rows not cascaded: %+v, %v", history, err)
	}
}
