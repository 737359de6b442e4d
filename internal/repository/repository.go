package repository

import (
	"context"
	"strings"
	"time"

	"hostdrift/internal/domain"
	"hostdrift/internal/repository/postgres"
	"hostdrift/internal/repository/sqlite"
)

// History stores drift runs
type History interface {
	SaveRun(ctx context.Context, r *domain.Report) error
	GetRun(ctx context.Context, id string) (*domain.Report, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
	HostHistory(ctx context.Context, identity string, limit int) ([]domain.HostRun, error)
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

var (
	_ History = (*sqlite.Repository)(nil)
	_ History = (*postgres.Repository)(nil)
)

// Open opens the history store named by dsn
func Open(ctx context.Context, dsn string) (History, error) {
	if IsPostgres(dsn) {
		return postgres.New(ctx, dsn)
	}
	return sqlite.New(dsn)
}

// IsPostgres reports whether dsn selects the postgres backend
func IsPostgres(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}
