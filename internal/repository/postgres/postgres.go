package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hostdrift/internal/domain"
)

// defaultMaxConns applies unless the dsn sets pool_max_conns
const defaultMaxConns = 4

// Repository stores drift runs in Postgres
type Repository struct {
	pool *pgxpool.Pool
}

// New connects to dsn, checks the connection and applies pending migrations
func New(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	if !strings.Contains(dsn, "pool_max_conns") {
		cfg.MaxConns = defaultMaxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	log.Printf("postgres: connected (max_conns=%d)", cfg.MaxConns)

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Repository{pool: pool}, nil
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
}

// pendingMigrations lists embedded files named NNN_name.sql newer than current
func pendingMigrations(current int) ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	var list []migration
	for _, e := range entries {
		n := e.Name()
		if !strings.HasSuffix(n, ".sql") {
			continue
		}
		base := strings.SplitN(n, "_", 2)[0]
		v, err := strconv.Atoi(base)
		if err != nil || v <= 0 {
			continue
		}
		if v > current {
			list = append(list, migration{version: v, name: n})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].version < list[j].version })
	return list, nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version int PRIMARY KEY)`); err != nil {
		return err
	}
	var current int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version),0) FROM schema_migrations`).Scan(&current); err != nil {
		return err
	}

	list, err := pendingMigrations(current)
	if err != nil {
		return err
	}
	for _, m := range list {
		sqlBytes, err := migrationsFS.ReadFile("migrations/" + m.name)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, m.version); err != nil {
			return err
		}
		log.Printf("postgres: applied migration %s", m.name)
	}

	return tx.Commit(ctx)
}

// SaveRun stores a report and its per-host rows in one transaction
func (r *Repository) SaveRun(ctx context.Context, report *domain.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s := report.Summary
	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, generated_at, mode, status, partial, live_hosts, cmdb_devices,
			ok, warning, missing_in_cmdb, missing_in_live, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, report.ID, report.GeneratedAt, string(report.Mode), string(report.Status), report.Partial,
		s.LiveHosts, s.CMDBDevices, s.OK, s.Warning, s.MissingInCMDB, s.MissingInLive, data)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i, h := range report.Hosts {
		mismatches := h.MismatchNames()
		if mismatches == nil {
			mismatches = []string{}
		}
		batch.Queue(`
			INSERT INTO host_results (run_id, position, identity, match_key, severity, match_kind, mismatches)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, report.ID, i, h.Identity, h.Key, string(h.Severity), string(h.Match), mismatches)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert host results: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetRun loads a full report
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.Report, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT report FROM runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// limitArg turns limit <= 0 into NULL, which Postgres reads as no limit
func limitArg(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, generated_at, mode, status, partial, live_hosts, cmdb_devices,
			ok, warning, missing_in_cmdb, missing_in_live
		FROM runs
		ORDER BY generated_at DESC, id
		LIMIT $1
	`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var (
			run          domain.RunSummary
			mode, status string
		)
		s := &run.Summary
		if err := rows.Scan(&run.ID, &run.GeneratedAt, &mode, &status, &run.Partial,
			&s.LiveHosts, &s.CMDBDevices, &s.OK, &s.Warning, &s.MissingInCMDB, &s.MissingInLive); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.GeneratedAt = run.GeneratedAt.UTC()
		run.Mode = domain.MatchMode(mode)
		run.Status = domain.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// HostHistory returns one host's outcomes, most recent first
func (r *Repository) HostHistory(ctx context.Context, identity string, limit int) ([]domain.HostRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.run_id, r.generated_at, h.identity, h.severity, h.match_kind, h.mismatches
		FROM host_results h
		JOIN runs r ON r.id = h.run_id
		WHERE h.identity = $1
		ORDER BY r.generated_at DESC, h.position
		LIMIT $2
	`, identity, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query host history: %w", err)
	}
	defer rows.Close()

	var out []domain.HostRun
	for rows.Next() {
		var (
			run             domain.HostRun
			severity, match string
		)
		if err := rows.Scan(&run.RunID, &run.GeneratedAt, &run.Identity, &severity, &match, &run.Mismatches); err != nil {
			return nil, fmt.Errorf("failed to scan host result: %w", err)
		}
		run.GeneratedAt = run.GeneratedAt.UTC()
		run.Severity = domain.Severity(severity)
		run.Match = domain.MatchKind(match)
		if len(run.Mismatches) == 0 {
			run.Mismatches = nil
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating host results: %w", err)
	}
	return out, nil
}

// PruneBefore deletes runs generated before the given time. Host rows go with them.
func (r *Repository) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM runs WHERE generated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
