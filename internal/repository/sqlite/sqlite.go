package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostdrift/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository stores drift runs in SQLite
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates it
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		generated_at DATETIME NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		partial INTEGER NOT NULL DEFAULT 0,
		live_hosts INTEGER NOT NULL DEFAULT 0,
		cmdb_devices INTEGER NOT NULL DEFAULT 0,
		ok INTEGER NOT NULL DEFAULT 0,
		warning INTEGER NOT NULL DEFAULT 0,
		missing_in_cmdb INTEGER NOT NULL DEFAULT 0,
		missing_in_live INTEGER NOT NULL DEFAULT 0,
		report JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS host_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		identity TEXT NOT NULL,
		match_key TEXT NOT NULL,
		severity TEXT NOT NULL,
		match_kind TEXT NOT NULL,
		mismatches TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_generated_at ON runs(generated_at);
	CREATE INDEX IF NOT EXISTS idx_host_results_identity ON host_results(identity);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveRun stores a report and its per-host rows in one transaction
func (r *Repository) SaveRun(ctx context.Context, report *domain.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := report.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, generated_at, mode, status, partial, live_hosts, cmdb_devices,
			ok, warning, missing_in_cmdb, missing_in_live, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, formatTime(report.GeneratedAt), string(report.Mode), string(report.Status), boolToInt(report.Partial),
		s.LiveHosts, s.CMDBDevices, s.OK, s.Warning, s.MissingInCMDB, s.MissingInLive, string(data))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO host_results (run_id, position, identity, match_key, severity, match_kind, mismatches)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare host insert: %w", err)
	}
	defer stmt.Close()

	for i, h := range report.Hosts {
		_, err := stmt.ExecContext(ctx, report.ID, i, h.Identity, h.Key, string(h.Severity), string(h.Match),
			stringToNull(strings.Join(h.MismatchNames(), ",")))
		if err != nil {
			return fmt.Errorf("failed to insert host %s: %w", h.Identity, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a full report
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.Report, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, generated_at, mode, status, partial, live_hosts, cmdb_devices,
			ok, warning, missing_in_cmdb, missing_in_live
		FROM runs
		ORDER BY generated_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// HostHistory returns one host's outcomes, most recent first
func (r *Repository) HostHistory(ctx context.Context, identity string, limit int) ([]domain.HostRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.run_id, r.generated_at, h.identity, h.severity, h.match_kind, h.mismatches
		FROM host_results h
		JOIN runs r ON r.id = h.run_id
		WHERE h.identity = ?
		ORDER BY r.generated_at DESC, h.position
		LIMIT ?
	`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query host history: %w", err)
	}
	defer rows.Close()

	var out []domain.HostRun
	for rows.Next() {
		var row hostRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan host result: %w", err)
		}
		out = append(out, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating host results: %w", err)
	}
	return out, nil
}

// PruneBefore deletes runs generated before the given time
func (r *Repository) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := formatTime(before)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM host_results WHERE run_id IN (SELECT id FROM runs WHERE generated_at < ?)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete host results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE generated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
