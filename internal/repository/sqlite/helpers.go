package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hostdrift/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeFormat is fixed width so stored times sort lexically
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// timeLayouts are the forms a DATETIME column may come back in
var timeLayouts = []string{
	timeFormat,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// sqlTime scans a DATETIME column whether the driver returns time.Time or text
type sqlTime struct {
	Time time.Time
}

// Scan implements sql.Scanner
func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

// ============================================================================
// Row Types
// ============================================================================

type runRow struct {
	id, mode, status string
	generatedAt      sqlTime
	partial          int
	summary          domain.Summary
}

func (r *runRow) scanArgs() []interface{} {
	return []interface{}{
		&r.id, &r.generatedAt, &r.mode, &r.status, &r.partial,
		&r.summary.LiveHosts, &r.summary.CMDBDevices, &r.summary.OK, &r.summary.Warning,
		&r.summary.MissingInCMDB, &r.summary.MissingInLive,
	}
}

func (r *runRow) toDomain() domain.RunSummary {
	return domain.RunSummary{
		ID:          r.id,
		GeneratedAt: r.generatedAt.Time,
		Mode:        domain.MatchMode(r.mode),
		Status:      domain.RunStatus(r.status),
		Partial:     r.partial != 0,
		Summary:     r.summary,
	}
}

type hostRow struct {
	runID, identity, severity, match string
	generatedAt                      sqlTime
	mismatches                       sql.NullString
}

func (r *hostRow) scanArgs() []interface{} {
	return []interface{}{&r.runID, &r.generatedAt, &r.identity, &r.severity, &r.match, &r.mismatches}
}

func (r *hostRow) toDomain() domain.HostRun {
	run := domain.HostRun{
		RunID:       r.runID,
		GeneratedAt: r.generatedAt.Time,
		Identity:    r.identity,
		Severity:    domain.Severity(r.severity),
		Match:       domain.MatchKind(r.match),
	}
	if s := nullToString(r.mismatches); s != "" {
		run.Mismatches = strings.Split(s, ",")
	}
	return run
}
