package domain

import "time"

// Severity classifies a host after comparison
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityMissing Severity = "missing"
	SeveritySkipped Severity = "skipped" // not compared because a fetch failed; never drift
)

// Rank orders severities for display (most severe first)
func (s Severity) Rank() int {
	switch s {
	case SeverityMissing:
		return 0
	case SeverityWarning:
		return 1
	case SeveritySkipped:
		return 2
	default:
		return 3
	}
}

// RunStatus is the process-level outcome of a run
type RunStatus string

const (
	StatusClean  RunStatus = "clean"
	StatusDrift  RunStatus = "drift"
	StatusFailed RunStatus = "failed"
)

// ExitCode maps a status to the process exit code: 0 clean, 1 failed, 2 drift
func (s RunStatus) ExitCode() int {
	switch s {
	case StatusClean:
		return 0
	case StatusDrift:
		return 2
	default:
		return 1
	}
}

// HostReport is the final per-host unit handed to renderers
type HostReport struct {
	Identity string             `json:"identity"`
	Key      string             `json:"key"`
	Match    MatchKind          `json:"match"`
	Severity Severity           `json:"severity"`
	Verdicts []AttributeVerdict `json:"verdicts"`
	Live     *HostFact          `json:"live,omitempty"`
	CMDB     *DeviceRecord      `json:"cmdb,omitempty"`
}

// Mismatches returns only the verdicts with status Mismatch
func (h HostReport) Mismatches() []AttributeVerdict {
	var out []AttributeVerdict
	for _, v := range h.Verdicts {
		if v.IsMismatch() {
			out = append(out, v)
		}
	}
	return out
}

// Summary holds the per-run counters
type Summary struct {
	LiveHosts     int `json:"live_hosts"`
	CMDBDevices   int `json:"cmdb_devices"`
	OK            int `json:"ok"`
	Warning       int `json:"warning"`
	MissingInCMDB int `json:"missing_in_cmdb"`
	MissingInLive int `json:"missing_in_live"`
	Unfetched     int `json:"unfetched,omitempty"`
}

// Report is the result of one run
type Report struct {
	ID          string       `json:"id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Mode        MatchMode    `json:"mode"`
	Partial     bool         `json:"partial,omitempty"`
	Status      RunStatus    `json:"status"`
	Summary     Summary      `json:"summary"`
	Hosts       []HostReport `json:"hosts"`
}

// RunSummary is a stored run without host details
type RunSummary struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Mode        MatchMode `json:"mode"`
	Status      RunStatus `json:"status"`
	Partial     bool      `json:"partial,omitempty"`
	Summary     Summary   `json:"summary"`
}

// HostRun is one host's outcome in a stored run
type HostRun struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Identity    string    `json:"identity"`
	Severity    Severity  `json:"severity"`
	Match       MatchKind `json:"match"`
	Mismatches  []string  `json:"mismatches,omitempty"`
}

// NewRunSummary strips host details from a report
func NewRunSummary(r *Report) RunSummary {
	return RunSummary{
		ID:          r.ID,
		GeneratedAt: r.GeneratedAt,
		Mode:        r.Mode,
		Status:      r.Status,
		Partial:     r.Partial,
		Summary:     r.Summary,
	}
}

// MismatchNames returns the attributes that drifted
func (h HostReport) MismatchNames() []string {
	var names []string
	for _, v := range h.Mismatches() {
		names = append(names, v.Attribute)
	}
	return names
}
