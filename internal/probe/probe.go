package probe

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LocalClient names the machine running fwcheck when no clients are configured
const LocalClient = "localhost"

// Status is the outcome of a single check
type Status string

const (
	StatusOpen     Status = "open"     // TCP connection established
	StatusSent     Status = "sent"     // UDP datagram sent, no reply expected
	StatusClosed   Status = "closed"   // Refused or timed out
	StatusFiltered Status = "filtered" // Dropped by a firewall (nmap only)
	StatusError    Status = "error"    // Probe could not run
)

// Passed reports whether the status counts as reachable
func (s Status) Passed() bool {
	return s == StatusOpen || s == StatusSent
}

// Check is one (client, server, port) reachability test
type Check struct {
	Client  Client        `json:"client"`
	Env     string        `json:"env"`
	Server  string        `json:"server"`
	Service string        `json:"service"`
	Port    int           `json:"port"`
	Proto   string        `json:"proto"`
	Timeout time.Duration `json:"-"`
}

// Result is the outcome of a check
type Result struct {
	Check
	Status   Status        `json:"status"`
	Passed   bool          `json:"ok"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

func newResult(c Check, status Status, detail string, started time.Time) Result {
	return Result{
		Check:    c,
		Status:   status,
		Passed:   status.Passed(),
		Detail:   detail,
		Duration: time.Since(started),
	}
}

// Prober runs a single check
type Prober interface {
	Name() string
	Probe(ctx context.Context, c Check) Result
}

// Summary counts results
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Report is the outcome of a run
type Report struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Prober      string    `json:"prober"`
	Runner      *Runner   `json:"runner,omitempty"`
	Summary     Summary   `json:"summary"`
	Results     []Result  `json:"results"`
}

// Failed reports whether any check failed
func (r *Report) Failed() bool {
	return r.Summary.Failed > 0
}

// ExitCode is 0 when every check passed and 2 otherwise
func (r *Report) ExitCode() int {
	if r.Failed() {
		return 2
	}
	return 0
}

// Run executes checks with at most workers probes in flight and returns a
// report with results sorted by client, environment, server, service, protocol
// and port.
func Run(ctx context.Context, p Prober, checks []Check, workers int) *Report {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log.Printf("%s: running %d checks with %d workers", p.Name(), len(checks), workers)

	results := make([]Result, len(checks))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range checks {
		c := checks[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = newResult(c, StatusError, err.Error(), time.Now())
				return nil
			}
			results[i] = p.Probe(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	SortResults(results)

	report := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Prober:      p.Name(),
		Results:     results,
	}
	for _, r := range results {
		report.Summary.Total++
		if r.Passed {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
		}
	}
	log.Printf("%s: %d passed, %d failed", p.Name(), report.Summary.Passed, report.Summary.Failed)
	return report
}

// SortResults orders results for display
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch {
		case a.Client.Host != b.Client.Host:
			return a.Client.Host < b.Client.Host
		case a.Env != b.Env:
			return a.Env < b.Env
		case a.Server != b.Server:
			return a.Server < b.Server
		case a.Service != b.Service:
			return a.Service < b.Service
		case a.Proto != b.Proto:
			return a.Proto < b.Proto
		default:
			return a.Port < b.Port
		}
	})
}
