package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"hostdrift/internal/domain"
)

// Options configures an Engine
type Options struct {
	Mode    domain.MatchMode
	Aliases domain.AliasTable

	// Now and NewID are overridable for tests
	Now   func() time.Time
	NewID func() string
}

// Engine runs resolve, diff and classify over two snapshots
type Engine struct {
	opts Options
}

// NewEngine creates an engine. An empty mode means short.
func NewEngine(opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = domain.MatchModeShort
	}
	if opts.Aliases == nil {
		opts.Aliases = domain.AliasTable{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Engine{opts: opts}
}

// Mode returns the name match mode in use
func (e *Engine) Mode() domain.MatchMode {
	return e.opts.Mode
}

// Run reconciles one pair of complete snapshots.
// A ConfigurationError aborts the run without a report.
func (e *Engine) Run(hosts []domain.HostFact, devices []domain.DeviceRecord) (*domain.Report, error) {
	return e.RunPartial(hosts, devices, domain.FetchFailures{})
}

// RunPartial reconciles snapshots from which a partial fetch dropped the
// named objects. Their counterparts are reported as unfetched, never as
// missing, and the report is marked partial.
func (e *Engine) RunPartial(hosts []domain.HostFact, devices []domain.DeviceRecord, failed domain.FetchFailures) (*domain.Report, error) {
	if _, err := domain.ParseMatchMode(string(e.opts.Mode)); err != nil {
		return nil, domain.NewConfigurationError(domain.ErrInvalidSetting, "name_match_mode", nil, "%v", err)
	}

	results, err := Resolve(hosts, devices, e.opts.Aliases, e.opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("resolve identities: %w", err)
	}
	results = MarkUnfetched(results, failed, e.opts.Aliases, e.opts.Mode)

	reports := make([]domain.HostReport, 0, len(results))
	for _, result := range results {
		var verdicts []domain.AttributeVerdict
		if result.Kind == domain.MatchKindMatched {
			verdicts = Diff(*result.Host, *result.Device)
		}
		reports = append(reports, Classify(result, verdicts))
	}

	SortReports(reports)

	return &domain.Report{
		ID:          e.opts.NewID(),
		GeneratedAt: e.opts.Now().UTC(),
		Mode:        e.opts.Mode,
		Partial:     !failed.Empty(),
		Status:      Aggregate(reports),
		Summary:     Summarize(reports, len(hosts), len(devices)),
		Hosts:       reports,
	}, nil
}

// SortReports orders reports most severe first, then by key and identity
func SortReports(reports []domain.HostReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.Identity < b.Identity
	})
}
