package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"hostdrift/internal/domain"
	"hostdrift/internal/probe"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"timestamp": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04:05") },
	"upper":     strings.ToUpper,
}).ParseFS(templateFS, "templates/*.html"))

// Labels for the two inventories
const (
	LiveLabel = "vCenter"
	CMDBLabel = "NetBox"
)

type factRow struct {
	Label string
	Live  string
	CMDB  string
}

type verdictRow struct {
	Attribute string
	Status    string
	Live      string
	CMDB      string
	Detail    string
}

type hostView struct {
	Anchor       string
	Identity     string
	Class        string
	Label        string
	MismatchKeys string
	Facts        []factRow
	Verdicts     []verdictRow
}

type driftPage struct {
	Report    *domain.Report
	LiveLabel string
	CMDBLabel string
	Hosts     []hostView
}

// WriteHTML renders the drift report page
func WriteHTML(w io.Writer, r *domain.Report) error {
	page := driftPage{Report: r, LiveLabel: LiveLabel, CMDBLabel: CMDBLabel}

	hosts := make([]domain.HostReport, len(r.Hosts))
	copy(hosts, r.Hosts)
	sort.SliceStable(hosts, func(i, j int) bool {
		if hosts[i].Severity.Rank() != hosts[j].Severity.Rank() {
			return hosts[i].Severity.Rank() < hosts[j].Severity.Rank()
		}
		return hosts[i].Identity < hosts[j].Identity
	})
	for _, h := range hosts {
		page.Hosts = append(page.Hosts, newHostView(h))
	}

	return templates.ExecuteTemplate(w, "drift.html", page)
}

func newHostView(h domain.HostReport) hostView {
	v := hostView{
		Anchor:   "host-" + anchor(h.Key),
		Identity: h.Identity,
		Class:    string(h.Severity),
		Label:    StatusLabel(h),
	}

	var keys []string
	for _, verdict := range h.Mismatches() {
		keys = append(keys, verdict.Attribute)
	}
	v.MismatchKeys = strings.Join(keys, ", ")

	v.Facts = quickFacts(h.Live, h.CMDB)
	for _, verdict := range h.Verdicts {
		v.Verdicts = append(v.Verdicts, verdictRow{
			Attribute: verdict.Attribute,
			Status:    string(verdict.Status),
			Live:      Human(verdict.LiveValue),
			CMDB:      Human(verdict.CMDBValue),
			Detail:    verdict.Detail,
		})
	}
	return v
}

// StatusLabel is the overview label of a host: OK, MISMATCH, NOT_FETCHED or
// the missing side
func StatusLabel(h domain.HostReport) string {
	switch h.Match {
	case domain.MatchKindUnfetched:
		return "NOT_FETCHED"
	case domain.MatchKindMissingInCMDB:
		return "MISSING_IN_" + strings.ToUpper(CMDBLabel)
	case domain.MatchKindMissingInLive:
		return "MISSING_IN_" + strings.ToUpper(LiveLabel)
	}
	if h.Severity == domain.SeverityWarning {
		return "MISMATCH"
	}
	return "OK"
}

func quickFacts(live *domain.HostFact, cmdb *domain.DeviceRecord) []factRow {
	if live == nil {
		live = &domain.HostFact{}
	}
	if cmdb == nil {
		cmdb = &domain.DeviceRecord{}
	}
	var vmkIPs []string
	for _, vmk := range live.VMKernels {
		if vmk.IP != "" {
			vmkIPs = append(vmkIPs, vmk.Name+"="+vmk.IP)
		}
	}
	var ifaceIPs []string
	for _, iface := range cmdb.InterfacesWithPrefix(domain.VMKernelPrefix) {
		if iface.IP != "" {
			ifaceIPs = append(ifaceIPs, iface.Name+"="+iface.IP)
		}
	}

	return []factRow{
		{"Mgmt IP", live.ManagementIP, cmdb.PrimaryIP},
		{"CPU Cores", Human(live.CPUCores), Human(cmdb.CPUCores)},
		{"CPU Threads", Human(live.CPUThreads), ""},
		{"RAM (GB)", Human(live.RAMGB), Human(cmdb.RAMGB)},
		{"Datastores", Human(live.Datastores), Human(cmdb.Datastores)},
		{"PNICs", Human(live.PhysicalNICs), Human(cmdb.InterfaceNames(domain.PhysicalNICPrefix))},
		{"VMkernel IPs", Human(vmkIPs), Human(ifaceIPs)},
		{"Portgroups", portgroups(live.Portgroups), ""},
	}
}

func portgroups(pgs []domain.Portgroup) string {
	parts := make([]string, 0, len(pgs))
	for _, pg := range pgs {
		s := pg.Name
		if vlan := pg.VLAN.String(); vlan != "" {
			s += " (vlan " + vlan + ")"
		}
		if pg.Distributed {
			s += " [dvs]"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

// Human renders a verdict or fact value for display; absent values are empty
func Human(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case *int:
		if val == nil {
			return ""
		}
		return strconv.Itoa(*val)
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, Human(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		// Values decoded from stored JSON reports
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			s := Human(val[k])
			if s == "" {
				s = "-"
			}
			parts = append(parts, k+": "+s)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

func anchor(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

type probeRow struct {
	Client  string
	Env     string
	Server  string
	Service string
	Port    string
	Status  string
	Class   string
	Detail  string
}

type probePage struct {
	Report *probe.Report
	Rows   []probeRow
	HasUDP bool
}

// WriteProbeHTML renders the connectivity report page
func WriteProbeHTML(w io.Writer, r *probe.Report) error {
	page := probePage{Report: r}
	for _, res := range r.Results {
		class, label := "fail", "FAIL"
		if res.Passed {
			class, label = "pass", "PASS"
		}
		if res.Status == probe.StatusSent {
			label = "SENT"
			page.HasUDP = true
		}
		page.Rows = append(page.Rows, probeRow{
			Client:  res.Client.Host,
			Env:     res.Env,
			Server:  res.Server,
			Service: res.Service,
			Port:    fmt.Sprintf("%d/%s", res.Port, strings.ToUpper(res.Proto)),
			Status:  label,
			Class:   class,
			Detail:  res.Detail,
		})
	}
	return templates.ExecuteTemplate(w, "fwcheck.html", page)
}

type runsPage struct {
	LiveLabel string
	CMDBLabel string
	Runs      []domain.RunSummary
}

// WriteRunsHTML renders the stored run index, most recent first as given
func WriteRunsHTML(w io.Writer, runs []domain.RunSummary) error {
	return templates.ExecuteTemplate(w, "runs.html", runsPage{LiveLabel: LiveLabel, CMDBLabel: CMDBLabel, Runs: runs})
}
