package adapter

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hostdrift/internal/codec"
	"hostdrift/internal/domain"
)

// NetBoxSource reads device records over the NetBox REST API (read-only GETs)
type NetBoxSource struct {
	baseURL    string
	token      string
	roleSlug   string
	siteSlug   string
	cfCPU      string
	cfRAM      string
	cfDS       string
	workers    int
	pageSize   int
	httpClient *http.Client
}

// NetBoxOption is a functional option for configuring NetBoxSource
type NetBoxOption func(*NetBoxSource)

// WithRoleSlug filters devices by role; empty disables the filter
func WithRoleSlug(slug string) NetBoxOption {
	return func(n *NetBoxSource) {
		n.roleSlug = slug
	}
}

// WithSiteSlug filters devices by site; empty disables the filter
func WithSiteSlug(slug string) NetBoxOption {
	return func(n *NetBoxSource) {
		n.siteSlug = slug
	}
}

// WithCustomFields names the custom fields holding CPU cores, RAM (GB) and datastores
func WithCustomFields(cpuCores, ramGB, datastores string) NetBoxOption {
	return func(n *NetBoxSource) {
		n.cfCPU = cpuCores
		n.cfRAM = ramGB
		n.cfDS = datastores
	}
}

// WithWorkers bounds concurrent per-device requests
func WithWorkers(workers int) NetBoxOption {
	return func(n *NetBoxSource) {
		if workers > 0 {
			n.workers = workers
		}
	}
}

// WithPageSize sets the list page size
func WithPageSize(size int) NetBoxOption {
	return func(n *NetBoxSource) {
		if size > 0 {
			n.pageSize = size
		}
	}
}

// WithTLSVerify toggles certificate verification
func WithTLSVerify(verify bool) NetBoxOption {
	return func(n *NetBoxSource) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verify}
		n.httpClient.Transport = transport
	}
}

// WithHTTPTimeout sets the per-request timeout
func WithHTTPTimeout(d time.Duration) NetBoxOption {
	return func(n *NetBoxSource) {
		n.httpClient.Timeout = d
	}
}

// NewNetBoxSource creates a NetBox source
func NewNetBoxSource(baseURL, token string, opts ...NetBoxOption) *NetBoxSource {
	n := &NetBoxSource{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      token,
		roleSlug:   "esxi-host",
		cfCPU:      "cpu_cores",
		cfRAM:      "ram_gb",
		cfDS:       "datastores",
		workers:    8,
		pageSize:   100,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the source identifier
func (n *NetBoxSource) Name() string {
	return "netbox"
}

// API payloads, reduced to the fields we read

type nbPage struct {
	Count   int             `json:"count"`
	Next    *string         `json:"next"`
	Results json.RawMessage `json:"results"`
}

type nbRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type nbIP struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
}

type nbDevice struct {
	ID           int            `json:"id"`
	Name         *string        `json:"name"`
	Site         *nbRef         `json:"site"`
	Role         *nbRef         `json:"role"`
	DeviceRole   *nbRef         `json:"device_role"` // NetBox < 3.6
	PrimaryIP4   *nbIP          `json:"primary_ip4"`
	PrimaryIP    *nbIP          `json:"primary_ip"`
	CustomFields map[string]any `json:"custom_fields"`
}

type nbVLAN struct {
	ID  int `json:"id"`
	VID int `json:"vid"`
}

type nbInterface struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	UntaggedVLAN *nbVLAN `json:"untagged_vlan"`
}

// FetchDevices lists matching devices, then loads interfaces and VMkernel
// addresses for each device with a bounded worker pool
func (n *NetBoxSource) FetchDevices(ctx context.Context) ([]domain.DeviceRecord, error) {
	query := url.Values{}
	if n.roleSlug != "" {
		query.Set("role", n.roleSlug)
	}
	if n.siteSlug != "" {
		query.Set("site", n.siteSlug)
	}

	var raw []nbDevice
	if err := n.list(ctx, "/api/dcim/devices/", query, &raw); err != nil {
		return nil, &domain.FetchError{Source: n.Name(), Object: "devices", Err: err}
	}
	log.Printf("netbox: %d devices (role=%q site=%q)", len(raw), n.roleSlug, n.siteSlug)

	records := make([]*domain.DeviceRecord, len(raw))
	var (
		mu       sync.Mutex
		failures []*domain.FetchError
	)

	var g errgroup.Group
	g.SetLimit(n.workers)
	for i := range raw {
		dev := raw[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := n.buildRecord(ctx, dev)
			if err != nil {
				mu.Lock()
				failures = append(failures, &domain.FetchError{
					Source: n.Name(),
					Object: "device " + deviceLabel(dev),
					Err:    err,
				})
				mu.Unlock()
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &domain.FetchError{Source: n.Name(), Err: err}
	}

	devices := make([]domain.DeviceRecord, 0, len(records))
	var failed []string
	for i, rec := range records {
		if rec == nil {
			failed = append(failed, deviceLabel(raw[i]))
			continue
		}
		devices = append(devices, *rec)
	}

	if len(failures) > 0 {
		log.Printf("netbox: details failed for %s", joinNames(failed, 5))
		return devices, &PartialError{Source: n.Name(), Failures: failures, Names: failed}
	}
	return devices, nil
}

func deviceLabel(d nbDevice) string {
	if d.Name != nil && *d.Name != "" {
		return *d.Name
	}
	return "#" + strconv.Itoa(d.ID)
}

// buildRecord converts one device and loads its interfaces
func (n *NetBoxSource) buildRecord(ctx context.Context, d nbDevice) (*domain.DeviceRecord, error) {
	rec := &domain.DeviceRecord{ID: d.ID}
	if d.Name != nil {
		rec.Name = *d.Name
	}
	if d.Site != nil {
		rec.Site = d.Site.Slug
	}
	switch {
	case d.Role != nil:
		rec.Role = d.Role.Slug
	case d.DeviceRole != nil:
		rec.Role = d.DeviceRole.Slug
	}

	switch {
	case d.PrimaryIP4 != nil && d.PrimaryIP4.Address != "":
		rec.PrimaryIP = stripPrefix(d.PrimaryIP4.Address)
	case d.PrimaryIP != nil && d.PrimaryIP.Address != "":
		rec.PrimaryIP = stripPrefix(d.PrimaryIP.Address)
	}

	rec.CPUCores = optionalInt(d.CustomFields[n.cfCPU])
	rec.RAMGB = optionalInt(d.CustomFields[n.cfRAM])
	rec.Datastores = codec.ParseList(d.CustomFields[n.cfDS])

	var ifaces []nbInterface
	q := url.Values{"device_id": {strconv.Itoa(d.ID)}}
	if err := n.list(ctx, "/api/dcim/interfaces/", q, &ifaces); err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		out := domain.Interface{Name: strings.TrimSpace(iface.Name)}
		if iface.UntaggedVLAN != nil {
			vid := iface.UntaggedVLAN.VID
			out.UntaggedVLAN = &vid
		}
		if strings.HasPrefix(strings.ToLower(out.Name), domain.VMKernelPrefix) {
			ip, err := n.interfaceIP(ctx, d.ID, iface.ID)
			if err != nil {
				return nil, fmt.Errorf("addresses of %s: %w", out.Name, err)
			}
			out.IP = ip
		}
		rec.Interfaces = append(rec.Interfaces, out)
	}

	return rec, nil
}

// interfaceIP returns the first address assigned to an interface, prefix stripped
func (n *NetBoxSource) interfaceIP(ctx context.Context, deviceID, ifaceID int) (string, error) {
	var ips []nbIP
	q := url.Values{
		"device_id":    {strconv.Itoa(deviceID)},
		"interface_id": {strconv.Itoa(ifaceID)},
	}
	if err := n.list(ctx, "/api/ipam/ip-addresses/", q, &ips); err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", nil
	}
	return stripPrefix(ips[0].Address), nil
}

// list follows pagination and appends every page's results into out.
// out must be a pointer to a slice.
func (n *NetBoxSource) list(ctx context.Context, path string, query url.Values, out any) error {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("limit", strconv.Itoa(n.pageSize))
	next := n.baseURL + path + "?" + q.Encode()

	var all []json.RawMessage
	for next != "" {
		var page nbPage
		if err := n.get(ctx, next, &page); err != nil {
			return err
		}

		var items []json.RawMessage
		if len(page.Results) > 0 {
			if err := json.Unmarshal(page.Results, &items); err != nil {
				return fmt.Errorf("decode results: %w", err)
			}
		}
		all = append(all, items...)

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	merged, err := json.Marshal(all)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(merged, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (n *NetBoxSource) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Token "+n.token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", req.URL.Path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func stripPrefix(addr string) string {
	addr = strings.TrimSpace(addr)
	if idx := strings.IndexByte(addr, '/'); idx >= 0 {
		return addr[:idx]
	}
	return addr
}

// optionalInt reads a numeric custom field; unset or non-numeric is nil
func optionalInt(v any) *int {
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) {
			return nil
		}
		return domain.IntPtr(int(val))
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return domain.IntPtr(i)
	default:
		return nil
	}
}
