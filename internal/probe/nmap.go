package probe

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
)

// NmapProber checks reachability from the runner with nmap.
// UDP scans need root privileges.
type NmapProber struct {
	skipHostDiscovery bool
	binaryPath        string
	slack             time.Duration
}

// NmapOption is a functional option for configuring NmapProber
type NmapOption func(*NmapProber)

// WithSkipHostDiscovery sets whether to skip ping and treat all hosts as online (-Pn)
// Useful for networks that block ICMP
func WithSkipHostDiscovery(skip bool) NmapOption {
	return func(n *NmapProber) {
		n.skipHostDiscovery = skip
	}
}

// WithBinaryPath sets the nmap binary to run
func WithBinaryPath(path string) NmapOption {
	return func(n *NmapProber) {
		n.binaryPath = path
	}
}

// NewNmapProber creates an NmapProber
func NewNmapProber(opts ...NmapOption) *NmapProber {
	n := &NmapProber{
		skipHostDiscovery: true,
		slack:             10 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the prober identifier
func (n *NmapProber) Name() string {
	return "nmap"
}

// Available checks if the nmap binary can run
func (n *NmapProber) Available(ctx context.Context) bool {
	opts := []nmap.Option{nmap.WithTargets("localhost"), nmap.WithListScan()}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}

// Probe scans one port on one server
func (n *NmapProber) Probe(ctx context.Context, c Check) Result {
	started := time.Now()
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+n.slack)
	defer cancel()

	scanner, err := nmap.NewScanner(ctx, n.scanOptions(c)...)
	if err != nil {
		return newResult(c, StatusError, fmt.Sprintf("failed to create scanner: %v", err), started)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return newResult(c, StatusError, fmt.Sprintf("scan failed: %v", err), started)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Printf("nmap: warnings for %s %d/%s: %v", c.Server, c.Port, c.Proto, *warnings)
	}

	status, detail := statusFromRun(result, c)
	return newResult(c, status, detail, started)
}

func (n *NmapProber) scanOptions(c Check) []nmap.Option {
	opts := []nmap.Option{
		nmap.WithTargets(c.Server),
		nmap.WithPorts(strconv.Itoa(c.Port)),
	}
	if c.Proto == ProtoUDP {
		opts = append(opts, nmap.WithUDPScan())
	} else {
		opts = append(opts, nmap.WithConnectScan())
	}
	if n.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}
	return opts
}

// statusFromRun maps the scanned port state to a Status.
// A UDP port nmap reports as open is still only "sent".
func statusFromRun(result *nmap.Run, c Check) (Status, string) {
	if result == nil {
		return StatusError, "nil scan result"
	}

	for _, host := range result.Hosts {
		for _, port := range host.Ports {
			if int(port.ID) != c.Port || port.Protocol != c.Proto {
				continue
			}
			state := port.State.State
			switch state {
			case "open":
				if c.Proto == ProtoUDP {
					return StatusSent, state
				}
				return StatusOpen, ""
			case "open|filtered":
				if c.Proto == ProtoUDP {
					return StatusSent, state
				}
				return StatusFiltered, state
			case "closed":
				return StatusClosed, state
			default:
				return StatusFiltered, state
			}
		}
		if host.Status.State != "" && host.Status.State != "up" {
			return StatusClosed, "host " + host.Status.State
		}
	}
	return StatusFiltered, "port not reported"
}
