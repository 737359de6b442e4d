package probe

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Runner describes the machine fwcheck ran on. Local and nmap probes originate here.
type Runner struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	Virtualization  string `json:"virtualization,omitempty"` // e.g. "docker guest", "kvm guest"
	Root            bool   `json:"root"`
}

// DescribeRunner collects host details. Detection failures fall back to
// hostname and GOOS only; a cancelled context is an error.
func DescribeRunner(ctx context.Context) (*Runner, error) {
	r := &Runner{OS: runtime.GOOS, Root: os.Geteuid() == 0}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("runner detection cancelled: %w", ctx.Err())
		}
		if name, herr := os.Hostname(); herr == nil {
			r.Hostname = name
		}
		return r, nil
	}

	r.Hostname = info.Hostname
	if info.OS != "" {
		r.OS = info.OS
	}
	r.Platform = info.Platform
	r.PlatformVersion = info.PlatformVersion
	r.KernelVersion = info.KernelVersion
	if info.VirtualizationSystem != "" {
		r.Virtualization = strings.TrimSpace(info.VirtualizationSystem + " " + info.VirtualizationRole)
	}
	return r, nil
}

func (r *Runner) String() string {
	parts := []string{r.Hostname}
	if r.Platform != "" {
		parts = append(parts, strings.TrimSpace(r.Platform+" "+r.PlatformVersion))
	} else {
		parts = append(parts, r.OS)
	}
	return strings.Join(parts, ", ")
}
