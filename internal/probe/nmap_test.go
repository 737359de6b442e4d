package probe

import (
	"testing"

	nmap "github.com/Ullaakut/nmap/v3"
)

func TestNewNmapProber(t *testing.T) {
	n := NewNmapProber()
	if !n.skipHostDiscovery {
		t.Error("host discovery should be skipped by default")
	}
	if n.Name() != "nmap" {
		t.Errorf("Name() = %q", n.Name())
	}

	n = NewNmapProber(WithSkipHostDiscovery(false), WithBinaryPath("/opt/nmap/bin/nmap"))
	if n.skipHostDiscovery || n.binaryPath != "/opt/nmap/bin/nmap" {
		t.Errorf("options not applied: %+v", n)
	}
}

func TestNmapScanOptions(t *testing.T) {
	n := NewNmapProber()
	tcp := n.scanOptions(Check{Server: "ipa1", Port: 636, Proto: ProtoTCP})
	// targets, ports, scan type, -Pn
	if len(tcp) != 4 {
		t.Errorf("len(tcp options) = %d, want 4", len(tcp))
	}

	n = NewNmapProber(WithSkipHostDiscovery(false), WithBinaryPath("/usr/bin/nmap"))
	udp := n.scanOptions(Check{Server: "ipa1", Port: 88, Proto: ProtoUDP})
	if len(udp) != 4 {
		t.Errorf("len(udp options) = %d, want 4", len(udp))
	}
}

func mockRun(proto, state, hostState string) *nmap.Run {
	return &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{{Addr: "10.0.0.10", AddrType: "ipv4"}},
				Hostnames: []nmap.Hostname{{Name: "ipa1.corp.local"}},
				Status:    nmap.Status{State: hostState},
				Ports: []nmap.Port{
					{
						ID:       88,
						Protocol: proto,
						State:    nmap.State{State: state},
						Service:  nmap.Service{Name: "kerberos-sec"},
					},
				},
			},
		},
	}
}

func TestStatusFromRun(t *testing.T) {
	tcp := Check{Server: "ipa1", Port: 88, Proto: ProtoTCP}
	udp := Check{Server: "ipa1", Port: 88, Proto: ProtoUDP}

	tests := []struct {
		name  string
		run   *nmap.Run
		check Check
		want  Status
	}{
		{"tcp open", mockRun("tcp", "open", "up"), tcp, StatusOpen},
		{"tcp closed", mockRun("tcp", "closed", "up"), tcp, StatusClosed},
		{"tcp filtered", mockRun("tcp", "filtered", "up"), tcp, StatusFiltered},
		{"udp open is only sent", mockRun("udp", "open", "up"), udp, StatusSent},
		{"udp open|filtered", mockRun("udp", "open|filtered", "up"), udp, StatusSent},
		{"udp closed", mockRun("udp", "closed", "up"), udp, StatusClosed},
		{"protocol mismatch", mockRun("udp", "open", "up"), tcp, StatusFiltered},
		{"host down", &nmap.Run{Hosts: []nmap.Host{{Status: nmap.Status{State: "down"}}}}, tcp, StatusClosed},
		{"no hosts", &nmap.Run{}, tcp, StatusFiltered},
		{"nil run", nil, tcp, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := statusFromRun(tt.run, tt.check)
			if got != tt.want {
				t.Errorf("statusFromRun() = %q, want %q", got, tt.want)
			}
		})
	}
}
