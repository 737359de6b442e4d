package probe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadPlan(t *testing.T) {
	plan, err := LoadPlan(filepath.Join("testdata", "plan.yaml"))
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}

	if len(plan.Clients) != 2 || plan.Clients[1].Bastion != "bastion.corp.local" {
		t.Errorf("Clients = %+v", plan.Clients)
	}
	if plan.Ports[0].Proto != ProtoTCP {
		t.Errorf("proto should be lowercased, got %q", plan.Ports[0].Proto)
	}
	if plan.Timeout(ProtoTCP) != 2*time.Second {
		t.Errorf("tcp timeout = %v", plan.Timeout(ProtoTCP))
	}
	if plan.Timeout(ProtoUDP) != DefaultTimeout {
		t.Errorf("udp timeout = %v, want default", plan.Timeout(ProtoUDP))
	}
	if !plan.HasUDP() {
		t.Error("HasUDP() = false, plan lists Kerberos over udp")
	}
	if plan.Workers != 4 {
		t.Errorf("Workers = %d", plan.Workers)
	}
	if plan.OutputHTML != DefaultOutputHTML || plan.OutputJSON != DefaultOutputJSON {
		t.Errorf("outputs = %q %q", plan.OutputHTML, plan.OutputJSON)
	}
	if err := plan.Validate(true); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadPlanDefaultPorts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte("servers:\n  prod: [ipa1]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	plan, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}
	if len(plan.Ports) != len(DefaultPorts) {
		t.Errorf("len(Ports) = %d, want %d", len(plan.Ports), len(DefaultPorts))
	}
	if err := plan.Validate(false); err != nil {
		t.Errorf("Validate(false) error = %v", err)
	}
	if err := plan.Validate(true); err == nil {
		t.Error("Validate(true) should require clients")
	}
}

func TestPlanValidate(t *testing.T) {
	base := func() *Plan {
		p := &Plan{
			Clients: []Client{{Host: "app1"}},
			Servers: map[string][]string{"prod": {"ipa1"}},
		}
		p.applyDefaults()
		return p
	}

	tests := []struct {
		name   string
		modify func(p *Plan)
		errSub string
	}{
		{"valid", func(p *Plan) {}, ""},
		{"no servers", func(p *Plan) { p.Servers = nil }, "no servers"},
		{"shell in server", func(p *Plan) { p.Servers["prod"] = []string{"ipa1;reboot"} }, "invalid server"},
		{"shell in client", func(p *Plan) { p.Clients[0].Host = "$(id)" }, "invalid client"},
		{"bad bastion", func(p *Plan) { p.Clients[0].Bastion = "a b" }, "invalid bastion"},
		{"bad port", func(p *Plan) { p.Ports = []Port{{Service: "x", Port: 70000, Proto: ProtoTCP}} }, "invalid port"},
		{"bad proto", func(p *Plan) { p.Ports = []Port{{Service: "x", Port: 1, Proto: "sctp"}} }, "invalid protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.modify(p)
			err := p.Validate(true)
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errSub)
			}
		})
	}
}

func TestPlanChecks(t *testing.T) {
	plan, err := LoadPlan(filepath.Join("testdata", "plan.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	checks := plan.Checks()
	// 2 clients x 3 servers x 2 ports
	if len(checks) != 12 {
		t.Fatalf("len(checks) = %d, want 12", len(checks))
	}

	first := checks[0]
	if first.Client.Host != "app1.corp.local" || first.Env != "DT_AZ1" || first.Server != "ipa1.corp.local" {
		t.Errorf("first check = %+v, want environments in sorted order", first)
	}
	if first.Timeout != 2*time.Second {
		t.Errorf("tcp check timeout = %v", first.Timeout)
	}
	if checks[1].Proto != ProtoUDP || checks[1].Timeout != DefaultTimeout {
		t.Errorf("second check = %+v", checks[1])
	}
}

func TestPlanChecksWithoutClients(t *testing.T) {
	plan := &Plan{Servers: map[string][]string{"prod": {"ipa1"}}}
	plan.applyDefaults()

	checks := plan.Checks()
	if len(checks) != len(DefaultPorts) {
		t.Fatalf("len(checks) = %d", len(checks))
	}
	for _, c := range checks {
		if c.Client.Host != LocalClient {
			t.Errorf("client = %q, want %q", c.Client.Host, LocalClient)
		}
	}
}

func TestClientAddress(t *testing.T) {
	if got := (Client{Host: "app1"}).Address(); got != "app1:22" {
		t.Errorf("Address() = %q", got)
	}
	if got := (Client{Host: "app1", Port: 2222}).Address(); got != "app1:2222" {
		t.Errorf("Address() = %q", got)
	}
}
