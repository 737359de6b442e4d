package probe

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hostdrift/internal/config"
)

// Defaults for a plan
const (
	DefaultTimeout    = 3 * time.Second
	DefaultWorkers    = 8
	DefaultSSHPort    = 22
	DefaultOutputJSON = "fwcheck_results.json"
	DefaultOutputHTML = "fwcheck_report.html"
)

// Protocols
const (
	ProtoTCP = "tcp"
	ProtoUDP = "udp"
)

// Client is a host checks originate from
type Client struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port,omitempty" json:"port,omitempty"`
	User       string `yaml:"user,omitempty" json:"user,omitempty"`
	Key        string `yaml:"key,omitempty" json:"-"`
	Passphrase string `yaml:"passphrase,omitempty" json:"-"`
	Password   string `yaml:"password,omitempty" json:"-"`
	Bastion    string `yaml:"bastion,omitempty" json:"bastion,omitempty"`
}

// Address returns host:port for the SSH connection
func (c Client) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Port is a required (service, port, protocol) triple
type Port struct {
	Service string `yaml:"service" json:"service"`
	Port    int    `yaml:"port" json:"port"`
	Proto   string `yaml:"proto" json:"proto"`
}

func (p Port) String() string {
	return fmt.Sprintf("%d/%s", p.Port, strings.ToUpper(p.Proto))
}

// DefaultPorts are the ports FreeIPA clients need to reach their servers
var DefaultPorts = []Port{
	{Service: "HTTP", Port: 80, Proto: ProtoTCP},
	{Service: "HTTPS", Port: 443, Proto: ProtoTCP},
	{Service: "LDAP", Port: 389, Proto: ProtoTCP},
	{Service: "LDAPS", Port: 636, Proto: ProtoTCP},
	{Service: "Kerberos", Port: 88, Proto: ProtoTCP},
	{Service: "Kerberos", Port: 88, Proto: ProtoUDP},
	{Service: "Kerberos kpasswd", Port: 464, Proto: ProtoTCP},
	{Service: "Kerberos kpasswd", Port: 464, Proto: ProtoUDP},
	{Service: "DNS", Port: 53, Proto: ProtoTCP},
	{Service: "DNS", Port: 53, Proto: ProtoUDP},
	{Service: "NTP", Port: 123, Proto: ProtoUDP},
}

// Plan describes a connectivity check run
type Plan struct {
	Clients    []Client            `yaml:"clients"`
	Servers    map[string][]string `yaml:"servers"` // environment -> server hosts
	Ports      []Port              `yaml:"ports,omitempty"`
	TCPTimeout config.Duration     `yaml:"tcp_timeout,omitempty"`
	UDPTimeout config.Duration     `yaml:"udp_timeout,omitempty"`
	Workers    int                 `yaml:"workers,omitempty"`
	OutputJSON string              `yaml:"output_json,omitempty"`
	OutputHTML string              `yaml:"output_html,omitempty"`
}

// LoadPlan reads a plan from a YAML file and fills in defaults
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	plan.applyDefaults()
	return &plan, nil
}

func (p *Plan) applyDefaults() {
	if len(p.Ports) == 0 {
		p.Ports = append([]Port(nil), DefaultPorts...)
	}
	for i := range p.Ports {
		p.Ports[i].Proto = strings.ToLower(strings.TrimSpace(p.Ports[i].Proto))
	}
	if p.TCPTimeout == 0 {
		p.TCPTimeout = config.Duration(DefaultTimeout)
	}
	if p.UDPTimeout == 0 {
		p.UDPTimeout = config.Duration(DefaultTimeout)
	}
	if p.Workers <= 0 {
		p.Workers = DefaultWorkers
	}
	if p.OutputJSON == "" {
		p.OutputJSON = DefaultOutputJSON
	}
	if p.OutputHTML == "" {
		p.OutputHTML = DefaultOutputHTML
	}
}

// Timeout returns the per-check timeout for a protocol
func (p *Plan) Timeout(proto string) time.Duration {
	if proto == ProtoUDP {
		return p.UDPTimeout.Duration()
	}
	return p.TCPTimeout.Duration()
}

// hostPattern restricts names that end up inside remote shell commands
var hostPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// Validate checks the plan. requireClients is false for probers that run
// from the local machine.
func (p *Plan) Validate(requireClients bool) error {
	if requireClients && len(p.Clients) == 0 {
		return fmt.Errorf("plan has no clients")
	}
	for _, c := range p.Clients {
		if !hostPattern.MatchString(c.Host) {
			return fmt.Errorf("invalid client host %q", c.Host)
		}
		if c.Bastion != "" && !hostPattern.MatchString(c.Bastion) {
			return fmt.Errorf("invalid bastion %q for client %s", c.Bastion, c.Host)
		}
	}
	if len(p.Servers) == 0 {
		return fmt.Errorf("plan has no servers")
	}
	for env, servers := range p.Servers {
		for _, s := range servers {
			if !hostPattern.MatchString(s) {
				return fmt.Errorf("invalid server %q in environment %s", s, env)
			}
		}
	}
	for _, port := range p.Ports {
		if port.Port < 1 || port.Port > 65535 {
			return fmt.Errorf("invalid port %d for %s", port.Port, port.Service)
		}
		if port.Proto != ProtoTCP && port.Proto != ProtoUDP {
			return fmt.Errorf("invalid protocol %q for %s", port.Proto, port.Service)
		}
	}
	return nil
}

// HasUDP reports whether any required port is UDP
func (p *Plan) HasUDP() bool {
	for _, port := range p.Ports {
		if port.Proto == ProtoUDP {
			return true
		}
	}
	return false
}

// Environments returns environment names in sorted order
func (p *Plan) Environments() []string {
	envs := make([]string, 0, len(p.Servers))
	for env := range p.Servers {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	return envs
}

// Checks expands the plan into individual checks. With no clients, checks
// originate from LocalClient.
func (p *Plan) Checks() []Check {
	clients := p.Clients
	if len(clients) == 0 {
		clients = []Client{{Host: LocalClient}}
	}

	var checks []Check
	for _, c := range clients {
		for _, env := range p.Environments() {
			for _, server := range p.Servers[env] {
				for _, port := range p.Ports {
					checks = append(checks, Check{
						Client:  c,
						Env:     env,
						Server:  server,
						Service: port.Service,
						Port:    port.Port,
						Proto:   port.Proto,
						Timeout: p.Timeout(port.Proto),
					})
				}
			}
		}
	}
	return checks
}
