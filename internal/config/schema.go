package config

import (
	"time"
)

// Source kinds
const (
	SourceVSphere = "vsphere"
	SourceNetBox  = "netbox"
	SourceFile    = "file"
)

// Config is the root configuration structure
type Config struct {
	Version      int           `yaml:"version"`
	Match        MatchConfig   `yaml:"match"`
	Sources      SourcesConfig `yaml:"sources"`
	VCenter      VCenterConfig `yaml:"vcenter"`
	NetBox       NetBoxConfig  `yaml:"netbox"`
	Output       OutputConfig  `yaml:"output"`
	History      HistoryConfig `yaml:"history"`
	Server       ServerConfig  `yaml:"server"`
	Timeout      Duration      `yaml:"timeout"`
	AllowPartial bool          `yaml:"allow_partial"`
}

// MatchConfig controls identity resolution
type MatchConfig struct {
	Mode    string            `yaml:"mode"`              // short, fqdn, lowercase
	Aliases map[string]string `yaml:"aliases,omitempty"` // live hostname -> CMDB device name
}

// SourcesConfig selects where each snapshot comes from
type SourcesConfig struct {
	Live     string `yaml:"live"`                // vsphere or file
	CMDB     string `yaml:"cmdb"`                // netbox or file
	LiveFile string `yaml:"live_file,omitempty"` // YAML/JSON snapshot of hosts
	CMDBFile string `yaml:"cmdb_file,omitempty"` // YAML/JSON snapshot of devices
}

// VCenterConfig holds vSphere connection details
type VCenterConfig struct {
	Host      string `yaml:"host"`
	User      string `yaml:"user"`
	Password  string `yaml:"password,omitempty"`
	VerifySSL bool   `yaml:"verify_ssl"`
}

// NetBoxConfig holds NetBox connection details and device filters
type NetBoxConfig struct {
	URL          string             `yaml:"url"`
	Token        string             `yaml:"token,omitempty"`
	VerifySSL    *bool              `yaml:"verify_ssl,omitempty"` // nil = true
	RoleSlug     string             `yaml:"role_slug"`
	SiteSlug     string             `yaml:"site_slug,omitempty"`
	CustomFields CustomFieldsConfig `yaml:"custom_fields"`
	Workers      int                `yaml:"workers"`
	PageSize     int                `yaml:"page_size"`
}

// VerifiesSSL reports whether TLS certificates are checked (default true)
func (n NetBoxConfig) VerifiesSSL() bool {
	return n.VerifySSL == nil || *n.VerifySSL
}

// CustomFieldsConfig names the NetBox custom fields holding host specs
type CustomFieldsConfig struct {
	CPUCores   string `yaml:"cpu_cores"`
	RAMGB      string `yaml:"ram_gb"`
	Datastores string `yaml:"datastores"`
}

// OutputConfig holds report destinations. Empty disables a format.
type OutputConfig struct {
	HTML string `yaml:"html"`
	JSON string `yaml:"json,omitempty"`
}

// HistoryConfig enables the run history database.
// DSN is a SQLite file path or a postgres:// URL.
type HistoryConfig struct {
	DSN       string   `yaml:"dsn,omitempty"`
	Retention Duration `yaml:"retention,omitempty"` // prune runs older than this after each save; 0 keeps all
}

// ServerConfig holds the report viewer settings
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"` // CORS; empty disables
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
