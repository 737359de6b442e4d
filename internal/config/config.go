// Package config provides configuration management for hostdrift.
//
// Settings are layered: defaults, then the YAML config file, then environment
// variables, then command-line flags (applied by cmd/hostdrift).
//
// Config file locations (priority order):
//  1. $HOSTDRIFT_CONFIG
//  2. ./hostdrift.yaml
//  3. ~/.config/hostdrift/config.yaml
//  4. /etc/hostdrift/config.yaml
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hostdrift/internal/domain"
)

// Defaults
const (
	DefaultRoleSlug   = "esxi-host"
	DefaultOutputHTML = "hostdrift_report.html"
	DefaultWorkers    = 8
	DefaultPageSize   = 100
	DefaultTimeout    = 60 * time.Second
	DefaultServerAddr = ":8080"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns defaults matching a vCenter + NetBox setup
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Match.Mode == "" {
		c.Match.Mode = string(domain.MatchModeShort)
	}
	if c.Match.Aliases == nil {
		c.Match.Aliases = map[string]string{}
	}
	if c.Sources.Live == "" {
		c.Sources.Live = SourceVSphere
	}
	if c.Sources.CMDB == "" {
		c.Sources.CMDB = SourceNetBox
	}
	if c.NetBox.RoleSlug == "" {
		c.NetBox.RoleSlug = DefaultRoleSlug
	}
	if c.NetBox.CustomFields.CPUCores == "" {
		c.NetBox.CustomFields.CPUCores = "cpu_cores"
	}
	if c.NetBox.CustomFields.RAMGB == "" {
		c.NetBox.CustomFields.RAMGB = "ram_gb"
	}
	if c.NetBox.CustomFields.Datastores == "" {
		c.NetBox.CustomFields.Datastores = "datastores"
	}
	if c.NetBox.Workers <= 0 {
		c.NetBox.Workers = DefaultWorkers
	}
	if c.NetBox.PageSize <= 0 {
		c.NetBox.PageSize = DefaultPageSize
	}
	if c.Output.HTML == "" {
		c.Output.HTML = DefaultOutputHTML
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Timeout <= 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
}

// MatchMode returns the parsed name match mode.
// Call Validate first; an invalid mode falls back to short here.
func (c *Config) MatchMode() domain.MatchMode {
	mode, err := domain.ParseMatchMode(c.Match.Mode)
	if err != nil {
		return domain.MatchModeShort
	}
	return mode
}

// Aliases returns the alias table
func (c *Config) Aliases() domain.AliasTable {
	aliases := make(domain.AliasTable, len(c.Match.Aliases))
	for k, v := range c.Match.Aliases {
		aliases[k] = v
	}
	return aliases
}

// Summary returns a human-readable config summary without secrets
func (c *Config) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match: %s, aliases: %d\n", c.Match.Mode, len(c.Match.Aliases))

	switch c.Sources.Live {
	case SourceFile:
		fmt.Fprintf(&b, "Live: file %s\n", c.Sources.LiveFile)
	default:
		fmt.Fprintf(&b, "Live: vsphere %s (user %s, verify_ssl %t)\n", c.VCenter.Host, c.VCenter.User, c.VCenter.VerifySSL)
	}

	switch c.Sources.CMDB {
	case SourceFile:
		fmt.Fprintf(&b, "CMDB: file %s\n", c.Sources.CMDBFile)
	default:
		fmt.Fprintf(&b, "CMDB: netbox %s (role %q, site %q, verify_ssl %t)\n",
			c.NetBox.URL, c.NetBox.RoleSlug, c.NetBox.SiteSlug, c.NetBox.VerifiesSSL())
	}

	outputs := []string{}
	if c.Output.HTML != "" {
		outputs = append(outputs, "html="+c.Output.HTML)
	}
	if c.Output.JSON != "" {
		outputs = append(outputs, "json="+c.Output.JSON)
	}
	sort.Strings(outputs)
	fmt.Fprintf(&b, "Outputs: %s", strings.Join(outputs, " "))

	return b.String()
}
