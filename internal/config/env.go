package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"hostdrift/internal/domain"
)

// Environment variables recognized by ApplyEnv
const (
	EnvVCenterHost      = "VCENTER_HOST"
	EnvVCenterUser      = "VCENTER_USER"
	EnvVCenterPass      = "VCENTER_PASS"
	EnvVCenterVerifySSL = "VCENTER_VERIFY_SSL"
	EnvNetBoxURL        = "NETBOX_URL"
	EnvNetBoxToken      = "NETBOX_TOKEN"
	EnvNetBoxVerifySSL  = "NETBOX_VERIFY_SSL"
	EnvRoleSlug         = "NB_DEVICE_ROLE_SLUG"
	EnvSiteSlug         = "NB_SITE_SLUG"
	EnvMatchMode        = "NAME_MATCH_MODE"
	EnvAliases          = "NB_NAME_ALIASES"
	EnvCFCPUCores       = "CF_CPU_CORES"
	EnvCFRAMGB          = "CF_RAM_GB"
	EnvCFDatastores     = "CF_DATASTORES"
	EnvOutputHTML       = "OUTPUT_HTML"
	EnvOutputJSON       = "OUTPUT_JSON"
	EnvHistoryDSN       = "HOSTDRIFT_HISTORY_DSN"
)

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ApplyEnvFromOS overlays the process environment
func (c *Config) ApplyEnvFromOS() error {
	return c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv overlays environment variables onto the config.
// Only variables that are set override file values.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvVCenterHost, &c.VCenter.Host},
		{EnvVCenterUser, &c.VCenter.User},
		{EnvVCenterPass, &c.VCenter.Password},
		{EnvNetBoxURL, &c.NetBox.URL},
		{EnvNetBoxToken, &c.NetBox.Token},
		{EnvRoleSlug, &c.NetBox.RoleSlug},
		{EnvSiteSlug, &c.NetBox.SiteSlug},
		{EnvMatchMode, &c.Match.Mode},
		{EnvCFCPUCores, &c.NetBox.CustomFields.CPUCores},
		{EnvCFRAMGB, &c.NetBox.CustomFields.RAMGB},
		{EnvCFDatastores, &c.NetBox.CustomFields.Datastores},
		{EnvOutputHTML, &c.Output.HTML},
		{EnvOutputJSON, &c.Output.JSON},
		{EnvHistoryDSN, &c.History.DSN},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvVCenterVerifySSL); ok {
		c.VCenter.VerifySSL = parseBool(v)
	}
	if v, ok := lookup(EnvNetBoxVerifySSL); ok {
		verify := parseBool(v)
		c.NetBox.VerifySSL = &verify
	}

	if v, ok := lookup(EnvAliases); ok && strings.TrimSpace(v) != "" {
		var aliases map[string]string
		if err := json.Unmarshal([]byte(v), &aliases); err != nil {
			return domain.NewConfigurationError(domain.ErrInvalidSetting, EnvAliases, nil,
				"%s must be a JSON object of live name to CMDB name: %v", EnvAliases, err)
		}
		c.Match.Aliases = aliases
	}

	return nil
}

// parseBool accepts 1/true/yes in any case; anything else is false
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// String prints a redacted view for logs
func (v VCenterConfig) String() string {
	pass := ""
	if v.Password != "" {
		pass = "***"
	}
	return fmt.Sprintf("%s@%s (password %q, verify_ssl %t)", v.User, v.Host, pass, v.VerifySSL)
}
