package config

import (
	"net/url"
	"sort"
	"strings"

	"hostdrift/internal/domain"
	"hostdrift/internal/reconcile"
)

// Validate checks the settings needed by the selected sources.
// Every failure is a domain.ConfigurationError.
func (c *Config) Validate() error {
	if _, err := domain.ParseMatchMode(c.Match.Mode); err != nil {
		return domain.NewConfigurationError(domain.ErrInvalidSetting, "match.mode", nil, "%v", err)
	}

	if err := reconcile.ValidateAliases(c.Aliases()); err != nil {
		return err
	}

	switch c.Sources.Live {
	case SourceVSphere:
		if err := require("vcenter", map[string]string{
			EnvVCenterHost: c.VCenter.Host,
			EnvVCenterUser: c.VCenter.User,
		}); err != nil {
			return err
		}
	case SourceFile:
		if strings.TrimSpace(c.Sources.LiveFile) == "" {
			return domain.NewConfigurationError(domain.ErrMissingSetting, "sources.live_file", nil,
				"live source is file but sources.live_file is empty")
		}
	default:
		return domain.NewConfigurationError(domain.ErrInvalidSetting, "sources.live", []string{c.Sources.Live},
			"unknown live source (want %s or %s)", SourceVSphere, SourceFile)
	}

	switch c.Sources.CMDB {
	case SourceNetBox:
		if err := require("netbox", map[string]string{EnvNetBoxURL: c.NetBox.URL}); err != nil {
			return err
		}
		u, err := url.Parse(c.NetBox.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.NewConfigurationError(domain.ErrInvalidSetting, EnvNetBoxURL, []string{c.NetBox.URL},
				"netbox url must be an absolute http(s) URL")
		}
	case SourceFile:
		if strings.TrimSpace(c.Sources.CMDBFile) == "" {
			return domain.NewConfigurationError(domain.ErrMissingSetting, "sources.cmdb_file", nil,
				"cmdb source is file but sources.cmdb_file is empty")
		}
	default:
		return domain.NewConfigurationError(domain.ErrInvalidSetting, "sources.cmdb", []string{c.Sources.CMDB},
			"unknown cmdb source (want %s or %s)", SourceNetBox, SourceFile)
	}

	return nil
}

func require(section string, values map[string]string) error {
	var missing []string
	for _, key := range sortedKeys(values) {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return domain.NewConfigurationError(domain.ErrMissingSetting, section, missing,
			"%s settings are required", section)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
