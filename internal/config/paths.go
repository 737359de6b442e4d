package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "HOSTDRIFT_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "hostdrift.yaml"
	// ConfigDirName is the directory under XDG and /etc
	ConfigDirName = "hostdrift"
)

// SearchPaths lists config candidates in priority order:
// $HOSTDRIFT_CONFIG, ./hostdrift.yaml, $XDG_CONFIG_HOME/hostdrift/config.yaml,
// ~/.config/hostdrift/config.yaml, /etc/hostdrift/config.yaml.
// Unset variables are skipped.
func SearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ConfigFileName)
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing SearchPaths entry, or "" if none.
// A working-directory hit is made absolute so the watcher can follow it.
func FindConfigPath() string {
	for _, p := range SearchPaths() {
		if !fileExists(p) {
			continue
		}
		if p == ConfigFileName {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
		}
		return p
	}
	return ""
}

// DefaultConfigPath is where init writes a new config
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, ConfigDirName, "config.yaml")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName, "config.yaml")
	}
	return ConfigFileName
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
