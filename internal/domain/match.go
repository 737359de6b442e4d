package domain

import (
	"fmt"
	"strings"
)

// MatchMode selects how hostnames are canonicalized before matching
type MatchMode string

const (
	MatchModeShort     MatchMode = "short"     // Strip domain, lowercase
	MatchModeFQDN      MatchMode = "fqdn"      // Full name, lowercase
	MatchModeLowercase MatchMode = "lowercase" // Lowercase only
)

// MatchModes lists the accepted modes in display order
var MatchModes = []MatchMode{MatchModeShort, MatchModeFQDN, MatchModeLowercase}

// ParseMatchMode converts a string to MatchMode.
// Unlike most parsers here it does not fall back to a default: a typo in the
// mode would silently pair different hosts.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case MatchModeShort:
		return MatchModeShort, nil
	case MatchModeFQDN:
		return MatchModeFQDN, nil
	case MatchModeLowercase:
		return MatchModeLowercase, nil
	}
	return "", fmt.Errorf("unknown name match mode %q (want short, fqdn or lowercase)", s)
}

// AliasTable maps a literal live-inventory hostname to a literal CMDB device name
type AliasTable map[string]string

// MatchKind tags a MatchResult
type MatchKind string

const (
	MatchKindMatched       MatchKind = "matched"
	MatchKindMissingInCMDB MatchKind = "missing_in_cmdb"
	MatchKindMissingInLive MatchKind = "missing_in_live"
	MatchKindUnfetched     MatchKind = "unfetched" // counterpart could not be fetched
)

// MatchResult is the outcome of identity resolution for one host or device.
// Matched carries both sides, MissingInCMDB only Host, MissingInLive only Device.
type MatchResult struct {
	Kind   MatchKind
	Key    string
	Host   *HostFact
	Device *DeviceRecord
}

// Matched builds a Matched result
func Matched(key string, host *HostFact, device *DeviceRecord) MatchResult {
	return MatchResult{Kind: MatchKindMatched, Key: key, Host: host, Device: device}
}

// MissingInCMDB builds a result for a live host without a CMDB device
func MissingInCMDB(key string, host *HostFact) MatchResult {
	return MatchResult{Kind: MatchKindMissingInCMDB, Key: key, Host: host}
}

// MissingInLive builds a result for a CMDB device without a live host
func MissingInLive(key string, device *DeviceRecord) MatchResult {
	return MatchResult{Kind: MatchKindMissingInLive, Key: key, Device: device}
}

// Unfetched builds a result for an identity whose counterpart failed to fetch.
// Host or Device may be nil; with both nil the key is the failed object's name.
func Unfetched(key string, host *HostFact, device *DeviceRecord) MatchResult {
	return MatchResult{Kind: MatchKindUnfetched, Key: key, Host: host, Device: device}
}

// FetchFailures names the objects a partial fetch dropped
type FetchFailures struct {
	Hosts   []string `json:"hosts,omitempty"`
	Devices []string `json:"devices,omitempty"`
}

// Empty reports whether nothing failed
func (f FetchFailures) Empty() bool {
	return len(f.Hosts) == 0 && len(f.Devices) == 0
}

// Identity returns the display name: the live hostname when present, else the device name
func (m MatchResult) Identity() string {
	if m.Host != nil && m.Host.Hostname != "" {
		return m.Host.Hostname
	}
	if m.Device != nil {
		return m.Device.Name
	}
	return m.Key
}
