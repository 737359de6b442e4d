package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Rules a ConfigurationError can violate
var (
	ErrDuplicateNormalizedName = errors.New("duplicate normalized name")
	ErrDuplicateAliasTarget    = errors.New("duplicate alias target")
	ErrDuplicateHost           = errors.New("duplicate live host")
	ErrDeviceClaimedTwice      = errors.New("device claimed by more than one host")
	ErrInvalidSetting          = errors.New("invalid setting")
	ErrMissingSetting          = errors.New("missing required setting")
)

// ConfigurationError aborts a run before any report is produced
type ConfigurationError struct {
	Rule     error
	Key      string
	Subjects []string
	Message  string
}

// NewConfigurationError creates a ConfigurationError naming the offending subjects
func NewConfigurationError(rule error, key string, subjects []string, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Rule:     rule,
		Key:      key,
		Subjects: subjects,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if msg == "" && e.Rule != nil {
		msg = e.Rule.Error()
	}
	if len(e.Subjects) > 0 {
		msg += " (" + strings.Join(e.Subjects, ", ") + ")"
	}
	return "configuration error: " + msg
}

// Unwrap returns the violated rule
func (e *ConfigurationError) Unwrap() error {
	return e.Rule
}

// FetchError wraps a data source failure
type FetchError struct {
	Source string // "vsphere", "netbox", "file"
	Object string // host, device or page that failed, empty for the whole source
	Err    error
}

func (e *FetchError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("fetch %s %s: %v", e.Source, e.Object, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// ErrRunNotFound is returned when a stored run does not exist
var ErrRunNotFound = errors.New("run not found")
