package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VLANState describes what the live side knows about a VLAN binding
type VLANState string

const (
	VLANAbsent  VLANState = ""        // No binding reported
	VLANTagged  VLANState = "tagged"  // Single VLAN ID known
	VLANUnknown VLANState = "unknown" // Trunk or distributed switch, not observable
)

// TrunkVLANID is the standard vSwitch portgroup VLAN ID meaning "all VLANs"
const TrunkVLANID = 4095

// VLAN is an optional VLAN ID that may also be reported as unknown.
// It serializes as an integer, the string "unknown", or null.
type VLAN struct {
	ID    int
	State VLANState
}

// TaggedVLAN returns a VLAN with a known ID
func TaggedVLAN(id int) VLAN {
	return VLAN{ID: id, State: VLANTagged}
}

// UnknownVLAN returns a VLAN that could not be observed
func UnknownVLAN() VLAN {
	return VLAN{State: VLANUnknown}
}

// IsKnown returns true if the VLAN carries a usable ID
func (v VLAN) IsKnown() bool {
	return v.State == VLANTagged
}

// IsUnknown returns true if the live side reported the VLAN as unknown
func (v VLAN) IsUnknown() bool {
	return v.State == VLANUnknown
}

// String renders the VLAN for reports
func (v VLAN) String() string {
	switch v.State {
	case VLANTagged:
		return strconv.Itoa(v.ID)
	case VLANUnknown:
		return "unknown"
	default:
		return ""
	}
}

// MarshalJSON implements json.Marshaler
func (v VLAN) MarshalJSON() ([]byte, error) {
	switch v.State {
	case VLANTagged:
		return []byte(strconv.Itoa(v.ID)), nil
	case VLANUnknown:
		return []byte(`"unknown"`), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (v *VLAN) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return v.set(raw)
}

// MarshalYAML implements yaml.Marshaler
func (v VLAN) MarshalYAML() (interface{}, error) {
	switch v.State {
	case VLANTagged:
		return v.ID, nil
	case VLANUnknown:
		return "unknown", nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML implements yaml.Unmarshaler
func (v *VLAN) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return v.set(raw)
}

func (v *VLAN) set(raw any) error {
	switch val := raw.(type) {
	case nil:
		*v = VLAN{}
	case int:
		*v = TaggedVLAN(val)
	case float64:
		*v = TaggedVLAN(int(val))
	case string:
		s := strings.TrimSpace(strings.ToLower(val))
		switch s {
		case "", "none", "null":
			*v = VLAN{}
		case "unknown", "trunk":
			*v = UnknownVLAN()
		default:
			id, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("invalid vlan %q", val)
			}
			*v = TaggedVLAN(id)
		}
	default:
		return fmt.Errorf("invalid vlan value of type %T", raw)
	}
	return nil
}

// VMKernel is a host-local virtual interface (vmk0, vmk1, ...)
type VMKernel struct {
	Name      string `json:"name" yaml:"name"`
	IP        string `json:"ip,omitempty" yaml:"ip,omitempty"`
	Portgroup string `json:"portgroup,omitempty" yaml:"portgroup,omitempty"`
	VLAN      VLAN   `json:"vlan" yaml:"vlan,omitempty"`
}

// Portgroup is a vSwitch portgroup visible on a host
type Portgroup struct {
	Name        string `json:"name" yaml:"name"`
	Switch      string `json:"switch,omitempty" yaml:"switch,omitempty"`
	VLAN        VLAN   `json:"vlan" yaml:"vlan,omitempty"`
	Distributed bool   `json:"distributed,omitempty" yaml:"distributed,omitempty"`
}

// HostFact is a host as reported by the live inventory
type HostFact struct {
	Hostname     string      `json:"hostname" yaml:"hostname"`
	CPUCores     *int        `json:"cpu_cores,omitempty" yaml:"cpu_cores,omitempty"`
	CPUThreads   *int        `json:"cpu_threads,omitempty" yaml:"cpu_threads,omitempty"`
	RAMGB        *int        `json:"ram_gb,omitempty" yaml:"ram_gb,omitempty"`
	Datastores   []string    `json:"datastores,omitempty" yaml:"datastores,omitempty"`
	PhysicalNICs []string    `json:"pnics,omitempty" yaml:"pnics,omitempty"`
	VMKernels    []VMKernel  `json:"vmkernels,omitempty" yaml:"vmkernels,omitempty"`
	ManagementIP string      `json:"mgmt_ip,omitempty" yaml:"mgmt_ip,omitempty"`
	Portgroups   []Portgroup `json:"portgroups,omitempty" yaml:"portgroups,omitempty"`
}

// VMKernelNames returns the names of all VMkernel interfaces
func (h *HostFact) VMKernelNames() []string {
	names := make([]string, 0, len(h.VMKernels))
	for _, vmk := range h.VMKernels {
		if vmk.Name != "" {
			names = append(names, vmk.Name)
		}
	}
	return names
}

// IntPtr returns a pointer to v, for optional numeric fields
func IntPtr(v int) *int {
	return &v
}
