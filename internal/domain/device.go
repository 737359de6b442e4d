package domain

import "strings"

// Interface prefixes used to pick ESXi interfaces out of a CMDB device
const (
	PhysicalNICPrefix = "vmnic"
	VMKernelPrefix    = "vmk"
)

// Interface is an interface modeled on a CMDB device
type Interface struct {
	Name         string `json:"name" yaml:"name"`
	UntaggedVLAN *int   `json:"untagged_vlan,omitempty" yaml:"untagged_vlan,omitempty"`
	IP           string `json:"ip,omitempty" yaml:"ip,omitempty"`
}

// DeviceRecord is a device as recorded in the CMDB.
// Datastores is already a list; JSON-or-CSV parsing happens at ingestion.
type DeviceRecord struct {
	ID         int         `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string      `json:"name" yaml:"name"`
	Site       string      `json:"site,omitempty" yaml:"site,omitempty"`
	Role       string      `json:"role,omitempty" yaml:"role,omitempty"`
	CPUCores   *int        `json:"cpu_cores,omitempty" yaml:"cpu_cores,omitempty"`
	RAMGB      *int        `json:"ram_gb,omitempty" yaml:"ram_gb,omitempty"`
	Datastores []string    `json:"datastores,omitempty" yaml:"datastores,omitempty"`
	Interfaces []Interface `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	PrimaryIP  string      `json:"primary_ip,omitempty" yaml:"primary_ip,omitempty"`
}

// InterfacesWithPrefix returns interfaces whose name starts with prefix (case-insensitive)
func (d *DeviceRecord) InterfacesWithPrefix(prefix string) []Interface {
	prefix = strings.ToLower(prefix)
	var out []Interface
	for _, iface := range d.Interfaces {
		name := strings.ToLower(strings.TrimSpace(iface.Name))
		if strings.HasPrefix(name, prefix) {
			out = append(out, iface)
		}
	}
	return out
}

// InterfaceNames returns the trimmed names of interfaces matching prefix
func (d *DeviceRecord) InterfaceNames(prefix string) []string {
	ifaces := d.InterfacesWithPrefix(prefix)
	names := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		names = append(names, strings.TrimSpace(iface.Name))
	}
	return names
}
