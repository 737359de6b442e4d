package domain

// Tracked attributes, in report order
const (
	AttrManagementIP  = "mgmt_ip"
	AttrCPUCores      = "cpu_cores"
	AttrRAMGB         = "ram_gb"
	AttrDatastores    = "datastores"
	AttrPhysicalNICs  = "pnics"
	AttrVMKernelNames = "vmkernel_names"
	AttrVMKernelVLANs = "vmkernel_vlans"
)

// TrackedAttributes is the fixed order verdicts appear in
var TrackedAttributes = []string{
	AttrManagementIP,
	AttrCPUCores,
	AttrRAMGB,
	AttrDatastores,
	AttrPhysicalNICs,
	AttrVMKernelNames,
	AttrVMKernelVLANs,
}

// VerdictStatus is the outcome of comparing one attribute
type VerdictStatus string

const (
	VerdictMatch        VerdictStatus = "match"
	VerdictMismatch     VerdictStatus = "mismatch"
	VerdictIncomparable VerdictStatus = "incomparable" // One side missing or unobservable
)

// AttributeVerdict is the comparison result for one attribute of a matched pair
type AttributeVerdict struct {
	Attribute  string        `json:"attribute"`
	Status     VerdictStatus `json:"status"`
	LiveValue  any           `json:"live_value"`
	CMDBValue  any           `json:"cmdb_value"`
	Detail     string        `json:"detail,omitempty"`
	OnlyInLive []string      `json:"only_in_live,omitempty"`
	OnlyInCMDB []string      `json:"only_in_cmdb,omitempty"`
}

// IsMismatch reports whether the verdict counts as drift
func (v AttributeVerdict) IsMismatch() bool {
	return v.Status == VerdictMismatch
}
