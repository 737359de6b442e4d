// Package domain defines the core types shared by the hostdrift engine, its
// data sources and its renderers.
//
// # Inventories
//
// HostFact is a host as the virtualization platform (vCenter) sees it right now:
// hardware counts, datastores, physical NICs and VMkernel interfaces with their
// vSwitch VLAN bindings.
//
// DeviceRecord is the same physical machine as the CMDB (NetBox) records it:
// custom fields for CPU, RAM and datastores plus the modeled interfaces.
//
// Both are immutable snapshots. A run fetches them once, hands them to the
// engine and discards them afterwards.
//
// # Results
//
// MatchResult pairs a host with a device, or records that one side has no
// counterpart. AttributeVerdict is the outcome of comparing one tracked
// attribute of a matched pair. HostReport aggregates the verdicts into a
// severity, and Report collects every HostReport of a run together with the
// summary counters and the overall RunStatus.
//
// # Errors
//
// ConfigurationError reports an ambiguous or invalid setting (alias collisions,
// duplicate normalized names). FetchError wraps a data source failure. Drift is
// never an error; it is a RunStatus.
//
// # Design Principles
//
// - No database or network dependencies
// - Value types that serialize cleanly to JSON and YAML
package domain
