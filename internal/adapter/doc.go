// Package adapter fetches the two inventories hostdrift reconciles.
//
// A LiveSource reports what the virtualization platform observes (vSphere via
// govmomi, or a captured snapshot file). A CMDBSource reports what the CMDB
// records (NetBox over its REST API, or a snapshot file). Both are read-only:
// no adapter issues anything but reads.
//
// Fetch runs one source of each kind concurrently and returns fully
// materialized snapshots; the reconcile engine never sees a half-built list.
//
// # Partial results
//
// A failure that loses a whole source (connect, login, device listing) is
// always fatal. A failure on one object (a single device's interfaces) is
// returned as a *PartialError alongside everything else that was fetched.
// Fetch fails on it unless allowPartial is set, in which case the object is
// dropped, a warning is logged and the snapshot is marked partial.
package adapter
