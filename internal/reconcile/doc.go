// Package reconcile is the host identity resolution and attribute drift
// detection engine.
//
// The engine is a pure, synchronous, single pass over two already fetched
// snapshots:
//
//	hosts, devices -> Resolve (Normalize + aliases) -> []MatchResult
//	Matched pair   -> Diff                          -> []AttributeVerdict
//	result         -> Classify                      -> HostReport
//	reports        -> Aggregate                     -> RunStatus
//
// Matching is never fuzzy. A hostname is resolved by exactly one alias lookup
// or exactly one normalization pass, and any ambiguity (two devices with the
// same normalized name, two live names aliased to one device) aborts the run
// with a domain.ConfigurationError instead of guessing.
//
// The engine holds no state between runs and never mutates its inputs.
package reconcile
