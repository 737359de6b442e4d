// Package repository stores the history of drift runs.
//
// Each run is kept as its full JSON report plus one indexed row per host, so
// the history of a single host can be listed without decoding every report.
//
// # Backends
//
//   - sqlite: a local file (or ":memory:"), pure Go driver, WAL mode
//   - postgres: a shared database for teams running hostdrift from several
//     places, selected by a postgres:// or postgresql:// DSN
//
// Open picks the backend from the DSN. Both backends migrate their schema on
// open.
package repository
