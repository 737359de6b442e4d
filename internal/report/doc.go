// Package report renders drift and connectivity reports.
//
// Every renderer consumes a finished report and writes to an io.Writer:
//
//   - WriteJSON writes the machine-readable document
//   - WriteHTML and WriteProbeHTML render the embedded html/template pages
//   - WriteText prints the terminal summary
//
// Save writes a rendered report to a file atomically, so a watcher or a web
// browser never observes a half-written file.
package report
