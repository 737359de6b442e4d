// Package handler serves stored drift runs over HTTP.
//
// # Routes
//
//	GET /healthz                          liveness
//	GET /                                 run index (HTML)
//	GET /runs/{id}                        one run as the drift report page
//	GET /api/runs?limit=N                 run summaries, most recent first
//	GET /api/runs/{id}                    one run as JSON
//	GET /api/hosts/{identity}/history     one host's outcome across runs
//	GET /api/events                       run notifications (SSE), when a hub is attached
//
// The run id "latest" resolves to the most recent stored run.
//
// Errors are returned as JSON with {error, details}. Every route is read-only.
package handler
