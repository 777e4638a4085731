// Package api hosts the HTTP server, middleware, and REST handlers for the
// monitor. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/status, /api/logs, /api/config and /api/subscribers for the
//     public dashboard, plus POST /api/subscribers for sign-ups.
//   - Administrative controls under /api (start, stop, check-now, ...) gated
//     by an API key.
package api
