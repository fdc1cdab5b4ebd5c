// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats for the scheduler dashboard snapshot.
//   - POST /v1/series/{series_id}/... for manual crawl control.
//   - POST /v1/sources/{source}/... for pausing providers.
package api
