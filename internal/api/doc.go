// Package api hosts the HTTP server, middleware, and REST handlers that expose
// the latest snapshot and the scrape trigger. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/scraping/status and /v1/scraping/data for snapshot reads.
//   - POST /v1/scraping/trigger to start a background run.
//   - DELETE /v1/scraping/cache to drop the stored snapshot.
package api
