// Package main hosts the distrocrawler entrypoint.
//
// Architecture overview:
//   - Acquisition: the pipeline fetches the ranking page, falls back to an embedded seed list when the ranking
//     cannot be read, then visits each detail page at a fixed pace. Every request tries a bounded number of
//     proxies from a freshly loaded pool before going direct.
//   - Persistence & fanout: the snapshot is written to a local JSON file first. A failure there fails the run.
//     The GCS mirror, the Postgres history table and the snapshot event are best effort.
//   - Triggering: the runner starts at most one run at a time. The REST surface and the scrape command both go
//     through it, so a CLI run and a triggered run never overlap inside one process.
//   - Configuration & plumbing: Viper populates config from a file and DISTRO_* env vars; zap provides structured
//     logging; Prometheus metrics are exported on /metrics.
//
// Quick checklist:
//   - Serve: distrocrawler serve --config config.yaml, then POST /v1/scraping/trigger.
//   - One shot: distrocrawler scrape --limit 50 exits non-zero only when the snapshot could not be written.
//   - Inspect: distrocrawler status prints the stored snapshot summary as JSON.
package main
