// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/rankings/bulk to import a scraped batch.
//   - GET /v1/countries/{name}/movies and /v1/countries/{name}/report for the
//     per-country top movies as JSON or as an HTML report.
//   - GET /v1/movies/{id} for a single movie.
//   - POST /v1/crawl to scrape, snapshot, and import in one call.
package api
