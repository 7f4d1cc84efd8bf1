// Package api hosts the HTTP server and its middleware. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST {prefix}/chat to answer a question from the given sources. Every
//     path under the prefix passes the admission gate first.
package api
