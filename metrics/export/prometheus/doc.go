// Package prometheus exposes client counters and the request latency histogram
// as a Prometheus collector.
//
// [NewExporter] wraps an [authclient.Client]. Register the exporter in any
// registry, or mount [Exporter.Handler] which serves a private one. Counter
// names are prefixed tvshows_client_*_total; the single histogram is
// tvshows_client_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry.
//   - Mutate client state.
package prometheus
