// Package prometheus renders tokenlife metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [tokenlife.Engine] and exposes an
// [http.Handler] that renders all counters and histograms. Counter names
// are prefixed tokenlife_*_total; the single histogram is
// tokenlife_rotate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
