// Package metrics defines the recording interfaces for dispatch-run
// observability. Backends live under infra/metrics: PromSink exposes
// Prometheus counters and gauges, InfluxSink writes per-step schedule
// points, and MultiSink fans out to several backends at once.
package metrics
