// Package metrics turns run results into latency summaries and Prometheus
// metrics.
//
// Summarize computes percentiles with an HDR histogram. Collector keeps
// counters across runs (useful with run --watch) and exposes them either as
// a node_exporter textfile or over HTTP.
package metrics
