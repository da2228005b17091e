// Package metrics provides Prometheus metrics for observability.
//
// This package exposes two groups of metrics:
//   - CleanerMetrics: cleaner-wide work/sleep tick counters, the active
//     thread gauge, and per-mode (in-memory, on-disk) relocation, byte,
//     segment, survivor and pass counters, readable as a flat Snapshot
//   - ObjectStoreMetrics: object store request latency, request counts
//     and bytes transferred
//
// NewCleanerMetrics and NewObjectStoreMetrics register with the default
// Prometheus registerer; the WithRegistry variants take their own. This
// package does not serve HTTP itself; the daemon mounts the registry's
// handler on its health server at /metrics.
//
// Usage:
//
//	cleanerMetrics := metrics.NewCleanerMetricsWithRegistry(reg)
//	storeMetrics := metrics.NewObjectStoreMetricsWithRegistry(reg)
package metrics
