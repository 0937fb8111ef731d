// Package telemetry tracks pipeline counters per station and exposes them
// in Prometheus text exposition format on /metrics.
package telemetry
