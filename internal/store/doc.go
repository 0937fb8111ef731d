// Package store keeps the latest pipeline result per station in memory.
//
// Each poll cycle publishes a StationStatus (cleaned series, summary
// statistics, filter report); the REST API and WebSocket hub read from here.
// A background goroutine evicts stations that have not been updated within
// the configured TTL, so a station whose fetches keep failing eventually
// disappears from the dashboard instead of showing stale numbers forever.
package store
