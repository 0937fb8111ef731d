// Package waterdata fetches raw discharge readings from a USGS-style
// instantaneous-values service.
//
// Client performs the HTTP round trip (with optional API-key or basic auth)
// and parses the tab-separated RDB response body into series.RawSamples.
// Fetch failures are returned as-is; the quality-control filter downstream
// treats them as opaque and never reinterprets them.
package waterdata
