// Package series defines the shared time-series types that flow through the
// pipeline: raw sensor readings as delivered by the water data service,
// quality-controlled samples on the regular grid, and the summary statistics
// derived from them.
package series
