// Package stats reduces a cleaned discharge series to its summary
// statistics. Summarize is a pure function: mean, max and min are computed
// over observed values only, while the observed/imputed counts always cover
// the full series.
package stats
