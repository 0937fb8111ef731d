package series

import "time"

// Common USGS-style qualifier codes reported alongside a reading.
const (
	QualifierApproved    = "A"   // passed the agency's review
	QualifierProvisional = "P"   // subject to revision
	QualifierEstimated   = "e"   // estimated by the source, not measured
	QualifierIce         = "Ice" // reading affected by ice, no usable value
)

// RawSample is one reading exactly as delivered by the source.
//
// Value is nil when the sensor reported no usable number for this timestamp
// (outage, ice, equipment fault). Timestamps within one fetched batch are
// non-decreasing, but spacing is not guaranteed to be regular.
type RawSample struct {
	Timestamp time.Time
	Value     *float64
	Qualifier string
}

// Origin tags how a cleaned sample's value came to be.
type Origin string

const (
	// OriginObserved marks a value that passed quality control unchanged.
	OriginObserved Origin = "observed"

	// OriginImputed marks a value filled in to close a short gap.
	OriginImputed Origin = "imputed"
)

// CleanedSample is one point of the quality-controlled output series.
// Timestamps sit on the regular grid at the series' nominal interval.
type CleanedSample struct {
	Timestamp time.Time
	Value     float64
	Origin    Origin
}

// Summary holds the statistics derived from one cleaned series.
//
// Mean, Max and Min are computed over observed values only — imputed values
// never bias the summary. The counts cover the full cleaned series, so
// ObservedCount + ImputedCount equals the number of points in it.
type Summary struct {
	Mean  float64
	Max   float64
	Min   float64
	MaxAt time.Time
	MinAt time.Time

	ObservedCount int
	ImputedCount  int
}

// Float64 returns a pointer to v. Convenience for building RawSamples.
func Float64(v float64) *float64 { return &v }
