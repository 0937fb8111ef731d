package stats

import (
	"errors"

	"github.com/hydrowatch/hydrowatch/internal/series"
)

// ErrInsufficientData is returned when the cleaned series holds no observed
// samples — the mean of an empty set is undefined, so the statistics must be
// surfaced as a failure rather than silently defaulted to zero. The caller
// decides whether to skip, alert, or abort.
var ErrInsufficientData = errors.New("stats: no observed samples in cleaned series")

// Summarize computes the summary statistics for cleaned.
//
// Max/min ties resolve to the earliest occurring timestamp; since the
// tie-break keys on the timestamp itself, the result does not depend on the
// order of the input.
//
// On ErrInsufficientData the returned Summary still carries valid
// ObservedCount and ImputedCount — counts are legitimate telemetry even when
// the statistics themselves are undefined.
func Summarize(cleaned []series.CleanedSample) (series.Summary, error) {
	var s series.Summary
	var sum float64

	for _, c := range cleaned {
		if c.Origin != series.OriginObserved {
			s.ImputedCount++
			continue
		}

		sum += c.Value
		if s.ObservedCount == 0 {
			s.Max, s.MaxAt = c.Value, c.Timestamp
			s.Min, s.MinAt = c.Value, c.Timestamp
		} else {
			if c.Value > s.Max || (c.Value == s.Max && c.Timestamp.Before(s.MaxAt)) {
				s.Max, s.MaxAt = c.Value, c.Timestamp
			}
			if c.Value < s.Min || (c.Value == s.Min && c.Timestamp.Before(s.MinAt)) {
				s.Min, s.MinAt = c.Value, c.Timestamp
			}
		}
		s.ObservedCount++
	}

	if s.ObservedCount == 0 {
		return s, ErrInsufficientData
	}
	s.Mean = sum / float64(s.ObservedCount)
	return s, nil
}

// LatestObserved returns the most recent observed sample in cleaned,
// assuming the series is ordered by timestamp. ok is false when no observed
// sample exists.
func LatestObserved(cleaned []series.CleanedSample) (latest series.CleanedSample, ok bool) {
	for i := len(cleaned) - 1; i >= 0; i-- {
		if cleaned[i].Origin == series.OriginObserved {
			return cleaned[i], true
		}
	}
	return series.CleanedSample{}, false
}
