package qc

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hydrowatch/hydrowatch/internal/series"
)

// ErrConfiguration marks an invalid filter configuration. It is fatal and
// surfaced immediately — a bad config is never retried.
var ErrConfiguration = errors.New("qc: invalid configuration")

// Bounds is the inclusive physical plausibility range for a reading.
// Discharge can't be negative, so Low is typically 0.
type Bounds struct {
	Low  float64
	High float64
}

// Contains reports whether v lies within the bounds, inclusive.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Config holds all quality-control settings. Every field is explicit; there
// are no hidden defaults — callers build a Config from their own config layer.
type Config struct {
	// AcceptedQualifiers is the set of source quality codes treated as valid.
	AcceptedQualifiers []string

	// MaxGapToFill is the maximum run of consecutive missing grid points
	// eligible for interpolation. Longer gaps are left unfilled.
	MaxGapToFill int

	// Bounds is the inclusive plausibility range; values outside are
	// rejected as noise.
	Bounds Bounds

	// Interval is the series' nominal sample spacing (typically 15 minutes).
	// It is a fixed configuration value, never rediscovered from the data.
	Interval time.Duration
}

// Validate checks the structural constraints on the configuration.
// All violations wrap ErrConfiguration.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrConfiguration, c.Interval)
	}
	if c.MaxGapToFill < 0 {
		return fmt.Errorf("%w: max_gap_to_fill must be >= 0, got %d", ErrConfiguration, c.MaxGapToFill)
	}
	if c.Bounds.Low > c.Bounds.High {
		return fmt.Errorf("%w: value bounds inverted (low %g > high %g)", ErrConfiguration, c.Bounds.Low, c.Bounds.High)
	}
	return nil
}

// Report counts what happened to the input during one Clean run. Rejections
// are expected, routine filtering — they are reported here as telemetry, not
// raised or logged as failures.
type Report struct {
	// Accepted is the number of raw samples that survived rejection,
	// before deduplication and grid snapping.
	Accepted int

	// RejectedQualifier counts samples dropped for an unaccepted qualifier.
	RejectedQualifier int

	// RejectedMissing counts samples dropped for having no value.
	RejectedMissing int

	// RejectedBounds counts samples dropped for an out-of-bounds value.
	RejectedBounds int

	// DuplicatesDropped counts samples displaced by a later re-delivery
	// of the same timestamp.
	DuplicatesDropped int

	// GridConflictsDropped counts samples displaced by another sample
	// snapping closer to the same grid point.
	GridConflictsDropped int

	// Imputed counts grid points filled by interpolation.
	Imputed int
}

// Rejected is the total number of samples dropped during rejection.
func (r Report) Rejected() int {
	return r.RejectedQualifier + r.RejectedMissing + r.RejectedBounds
}

// Clean filters raw into a cleaned series on the regular grid, per the
// package doc. It returns the series ordered by timestamp, a Report of what
// was dropped or filled, and an error only when cfg is invalid.
//
// An empty input, or an input whose samples are all rejected, yields an
// empty series and a nil error.
func Clean(raw []series.RawSample, cfg Config) ([]series.CleanedSample, Report, error) {
	var rep Report
	if err := cfg.Validate(); err != nil {
		return nil, rep, err
	}

	accepted := reject(raw, cfg, &rep)
	rep.Accepted = len(accepted)
	if len(accepted) == 0 {
		return nil, rep, nil
	}

	deduped := dedupe(accepted, &rep)
	grid := snapToGrid(deduped, cfg.Interval, &rep)
	out := fillGaps(grid, cfg, &rep)
	return out, rep, nil
}

// reject drops samples with an unaccepted qualifier, a missing value, or an
// out-of-bounds value. Rejected samples never contribute to interpolation.
func reject(raw []series.RawSample, cfg Config, rep *Report) []series.RawSample {
	ok := make(map[string]bool, len(cfg.AcceptedQualifiers))
	for _, q := range cfg.AcceptedQualifiers {
		ok[q] = true
	}

	out := make([]series.RawSample, 0, len(raw))
	for _, s := range raw {
		switch {
		case !ok[s.Qualifier]:
			rep.RejectedQualifier++
		case s.Value == nil:
			rep.RejectedMissing++
		case !cfg.Bounds.Contains(*s.Value):
			rep.RejectedBounds++
		default:
			out = append(out, s)
		}
	}
	return out
}

// dedupe keeps exactly one sample per timestamp. When the source re-delivers
// a revised reading, the later arrival wins.
func dedupe(in []series.RawSample, rep *Report) []series.RawSample {
	byTime := make(map[int64]int, len(in)) // unix nanos -> index into out
	out := make([]series.RawSample, 0, len(in))
	for _, s := range in {
		key := s.Timestamp.UnixNano()
		if i, seen := byTime[key]; seen {
			out[i] = s
			rep.DuplicatesDropped++
			continue
		}
		byTime[key] = len(out)
		out = append(out, s)
	}
	return out
}

// gridSample is an accepted sample assigned to a grid point, remembering how
// far its original timestamp was from that point.
type gridSample struct {
	value float64
	dist  time.Duration
}

// snapToGrid rounds each timestamp to the nearest grid point. If two distinct
// samples snap to the same point, the one closer to it wins; on an exact
// distance tie the first keeps the slot.
func snapToGrid(in []series.RawSample, interval time.Duration, rep *Report) map[int64]gridSample {
	grid := make(map[int64]gridSample, len(in))
	for _, s := range in {
		gp := s.Timestamp.Round(interval)
		dist := s.Timestamp.Sub(gp)
		if dist < 0 {
			dist = -dist
		}

		key := gp.UnixNano()
		if prev, seen := grid[key]; seen {
			rep.GridConflictsDropped++
			if dist >= prev.dist {
				continue
			}
		}
		grid[key] = gridSample{value: *s.Value, dist: dist}
	}
	return grid
}

// fillGaps walks the full grid from the first to the last occupied point,
// emitting observed samples and interpolating runs of missing points no
// longer than MaxGapToFill. Because the grid is bounded by occupied points,
// every gap inside it has both an earlier and a later observed neighbour;
// there is never anything to extrapolate from at the open ends.
//
// Runs longer than MaxGapToFill are left out of the output entirely — the
// one case where the series is allowed to be non-contiguous.
func fillGaps(grid map[int64]gridSample, cfg Config, rep *Report) []series.CleanedSample {
	keys := make([]int64, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	step := cfg.Interval.Nanoseconds()
	out := make([]series.CleanedSample, 0, len(keys))

	for i, k := range keys {
		if i > 0 {
			prev := keys[i-1]
			gapLen := int((k-prev)/step) - 1
			if gapLen > 0 && gapLen <= cfg.MaxGapToFill {
				v0 := grid[prev].value
				v1 := grid[k].value
				for n := 1; n <= gapLen; n++ {
					frac := float64(n) / float64(gapLen+1)
					out = append(out, series.CleanedSample{
						Timestamp: time.Unix(0, prev+int64(n)*step).UTC(),
						Value:     v0 + (v1-v0)*frac,
						Origin:    series.OriginImputed,
					})
					rep.Imputed++
				}
			}
		}
		out = append(out, series.CleanedSample{
			Timestamp: time.Unix(0, k).UTC(),
			Value:     grid[k].value,
			Origin:    series.OriginObserved,
		})
	}
	return out
}
