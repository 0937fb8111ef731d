package qc

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/hydrowatch/hydrowatch/internal/series"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// defaultConfig returns the config used by most tests: 15-minute grid,
// approved+provisional accepted, discharge bounded to [0, 1000].
func defaultConfig() Config {
	return Config{
		AcceptedQualifiers: []string{series.QualifierApproved, series.QualifierProvisional},
		MaxGapToFill:       1,
		Bounds:             Bounds{Low: 0, High: 1000},
		Interval:           15 * time.Minute,
	}
}

func raw(at time.Time, v float64, q string) series.RawSample {
	return series.RawSample{Timestamp: at, Value: series.Float64(v), Qualifier: q}
}

func missing(at time.Time, q string) series.RawSample {
	return series.RawSample{Timestamp: at, Qualifier: q}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- configuration validation ------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"inverted bounds", func(c *Config) { c.Bounds = Bounds{Low: 10, High: 5} }, true},
		{"negative max gap", func(c *Config) { c.MaxGapToFill = -1 }, true},
		{"zero interval", func(c *Config) { c.Interval = 0 }, true},
		{"negative interval", func(c *Config) { c.Interval = -time.Minute }, true},
		{"zero max gap is legal", func(c *Config) { c.MaxGapToFill = 0 }, false},
		{"equal bounds are legal", func(c *Config) { c.Bounds = Bounds{Low: 5, High: 5} }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("Validate: expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate: unexpected error: %v", err)
			}
		})
	}
}

func TestClean_InvalidConfigSurfacedImmediately(t *testing.T) {
	cfg := defaultConfig()
	cfg.Bounds = Bounds{Low: 100, High: 0}

	_, _, err := Clean([]series.RawSample{raw(t0, 10, "A")}, cfg)
	if err == nil {
		t.Fatal("Clean with inverted bounds: expected error, got nil")
	}
}

// --- short gap is interpolated ------------------------------------------------

func TestClean_InterpolatesShortGap(t *testing.T) {
	// t0:10.0(approved), t0+15m: missing, t0+30m: 12.0(approved)
	in := []series.RawSample{
		raw(t0, 10.0, "A"),
		missing(t0.Add(15*time.Minute), ""),
		raw(t0.Add(30*time.Minute), 12.0, "A"),
	}

	out, rep, err := Clean(in, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	want := []series.CleanedSample{
		{Timestamp: t0, Value: 10.0, Origin: series.OriginObserved},
		{Timestamp: t0.Add(15 * time.Minute), Value: 11.0, Origin: series.OriginImputed},
		{Timestamp: t0.Add(30 * time.Minute), Value: 12.0, Origin: series.OriginObserved},
	}
	assertSeries(t, out, want)

	if rep.Imputed != 1 {
		t.Errorf("Report.Imputed = %d, want 1", rep.Imputed)
	}
	if rep.RejectedMissing != 1 {
		t.Errorf("Report.RejectedMissing = %d, want 1", rep.RejectedMissing)
	}
}

// --- oversized gap stays a hole ------------------------------------------------

func TestClean_OversizedGapLeftUnfilled(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxGapToFill = 0

	in := []series.RawSample{
		raw(t0, 10.0, "A"),
		missing(t0.Add(15*time.Minute), ""),
		raw(t0.Add(30*time.Minute), 12.0, "A"),
	}

	out, rep, err := Clean(in, cfg)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	want := []series.CleanedSample{
		{Timestamp: t0, Value: 10.0, Origin: series.OriginObserved},
		{Timestamp: t0.Add(30 * time.Minute), Value: 12.0, Origin: series.OriginObserved},
	}
	assertSeries(t, out, want)

	if rep.Imputed != 0 {
		t.Errorf("Report.Imputed = %d, want 0", rep.Imputed)
	}
}

func TestClean_MultiPointGapInterpolation(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxGapToFill = 3

	// Three missing grid points between 10.0 and 18.0 → 12, 14, 16.
	in := []series.RawSample{
		raw(t0, 10.0, "A"),
		raw(t0.Add(60*time.Minute), 18.0, "A"),
	}

	out, _, err := Clean(in, cfg)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("len(out) = %d, want 5", len(out))
	}
	for i, wantV := range []float64{10, 12, 14, 16, 18} {
		if !almostEqual(out[i].Value, wantV) {
			t.Errorf("out[%d].Value = %g, want %g", i, out[i].Value, wantV)
		}
	}
	for _, i := range []int{1, 2, 3} {
		if out[i].Origin != series.OriginImputed {
			t.Errorf("out[%d].Origin = %q, want imputed", i, out[i].Origin)
		}
	}
}

// --- rejection ----------------------------------------------------------------

func TestClean_Rejection(t *testing.T) {
	tests := []struct {
		name       string
		sample     series.RawSample
		wantReport func(Report) bool
	}{
		{
			"unaccepted qualifier",
			raw(t0.Add(15*time.Minute), 11.0, series.QualifierEstimated),
			func(r Report) bool { return r.RejectedQualifier == 1 },
		},
		{
			"ice qualifier",
			missing(t0.Add(15*time.Minute), series.QualifierIce),
			func(r Report) bool { return r.RejectedQualifier == 1 },
		},
		{
			"missing value with accepted qualifier",
			missing(t0.Add(15*time.Minute), "P"),
			func(r Report) bool { return r.RejectedMissing == 1 },
		},
		{
			"negative discharge",
			raw(t0.Add(15*time.Minute), -3.0, "A"),
			func(r Report) bool { return r.RejectedBounds == 1 },
		},
		{
			"value above high bound",
			raw(t0.Add(15*time.Minute), 1000.5, "A"),
			func(r Report) bool { return r.RejectedBounds == 1 },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := []series.RawSample{
				raw(t0, 10.0, "A"),
				tc.sample,
				raw(t0.Add(30*time.Minute), 12.0, "A"),
			}
			out, rep, err := Clean(in, defaultConfig())
			if err != nil {
				t.Fatalf("Clean: %v", err)
			}
			// The rejected sample must not appear as observed; its grid slot
			// is interpolated from the valid neighbours instead.
			if len(out) != 3 {
				t.Fatalf("len(out) = %d, want 3", len(out))
			}
			if out[1].Origin != series.OriginImputed {
				t.Errorf("out[1].Origin = %q, want imputed", out[1].Origin)
			}
			if !almostEqual(out[1].Value, 11.0) {
				t.Errorf("out[1].Value = %g, want 11.0 (interpolated, not the rejected value)", out[1].Value)
			}
			if !tc.wantReport(rep) {
				t.Errorf("report counters wrong: %+v", rep)
			}
		})
	}
}

func TestClean_BoundsAreInclusive(t *testing.T) {
	in := []series.RawSample{
		raw(t0, 0.0, "A"),
		raw(t0.Add(15*time.Minute), 1000.0, "A"),
	}
	out, rep, err := Clean(in, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (boundary values are valid)", len(out))
	}
	if rep.RejectedBounds != 0 {
		t.Errorf("RejectedBounds = %d, want 0", rep.RejectedBounds)
	}
}

// --- edge cases ----------------------------------------------------------------

func TestClean_EmptyInput(t *testing.T) {
	out, rep, err := Clean(nil, defaultConfig())
	if err != nil {
		t.Fatalf("Clean(nil): %v", err)
	}
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
	if rep.Accepted != 0 {
		t.Errorf("Accepted = %d, want 0", rep.Accepted)
	}
}

func TestClean_AllRejected(t *testing.T) {
	in := []series.RawSample{
		raw(t0, -5, "A"),
		missing(t0.Add(15*time.Minute), "Ice"),
		raw(t0.Add(30*time.Minute), 7, "x"),
	}
	out, rep, err := Clean(in, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
	if got := rep.Rejected(); got != 3 {
		t.Errorf("Rejected() = %d, want 3", got)
	}
}

func TestClean_SingleSample(t *testing.T) {
	out, _, err := Clean([]series.RawSample{raw(t0, 42.0, "P")}, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Origin != series.OriginObserved || !almostEqual(out[0].Value, 42.0) {
		t.Errorf("out[0] = %+v, want observed 42.0", out[0])
	}
}

// --- deduplication and grid snapping -------------------------------------------

func TestClean_DuplicateTimestampLaterArrivalWins(t *testing.T) {
	// The source re-delivered a revised reading for t0.
	in := []series.RawSample{
		raw(t0, 10.0, "P"),
		raw(t0, 10.5, "A"), // revision
	}
	out, rep, err := Clean(in, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if !almostEqual(out[0].Value, 10.5) {
		t.Errorf("out[0].Value = %g, want 10.5 (revision wins)", out[0].Value)
	}
	if rep.DuplicatesDropped != 1 {
		t.Errorf("DuplicatesDropped = %d, want 1", rep.DuplicatesDropped)
	}
}

func TestClean_SnapsToNearestGridPoint(t *testing.T) {
	// A reading 2 minutes past the grid point snaps back onto it.
	in := []series.RawSample{
		raw(t0.Add(2*time.Minute), 10.0, "A"),
	}
	out, _, err := Clean(in, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if !out[0].Timestamp.Equal(t0) {
		t.Errorf("Timestamp = %v, want %v", out[0].Timestamp, t0)
	}
}

func TestClean_GridConflictCloserSampleWins(t *testing.T) {
	// Two distinct readings snap to the same grid point; the closer one wins.
	in := []series.RawSample{
		raw(t0.Add(6*time.Minute), 99.0, "A"), // 6m from grid point
		raw(t0.Add(2*time.Minute), 10.0, "A"), // 2m from grid point
	}
	out, rep, err := Clean(in, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if !almostEqual(out[0].Value, 10.0) {
		t.Errorf("out[0].Value = %g, want 10.0 (closer to grid)", out[0].Value)
	}
	if rep.GridConflictsDropped != 1 {
		t.Errorf("GridConflictsDropped = %d, want 1", rep.GridConflictsDropped)
	}
}

func TestClean_GridConflictTieKeepsFirst(t *testing.T) {
	in := []series.RawSample{
		raw(t0.Add(-4*time.Minute), 8.0, "A"), // 4m before grid point
		raw(t0.Add(4*time.Minute), 9.0, "A"),  // 4m after — equal distance
	}
	out, _, err := Clean(in, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if !almostEqual(out[0].Value, 8.0) {
		t.Errorf("out[0].Value = %g, want 8.0 (tie keeps first)", out[0].Value)
	}
}

// --- properties -----------------------------------------------------------------

func TestClean_GridContiguityWithinMaxGap(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxGapToFill = 4

	// Irregular input with gaps of 1–3 grid steps, all fillable.
	in := []series.RawSample{
		raw(t0, 5, "A"),
		raw(t0.Add(30*time.Minute), 7, "A"),
		raw(t0.Add(45*time.Minute), 8, "A"),
		raw(t0.Add(105*time.Minute), 6, "A"),
	}
	out, _, err := Clean(in, cfg)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	for i := 1; i < len(out); i++ {
		gap := out[i].Timestamp.Sub(out[i-1].Timestamp)
		if gap != cfg.Interval {
			t.Fatalf("grid not contiguous at index %d: step %v, want %v", i, gap, cfg.Interval)
		}
	}
	if !out[len(out)-1].Timestamp.Equal(t0.Add(105 * time.Minute)) {
		t.Errorf("last timestamp = %v, want %v", out[len(out)-1].Timestamp, t0.Add(105*time.Minute))
	}
}

func TestClean_Idempotent(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxGapToFill = 3

	in := []series.RawSample{
		raw(t0, 10, "A"),
		raw(t0.Add(45*time.Minute), 13, "A"),
		raw(t0.Add(60*time.Minute), 12, "A"),
	}
	first, _, err := Clean(in, cfg)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	// Reinterpret the cleaned output as raw input with an accepted qualifier.
	again := make([]series.RawSample, 0, len(first))
	for _, c := range first {
		again = append(again, raw(c.Timestamp, c.Value, "A"))
	}
	second, _, err := Clean(again, cfg)
	if err != nil {
		t.Fatalf("Clean (second pass): %v", err)
	}

	if len(second) != len(first) {
		t.Fatalf("second pass length %d, want %d", len(second), len(first))
	}
	for i := range first {
		if !second[i].Timestamp.Equal(first[i].Timestamp) || !almostEqual(second[i].Value, first[i].Value) {
			t.Errorf("index %d: second pass %+v, first pass %+v", i, second[i], first[i])
		}
	}
}

func TestClean_OrderIndependent(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxGapToFill = 2

	in := []series.RawSample{
		raw(t0, 10, "A"),
		raw(t0.Add(15*time.Minute), 11, "A"),
		raw(t0.Add(60*time.Minute), 14, "A"),
		raw(t0.Add(75*time.Minute), 13, "A"),
		raw(t0.Add(90*time.Minute), -1, "A"), // rejected either way
	}
	want, _, err := Clean(in, cfg)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]series.RawSample, len(in))
		copy(shuffled, in)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, _, err := Clean(shuffled, cfg)
		if err != nil {
			t.Fatalf("Clean(shuffled): %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("trial %d: length %d, want %d", trial, len(got), len(want))
		}
		for i := range want {
			if !got[i].Timestamp.Equal(want[i].Timestamp) ||
				!almostEqual(got[i].Value, want[i].Value) ||
				got[i].Origin != want[i].Origin {
				t.Errorf("trial %d index %d: got %+v, want %+v", trial, i, got[i], want[i])
			}
		}
	}
}

func TestClean_TimezoneAwareInputNormalizedToUTC(t *testing.T) {
	mst := time.FixedZone("MST", -7*3600)
	in := []series.RawSample{
		raw(t0.In(mst), 10, "A"),
		raw(t0.Add(15*time.Minute), 11, "A"),
	}
	out, _, err := Clean(in, defaultConfig())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if !out[0].Timestamp.Equal(t0) {
		t.Errorf("out[0].Timestamp = %v, want instant %v", out[0].Timestamp, t0)
	}
}

// assertSeries compares two cleaned series point by point.
func assertSeries(t *testing.T, got, want []series.CleanedSample) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("series length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("[%d] Timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
		if !almostEqual(got[i].Value, want[i].Value) {
			t.Errorf("[%d] Value = %g, want %g", i, got[i].Value, want[i].Value)
		}
		if got[i].Origin != want[i].Origin {
			t.Errorf("[%d] Origin = %q, want %q", i, got[i].Origin, want[i].Origin)
		}
	}
}
