package telemetry

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/hydrowatch/hydrowatch/internal/qc"
)

// Rejection reason labels attached to hydrowatch_samples_rejected_total.
const (
	ReasonQualifier = "qualifier"
	ReasonMissing   = "missing"
	ReasonBounds    = "bounds"
)

// Collector accumulates per-station pipeline counters and serves them as
// Prometheus exposition text. Safe for concurrent use.
type Collector struct {
	mu          sync.Mutex
	fetched     map[string]float64            // station -> samples fetched
	rejected    map[string]map[string]float64 // station -> reason -> count
	imputed     map[string]float64            // station -> samples imputed
	fetchErrors map[string]float64            // station -> failed fetches
	cycles      map[string]float64            // station -> pipeline cycles
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		fetched:     make(map[string]float64),
		rejected:    make(map[string]map[string]float64),
		imputed:     make(map[string]float64),
		fetchErrors: make(map[string]float64),
		cycles:      make(map[string]float64),
	}
}

// ObserveCycle records the outcome of one completed pipeline cycle for a
// station: how many raw samples were fetched and the quality-control report.
func (c *Collector) ObserveCycle(station string, fetched int, rep qc.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cycles[station]++
	c.fetched[station] += float64(fetched)
	c.imputed[station] += float64(rep.Imputed)

	r := c.rejected[station]
	if r == nil {
		r = make(map[string]float64)
		c.rejected[station] = r
	}
	r[ReasonQualifier] += float64(rep.RejectedQualifier)
	r[ReasonMissing] += float64(rep.RejectedMissing)
	r[ReasonBounds] += float64(rep.RejectedBounds)
}

// ObserveFetchError records a cycle that failed before quality control ran.
func (c *Collector) ObserveFetchError(station string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cycles[station]++
	c.fetchErrors[station]++
}

// ServeHTTP renders all counters in Prometheus text exposition format.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c.mu.Lock()
	families := []*dto.MetricFamily{
		counterFamily("hydrowatch_pipeline_cycles_total",
			"Completed pipeline cycles per station.", c.cycles),
		counterFamily("hydrowatch_samples_fetched_total",
			"Raw samples fetched from the water data service.", c.fetched),
		counterFamily("hydrowatch_samples_imputed_total",
			"Grid points filled by interpolation.", c.imputed),
		counterFamily("hydrowatch_fetch_errors_total",
			"Fetch attempts that failed.", c.fetchErrors),
		rejectedFamily(c.rejected),
	}
	c.mu.Unlock()

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, fam := range families {
		if len(fam.Metric) == 0 {
			continue
		}
		if err := enc.Encode(fam); err != nil {
			slog.Error("telemetry: encode metric family failed",
				"family", fam.GetName(), "err", err)
			return
		}
	}
}

// counterFamily builds a single-label counter family from a station -> value
// map, with stations emitted in sorted order.
func counterFamily(name, help string, values map[string]float64) *dto.MetricFamily {
	fam := &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, station := range sortedKeys(values) {
		fam.Metric = append(fam.Metric, &dto.Metric{
			Label: []*dto.LabelPair{
				{Name: strPtr("station"), Value: strPtr(station)},
			},
			Counter: &dto.Counter{Value: f64Ptr(values[station])},
		})
	}
	return fam
}

func rejectedFamily(rejected map[string]map[string]float64) *dto.MetricFamily {
	fam := &dto.MetricFamily{
		Name: strPtr("hydrowatch_samples_rejected_total"),
		Help: strPtr("Raw samples rejected during quality control, by reason."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, station := range sortedKeys(rejected) {
		reasons := rejected[station]
		for _, reason := range sortedKeys(reasons) {
			fam.Metric = append(fam.Metric, &dto.Metric{
				Label: []*dto.LabelPair{
					{Name: strPtr("reason"), Value: strPtr(reason)},
					{Name: strPtr("station"), Value: strPtr(station)},
				},
				Counter: &dto.Counter{Value: f64Ptr(reasons[reason])},
			})
		}
	}
	return fam
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
