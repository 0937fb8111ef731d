package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hydrowatch/hydrowatch/internal/qc"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	return rec.Body.String()
}

func TestCollectorExposition(t *testing.T) {
	c := NewCollector()
	c.ObserveCycle("oak-creek", 672, qc.Report{
		Accepted:          660,
		RejectedQualifier: 5,
		RejectedMissing:   4,
		RejectedBounds:    3,
		Imputed:           7,
	})
	c.ObserveCycle("oak-creek", 672, qc.Report{Accepted: 672})
	c.ObserveFetchError("verde-river")

	body := scrape(t, c)

	want := []string{
		`hydrowatch_pipeline_cycles_total{station="oak-creek"} 2`,
		`hydrowatch_pipeline_cycles_total{station="verde-river"} 1`,
		`hydrowatch_samples_fetched_total{station="oak-creek"} 1344`,
		`hydrowatch_samples_imputed_total{station="oak-creek"} 7`,
		`hydrowatch_fetch_errors_total{station="verde-river"} 1`,
		`hydrowatch_samples_rejected_total{reason="qualifier",station="oak-creek"} 5`,
		`hydrowatch_samples_rejected_total{reason="missing",station="oak-creek"} 4`,
		`hydrowatch_samples_rejected_total{reason="bounds",station="oak-creek"} 3`,
		`# TYPE hydrowatch_pipeline_cycles_total counter`,
	}
	for _, line := range want {
		if !strings.Contains(body, line) {
			t.Errorf("exposition missing %q\n%s", line, body)
		}
	}
}

func TestCollectorEmpty(t *testing.T) {
	body := scrape(t, NewCollector())
	if strings.Contains(body, "hydrowatch_") {
		t.Errorf("empty collector exposed metrics:\n%s", body)
	}
}

func TestCollectorMethodGuard(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	rec := httptest.NewRecorder()
	NewCollector().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestCollectorContentType(t *testing.T) {
	c := NewCollector()
	c.ObserveCycle("x", 1, qc.Report{Accepted: 1})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)

	ct := rec.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain exposition format", ct)
	}
}
