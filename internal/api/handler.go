package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hydrowatch/hydrowatch/internal/alerts"
	"github.com/hydrowatch/hydrowatch/internal/render"
	"github.com/hydrowatch/hydrowatch/internal/stats"
	"github.com/hydrowatch/hydrowatch/internal/store"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads station state from the store and returns JSON responses.
type Handler struct {
	store       *store.Store
	alertEngine *alerts.Engine
	mux         *http.ServeMux
}

// New creates a Handler wired to the given store and registers all routes.
// alertEngine may be nil; /api/v1/alerts then always returns an empty list.
func New(st *store.Store, alertEngine *alerts.Engine) http.Handler {
	h := &Handler{store: st, alertEngine: alertEngine, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/stations", h.listStations)
	h.mux.HandleFunc("/api/v1/stations/", h.getStation) // subtree — extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — pipeline state counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{StationCount: len(entries)}

	for _, e := range entries {
		switch e.Status.State {
		case store.StateOK:
			resp.OKCount++
		case store.StateInsufficientData:
			resp.InsufficientCount++
		case store.StateFetchFailed:
			resp.FetchFailedCount++
		}
	}

	switch {
	case len(entries) == 0:
		resp.State = "unknown"
	case resp.OKCount == len(entries):
		resp.State = "ok"
	case resp.OKCount == 0:
		resp.State = "failing"
	default:
		resp.State = "degraded"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listStations returns GET /api/v1/stations — all live stations without points.
func (h *Handler) listStations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	out := make([]StationResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, StationFromEntry(e, false))
	}
	jsonResp(w, http.StatusOK, out)
}

// getStation serves the /api/v1/stations/{id} subtree: the station detail
// (with points) and its rendered hydrograph.
func (h *Handler) getStation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/stations/")
	if id == "" {
		// Redirect bare /api/v1/stations/ to the list handler.
		h.listStations(w, r)
		return
	}

	id, wantChart := strings.CutSuffix(id, "/hydrograph.png")
	id = strings.TrimSuffix(id, "/")

	e, ok := h.store.Get(id)
	if !ok || time.Since(e.UpdatedAt) > h.store.TTL() {
		jsonErr(w, http.StatusNotFound, "station not found")
		return
	}

	if wantChart {
		h.hydrograph(w, e)
		return
	}
	jsonResp(w, http.StatusOK, StationFromEntry(e, true))
}

// hydrograph renders the station's chart on demand.
func (h *Handler) hydrograph(w http.ResponseWriter, e *store.Entry) {
	st := e.Status
	if len(st.Series) < 2 {
		jsonErr(w, http.StatusUnprocessableEntity, "not enough data to render a hydrograph")
		return
	}

	title := st.Name
	if title == "" {
		title = st.StationID
	}

	w.Header().Set("Content-Type", "image/png")
	if err := render.Hydrograph(w, title, st.Series, st.Summary); err != nil {
		// Headers are already written; log and give up on this response.
		slog.Error("api: hydrograph render failed", "station", st.StationID, "err", err)
	}
}

// alerts returns GET /api/v1/alerts — firing and recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alertEngine == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alertEngine.Active())
}

// snapshot returns GET /api/v1/snapshot — full JSON dump of all live stations.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot assembles the full station snapshot. Shared with the
// WebSocket hub, which broadcasts the same payload.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	entries := st.List()
	stations := make([]StationResponse, 0, len(entries))
	for _, e := range entries {
		stations = append(stations, StationFromEntry(e, false))
	}
	return SnapshotResponse{
		Stations:    stations,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// StationFromEntry maps a store.Entry to its JSON representation. The
// WebSocket hub uses it to build per-station update frames.
func StationFromEntry(e *store.Entry, includePoints bool) StationResponse {
	st := e.Status
	total := st.Summary.ObservedCount + st.Summary.ImputedCount

	resp := StationResponse{
		StationID:     st.StationID,
		Name:          st.Name,
		Site:          st.Site,
		State:         st.State,
		ObservedCount: st.Summary.ObservedCount,
		ImputedCount:  st.Summary.ImputedCount,
		RejectedCount: st.Report.Rejected(),
		Error:         st.Err,
		LastSeen:      e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if total > 0 {
		resp.ImputedPct = float64(st.Summary.ImputedCount) / float64(total) * 100
	}

	if st.State == store.StateOK {
		resp.Mean = st.Summary.Mean
		resp.Max = st.Summary.Max
		resp.Min = st.Summary.Min
		resp.MaxAt = st.Summary.MaxAt.UTC().Format(time.RFC3339)
		resp.MinAt = st.Summary.MinAt.UTC().Format(time.RFC3339)
	}

	if latest, ok := stats.LatestObserved(st.Series); ok {
		v := latest.Value
		resp.Latest = &v
		resp.LatestAt = latest.Timestamp.UTC().Format(time.RFC3339)
	}

	if includePoints {
		resp.Points = make([]PointResponse, 0, len(st.Series))
		for _, c := range st.Series {
			resp.Points = append(resp.Points, PointResponse{
				Timestamp: c.Timestamp.UTC().Format(time.RFC3339),
				Value:     c.Value,
				Origin:    string(c.Origin),
			})
		}
	}
	return resp
}
