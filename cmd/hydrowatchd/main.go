package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hydrowatch/hydrowatch/internal/alerts"
	"github.com/hydrowatch/hydrowatch/internal/api"
	"github.com/hydrowatch/hydrowatch/internal/config"
	"github.com/hydrowatch/hydrowatch/internal/qc"
	"github.com/hydrowatch/hydrowatch/internal/stats"
	"github.com/hydrowatch/hydrowatch/internal/store"
	"github.com/hydrowatch/hydrowatch/internal/telemetry"
	"github.com/hydrowatch/hydrowatch/internal/waterdata"
	"github.com/hydrowatch/hydrowatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("hydrowatchd starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"stations", len(cfg.Stations),
		"http_port", cfg.Server.HTTPPort,
		"fetch_interval", cfg.Fetch.Interval,
		"status_ttl", cfg.Server.StatusTTL,
	)
	if len(cfg.Stations) == 0 {
		slog.Warn("no stations configured — daemon will idle")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The poll loop reads the live config each cycle; hot-reload swaps it in.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	// Status store with background TTL eviction.
	st := store.New(cfg.Server.StatusTTL)
	go st.Run(ctx)

	// Alerts engine — evaluates rules on every completed pipeline cycle.
	alertEngine := alerts.New(cfg.Alerts)

	// Pipeline counters exposed on /metrics.
	collector := telemetry.NewCollector()

	client, err := waterdata.New(cfg.Fetch)
	if err != nil {
		slog.Error("failed to build water data client", "err", err)
		os.Exit(1)
	}

	// Hot-reload: station set, QC thresholds, fetch window and poll interval
	// take effect on the next cycle. The HTTP port, fetch auth and alert
	// rules are fixed at startup.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if updated.Server.HTTPPort != cfg.Server.HTTPPort {
				slog.Warn("server.http_port changed — restart required to apply",
					"port", updated.Server.HTTPPort)
			}
			current.Store(updated)
			slog.Info("config applied",
				"stations", len(updated.Stations),
				"fetch_interval", updated.Fetch.Interval,
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// WebSocket hub — broadcasts the station snapshot to dashboard clients.
	hub := ws.New(st, cfg.Server.BroadcastInterval)
	go hub.Run(ctx)

	// Combined HTTP server: REST API, WebSocket hub and metrics on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, alertEngine))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", collector)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	// Poll loop: fetch, clean and summarize every station each interval.
	go func() {
		pollAll(ctx, current.Load(), client, st, alertEngine, collector, hub)

		interval := cfg.Fetch.Interval
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c := current.Load()
				if c.Fetch.Interval != interval {
					interval = c.Fetch.Interval
					ticker.Reset(interval)
					slog.Info("poll interval updated", "interval", interval)
				}
				pollAll(ctx, c, client, st, alertEngine, collector, hub)
			}
		}
	}()

	<-ctx.Done()
	slog.Info("hydrowatchd shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

// pollAll runs one pipeline cycle for every configured station.
func pollAll(ctx context.Context, cfg *config.Config, client waterdata.Fetcher,
	st *store.Store, alertEngine *alerts.Engine, collector *telemetry.Collector,
	hub *ws.Hub) {

	qcCfg := qc.Config{
		AcceptedQualifiers: cfg.QC.AcceptedQualifiers,
		MaxGapToFill:       cfg.QC.MaxGapToFill,
		Interval:           cfg.QC.Interval,
		Bounds:             qc.Bounds{Low: cfg.QC.Bounds.Low, High: cfg.QC.Bounds.High},
	}

	for _, station := range cfg.Stations {
		if ctx.Err() != nil {
			return
		}
		status := pollStation(ctx, cfg, qcCfg, client, station, collector)
		st.Put(status)
		alertEngine.Evaluate(status)
		hub.Publish(station.ID)
	}
}

// pollStation runs fetch → clean → summarize for one station and maps the
// outcome onto a StationStatus.
func pollStation(ctx context.Context, cfg *config.Config, qcCfg qc.Config,
	client waterdata.Fetcher, station config.Station, collector *telemetry.Collector) *store.StationStatus {

	status := &store.StationStatus{
		StationID: station.ID,
		Name:      station.Name,
		Site:      station.Site,
		FetchedAt: time.Now(),
	}

	end := time.Now()
	start := end.Add(-cfg.Fetch.Window)

	raw, err := client.Fetch(ctx, station.Site, station.Parameter, start, end)
	if err != nil {
		slog.Warn("fetch failed", "station", station.ID, "site", station.Site, "err", err)
		collector.ObserveFetchError(station.ID)
		status.State = store.StateFetchFailed
		status.Err = err.Error()
		return status
	}

	cleaned, rep, err := qc.Clean(raw, qcCfg)
	if err != nil {
		// Only an invalid configuration reaches here; it cannot self-heal.
		slog.Error("quality control rejected configuration", "station", station.ID, "err", err)
		collector.ObserveFetchError(station.ID)
		status.State = store.StateFetchFailed
		status.Err = err.Error()
		return status
	}
	collector.ObserveCycle(station.ID, len(raw), rep)

	status.Series = cleaned
	status.Report = rep

	sum, err := stats.Summarize(cleaned)
	status.Summary = sum
	if err != nil {
		if !errors.Is(err, stats.ErrInsufficientData) {
			slog.Warn("summarize failed", "station", station.ID, "err", err)
		}
		status.State = store.StateInsufficientData
		return status
	}

	status.State = store.StateOK
	slog.Debug("station updated",
		"station", station.ID,
		"observed", sum.ObservedCount,
		"imputed", sum.ImputedCount,
		"rejected", rep.Rejected(),
	)
	return status
}
