package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/hydrowatch/hydrowatch/internal/config"
	"github.com/hydrowatch/hydrowatch/internal/qc"
	"github.com/hydrowatch/hydrowatch/internal/render"
	"github.com/hydrowatch/hydrowatch/internal/stats"
	"github.com/hydrowatch/hydrowatch/internal/waterdata"
)

// hydrograph is the one-shot pipeline: fetch one site's recent discharge,
// clean it, print the summary statistics and write a hydrograph PNG.
func main() {
	configPath := flag.String("config", "", "optional path to config file; defaults apply when empty")
	site := flag.String("site", "09504500", "site number to fetch")
	name := flag.String("name", "Oak Creek Near Cornville, AZ", "display name used as chart title")
	parameter := flag.String("parameter", "", "parameter code; empty uses the config default")
	period := flag.Duration("period", 0, "history window to fetch; 0 uses the config default")
	out := flag.String("out", "hydrograph.png", "output PNG path")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	window := cfg.Fetch.Window
	if *period > 0 {
		window = *period
	}

	client, err := waterdata.New(cfg.Fetch)
	if err != nil {
		slog.Error("failed to build water data client", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Fetch.Timeout)
	defer cancel()

	end := time.Now()
	raw, err := client.Fetch(ctx, *site, *parameter, end.Add(-window), end)
	if err != nil {
		slog.Error("fetch failed", "site", *site, "err", err)
		os.Exit(1)
	}
	slog.Info("fetched raw readings", "site", *site, "samples", len(raw))

	cleaned, rep, err := qc.Clean(raw, qc.Config{
		AcceptedQualifiers: cfg.QC.AcceptedQualifiers,
		MaxGapToFill:       cfg.QC.MaxGapToFill,
		Interval:           cfg.QC.Interval,
		Bounds:             qc.Bounds{Low: cfg.QC.Bounds.Low, High: cfg.QC.Bounds.High},
	})
	if err != nil {
		slog.Error("quality control configuration invalid", "err", err)
		os.Exit(1)
	}
	slog.Info("quality control complete",
		"accepted", rep.Accepted,
		"rejected", rep.Rejected(),
		"duplicates", rep.DuplicatesDropped,
		"imputed", rep.Imputed,
	)

	sum, err := stats.Summarize(cleaned)
	if err != nil {
		if errors.Is(err, stats.ErrInsufficientData) {
			slog.Error("no observed samples survived cleaning — nothing to chart", "site", *site)
		} else {
			slog.Error("summarize failed", "err", err)
		}
		os.Exit(1)
	}

	latest, _ := stats.LatestObserved(cleaned)
	slog.Info("discharge summary",
		"site", *site,
		"current", latest.Value,
		"mean", sum.Mean,
		"max", sum.Max,
		"max_at", sum.MaxAt,
		"min", sum.Min,
		"min_at", sum.MinAt,
		"observed", sum.ObservedCount,
		"imputed", sum.ImputedCount,
	)

	f, err := os.Create(*out)
	if err != nil {
		slog.Error("failed to create output file", "path", *out, "err", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := render.Hydrograph(f, *name, cleaned, sum); err != nil {
		slog.Error("failed to render hydrograph", "err", err)
		os.Exit(1)
	}
	slog.Info("hydrograph written", "path", *out)
}
