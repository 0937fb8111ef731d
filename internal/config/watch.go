package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the event burst a single save produces (write +
// chmod, or rename + create on atomic saves) into one reload.
const debounceWindow = 250 * time.Millisecond

// Watch monitors the config file at path and calls onChange with each
// successfully reloaded Config. It runs until ctx is cancelled.
//
// Reloads are deliberately conservative: event bursts are debounced, a
// rewrite with unchanged bytes is ignored, and a file that fails to parse or
// validate is logged and dropped so the previous configuration stays active.
// onChange therefore only ever sees valid, effective changes.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	// The caller already loaded this file at startup; remember its bytes so
	// a touch without changes does not trigger a reload.
	applied, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			// An atomic save replaces the inode; re-add the watch before
			// reading so the next save is still observed.
			_ = watcher.Add(path)

			data, err := os.ReadFile(path)
			if err != nil {
				slog.Error("config: reload read failed", "path", path, "err", err)
				continue
			}
			if bytes.Equal(data, applied) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed — keeping previous config",
					"path", path, "err", err)
				continue
			}

			applied = data
			slog.Info("config: reloaded", "path", path, "stations", len(cfg.Stations))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
