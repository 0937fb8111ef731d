// Package config loads and watches the hydrowatch configuration file
// (config.yaml).
//
// Top-level types:
//   - Config{Fetch, QC, Stations, Server, Alerts} — full config tree parsed
//     from YAML
//   - FetchConfig — base_url, timeout, interval, window, auth
//   - QCConfig — accepted_qualifiers, max_gap_to_fill, interval, bounds;
//     mirrors the quality-control filter's settings 1:1
//   - Station — id, site, name, parameter
//   - ServerConfig, AlertsConfig — daemon-side settings
//
// Load(path) reads the YAML file, applies defaults (USGS base URL, 15s fetch
// timeout, 10m poll interval, 7d window, 15m grid, port 8080), then
// validates required fields and structural constraints.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create
// pattern used by atomic-save editors by re-adding the watch after the event.
package config
