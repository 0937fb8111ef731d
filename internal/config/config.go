package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultBaseURL           = "https://waterservices.usgs.gov/nwis/iv/"
	DefaultParameter         = "00060" // streamflow, cubic feet per second
	DefaultFetchTimeout      = 15 * time.Second
	DefaultFetchInterval     = 10 * time.Minute
	DefaultFetchWindow       = 7 * 24 * time.Hour
	DefaultGridInterval      = 15 * time.Minute
	DefaultMaxGapToFill      = 4
	DefaultHighBound         = 1_000_000
	DefaultHTTPPort          = 8080
	DefaultStatusTTL         = 30 * time.Minute
	DefaultBroadcastInterval = 5 * time.Second
)

// Config is the top-level configuration for both the one-shot CLI and the
// dashboard daemon. Fields map 1:1 to config.example.yaml.
type Config struct {
	Fetch    FetchConfig  `yaml:"fetch"`
	QC       QCConfig     `yaml:"qc"`
	Stations []Station    `yaml:"stations"`
	Server   ServerConfig `yaml:"server"`
	Alerts   AlertsConfig `yaml:"alerts"`
}

// FetchConfig holds the water data service settings.
type FetchConfig struct {
	// BaseURL is the instantaneous-values endpoint of the water data service.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single fetch request.
	Timeout time.Duration `yaml:"timeout"`

	// Interval controls how often the daemon polls each station.
	Interval time.Duration `yaml:"interval"`

	// Window is how much history each poll retrieves.
	Window time.Duration `yaml:"window"`

	// Auth configures how requests authenticate to the service.
	Auth AuthConfig `yaml:"auth"`
}

// QCConfig holds the quality-control filter settings.
type QCConfig struct {
	// AcceptedQualifiers is the set of source quality codes treated as valid.
	AcceptedQualifiers []string `yaml:"accepted_qualifiers"`

	// MaxGapToFill is the longest run of missing grid points eligible for
	// interpolation, in grid steps.
	MaxGapToFill int `yaml:"max_gap_to_fill"`

	// Interval is the nominal sample spacing of the source series.
	Interval time.Duration `yaml:"interval"`

	// Bounds is the inclusive plausibility range for a reading.
	Bounds BoundsConfig `yaml:"bounds"`
}

// BoundsConfig is the inclusive plausibility range for a reading.
type BoundsConfig struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Station describes one monitored gauging station.
type Station struct {
	// ID is a unique, human-readable identifier for this station.
	ID string `yaml:"id"`

	// Site is the source's site number (e.g. "09504500").
	Site string `yaml:"site"`

	// Name is the display name used in charts and API responses.
	Name string `yaml:"name"`

	// Parameter is the source parameter code; defaults to streamflow.
	Parameter string `yaml:"parameter"`
}

// AuthConfig specifies how fetch requests authenticate to the service.
type AuthConfig struct {
	// Mode is one of: apikey | basic | none.
	Mode string `yaml:"mode"`

	// API key fields — used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Basic auth fields — used when Mode == "basic".
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// ServerConfig holds the dashboard daemon settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket hub and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// StatusTTL is how long a station status stays live without an update.
	StatusTTL time.Duration `yaml:"status_ttl"`

	// BroadcastInterval controls how often the WebSocket hub pushes the
	// station snapshot to connected dashboard clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// AlertsConfig holds all alerting rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines a threshold-based alert condition on station statistics.
type AlertRule struct {
	// Name is the human-readable alert identifier.
	Name string `yaml:"name"`

	// Condition is an expression like "max > 5000" or "imputed_pct > 20".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. The one-shot
// CLI uses it directly when no config file is given.
func Defaults() *Config {
	return &Config{
		Fetch: FetchConfig{
			BaseURL:  DefaultBaseURL,
			Timeout:  DefaultFetchTimeout,
			Interval: DefaultFetchInterval,
			Window:   DefaultFetchWindow,
		},
		QC: QCConfig{
			AcceptedQualifiers: []string{"A", "P"},
			MaxGapToFill:       DefaultMaxGapToFill,
			Interval:           DefaultGridInterval,
			Bounds:             BoundsConfig{Low: 0, High: DefaultHighBound},
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			StatusTTL:         DefaultStatusTTL,
			BroadcastInterval: DefaultBroadcastInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Fetch.BaseURL == "" {
		return fmt.Errorf("fetch.base_url is required")
	}
	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if cfg.Fetch.Interval <= 0 {
		return fmt.Errorf("fetch.interval must be positive")
	}
	if cfg.Fetch.Window <= 0 {
		return fmt.Errorf("fetch.window must be positive")
	}
	switch cfg.Fetch.Auth.Mode {
	case "apikey", "basic", "none", "":
	default:
		return fmt.Errorf("fetch.auth: unknown mode %q", cfg.Fetch.Auth.Mode)
	}

	if len(cfg.QC.AcceptedQualifiers) == 0 {
		return fmt.Errorf("qc.accepted_qualifiers must not be empty")
	}
	if cfg.QC.MaxGapToFill < 0 {
		return fmt.Errorf("qc.max_gap_to_fill must be >= 0")
	}
	if cfg.QC.Interval <= 0 {
		return fmt.Errorf("qc.interval must be positive")
	}
	if cfg.QC.Bounds.Low > cfg.QC.Bounds.High {
		return fmt.Errorf("qc.bounds: low %g > high %g", cfg.QC.Bounds.Low, cfg.QC.Bounds.High)
	}

	seen := make(map[string]bool, len(cfg.Stations))
	for i, st := range cfg.Stations {
		if st.ID == "" {
			return fmt.Errorf("stations[%d]: id is required", i)
		}
		if st.Site == "" {
			return fmt.Errorf("stations[%d] %q: site is required", i, st.ID)
		}
		if seen[st.ID] {
			return fmt.Errorf("stations[%d]: duplicate id %q", i, st.ID)
		}
		seen[st.ID] = true
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", cfg.Server.HTTPPort)
	}

	for i, rule := range cfg.Alerts.Rules {
		if rule.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if rule.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] %q: condition is required", i, rule.Name)
		}
	}
	return nil
}
