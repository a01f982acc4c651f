package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultWorkers        = 4
	DefaultScrapeInterval = 5 * time.Minute
	DefaultRetention      = 30 * 24 * time.Hour
	DefaultDeltaThreshold = 1.0
	DefaultBaseTemp       = 8.0
	DefaultMetric         = "coldchain_temperature_celsius"
	DefaultMinLevel       = "yellow"
	DefaultCooldown       = 6 * time.Hour
)

// Config is the top-level configuration of the evaluator.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// EvaluatorConfig holds the evaluation pipeline settings.
type EvaluatorConfig struct {
	// LibraryPath is the YAML file with reference profiles and lots.
	LibraryPath string `yaml:"library_path"`

	// ReadingsPath is the CSV file of readings used in one-shot mode.
	ReadingsPath string `yaml:"readings_path"`

	// Workers bounds the number of lots evaluated in parallel.
	Workers int `yaml:"workers"`

	CCM     CCMConfig     `yaml:"ccm"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
	Watch   WatchConfig   `yaml:"watch"`
}

// CCMConfig tunes the cumulative-stress monitor.
type CCMConfig struct {
	DeltaThreshold float64 `yaml:"delta_threshold"`
	BaseTemp       float64 `yaml:"base_temp"`
}

// AuditConfig configures the decision audit trail.
type AuditConfig struct {
	// Path is the SQLite database file. Empty disables the audit trail.
	Path string `yaml:"path"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath is where the node-exporter textfile is written.
	// Empty disables the export.
	TextfilePath string `yaml:"textfile_path"`
}

// WatchConfig holds the continuous monitoring settings.
type WatchConfig struct {
	// ScrapeInterval controls how often each source is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// Retention is how long readings are kept in the in-memory window.
	Retention time.Duration `yaml:"retention"`

	// Sources is the list of sensor gateways to scrape.
	Sources []Source `yaml:"sources"`
}

// Source describes one sensor gateway exposing temperatures in the
// Prometheus text format.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Endpoint is the full URL of the gateway's metrics endpoint.
	Endpoint string `yaml:"endpoint"`

	// Metric is the gauge holding temperatures, one series per entity_id.
	Metric string `yaml:"metric"`

	// Auth configures how the evaluator authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a source.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds the bearer token variable name, used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	return lookupEnv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	return lookupEnv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AlertsConfig holds alert thresholds and webhook targets.
type AlertsConfig struct {
	// MinLevel is the lowest alert level that fires: yellow | red.
	MinLevel string `yaml:"min_level"`

	// Cooldown suppresses re-fires for the same lot for this duration.
	Cooldown time.Duration `yaml:"cooldown"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// Level returns MinLevel as an alert level.
func (a AlertsConfig) Level() types.AlertLevel {
	return types.AlertLevel(strings.ToUpper(a.MinLevel))
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	return lookupEnv(w.URLEnv)
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	for i := range cfg.Evaluator.Watch.Sources {
		if cfg.Evaluator.Watch.Sources[i].Metric == "" {
			cfg.Evaluator.Watch.Sources[i].Metric = DefaultMetric
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Evaluator: EvaluatorConfig{
			Workers: DefaultWorkers,
			CCM: CCMConfig{
				DeltaThreshold: DefaultDeltaThreshold,
				BaseTemp:       DefaultBaseTemp,
			},
			Watch: WatchConfig{
				ScrapeInterval: DefaultScrapeInterval,
				Retention:      DefaultRetention,
			},
		},
		Alerts: AlertsConfig{
			MinLevel: DefaultMinLevel,
			Cooldown: DefaultCooldown,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	ev := cfg.Evaluator
	if ev.LibraryPath == "" {
		return fmt.Errorf("evaluator.library_path is required")
	}
	if ev.Workers <= 0 {
		return fmt.Errorf("evaluator.workers must be positive")
	}
	if ev.CCM.DeltaThreshold <= 0 {
		return fmt.Errorf("evaluator.ccm.delta_threshold must be positive")
	}
	if ev.Watch.ScrapeInterval <= 0 {
		return fmt.Errorf("evaluator.watch.scrape_interval must be positive")
	}
	if ev.Watch.Retention <= 0 {
		return fmt.Errorf("evaluator.watch.retention must be positive")
	}

	seen := make(map[string]bool, len(ev.Watch.Sources))
	for i, src := range ev.Watch.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d] %q: duplicate id", i, src.ID)
		}
		seen[src.ID] = true
		if src.Endpoint == "" {
			return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
	}

	switch cfg.Alerts.Level() {
	case types.AlertYellow, types.AlertRed:
	default:
		return fmt.Errorf("alerts.min_level: unknown level %q", cfg.Alerts.MinLevel)
	}
	if cfg.Alerts.Cooldown < 0 {
		return fmt.Errorf("alerts.cooldown must not be negative")
	}
	for i, wh := range cfg.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	return nil
}

// resolvePaths makes relative file paths relative to dir.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{
		&c.Evaluator.LibraryPath,
		&c.Evaluator.ReadingsPath,
		&c.Evaluator.Audit.Path,
		&c.Evaluator.Metrics.TextfilePath,
	} {
		if *p != "" && *p != ":memory:" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
