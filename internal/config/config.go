package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/teemow/mvgmail/internal/google"
	"github.com/teemow/mvgmail/internal/instrumentation"
	"github.com/teemow/mvgmail/internal/storage"
)

// EnvPrefix prefixes every environment override, e.g. MVGMAIL_STORE_BACKEND.
const EnvPrefix = "MVGMAIL"

// Storage backends.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

var backends = []string{BackendFile, BackendKeyring, BackendSQLite, BackendMemory}

// StoreConfig selects where OAuth tokens are persisted.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the directory (file, keyring fallback) or database file (sqlite).
	Path string `mapstructure:"path" yaml:"path"`

	// EncryptionKey is a base64 encoded 32-byte AES key. Empty disables
	// encryption at rest.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
}

// OAuthConfig controls the interactive authorization flow.
type OAuthConfig struct {
	ClientSecret string        `mapstructure:"client_secret" yaml:"client_secret"`
	PopupTimeout time.Duration `mapstructure:"popup_timeout" yaml:"popup_timeout"`
	LoopbackAddr string        `mapstructure:"loopback_addr" yaml:"loopback_addr"`
}

// EndpointsConfig overrides service URLs, mostly for testing.
type EndpointsConfig struct {
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`
	LicenseURL string `mapstructure:"license_url" yaml:"license_url"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// TelemetryConfig selects the OpenTelemetry exporters. The standard OTEL_*
// variables are honoured next to the MVGMAIL_TELEMETRY_* ones.
type TelemetryConfig struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName     string  `mapstructure:"service_name" yaml:"service_name"`
	MetricsExporter string  `mapstructure:"metrics_exporter" yaml:"metrics_exporter"`
	TracingExporter string  `mapstructure:"tracing_exporter" yaml:"tracing_exporter"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	SamplingRate    float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`
}

// Config is the top-level mvgmail configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	OAuth     OAuthConfig     `mapstructure:"oauth" yaml:"oauth"`
	Endpoints EndpointsConfig `mapstructure:"endpoints" yaml:"endpoints"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Debug     bool            `mapstructure:"debug" yaml:"debug"`
}

// DefaultDir returns ~/.config/mvgmail or the platform equivalent.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "mvgmail")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "")
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.popup_timeout", google.DefaultPopupTimeout)
	v.SetDefault("oauth.loopback_addr", "127.0.0.1:8085")
	v.SetDefault("endpoints.api_base_url", "")
	v.SetDefault("endpoints.license_url", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("debug", false)

	tel := instrumentation.DefaultConfig()
	v.SetDefault("telemetry.enabled", tel.Enabled)
	v.SetDefault("telemetry.service_name", tel.ServiceName)
	v.SetDefault("telemetry.metrics_exporter", tel.MetricsExporter)
	v.SetDefault("telemetry.tracing_exporter", tel.TracingExporter)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.sampling_rate", tel.TraceSamplingRate)
}

// otelEnv maps telemetry keys to the standard OpenTelemetry variables.
var otelEnv = map[string]string{
	"telemetry.service_name":  "OTEL_SERVICE_NAME",
	"telemetry.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
	"telemetry.otlp_insecure": "OTEL_EXPORTER_OTLP_INSECURE",
	"telemetry.sampling_rate": "OTEL_TRACES_SAMPLER_ARG",
}

func bindEnv(v *viper.Viper) error {
	replacer := strings.NewReplacer(".", "_")
	for key, name := range otelEnv {
		own := EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))
		if err := v.BindEnv(key, own, name); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the configuration. path names an explicit config file; when it
// is empty mvgmail.yaml is looked up in the working directory and DefaultDir,
// and a missing file is not an error. A .env file in the working directory
// is loaded first so its variables take part in the env overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mvgmail")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the commands cannot run with.
func (c *Config) Validate() error {
	if !slices.Contains(backends, c.Store.Backend) {
		return fmt.Errorf("unknown store backend %q, want one of %s", c.Store.Backend, strings.Join(backends, ", "))
	}
	if _, err := storage.KeyFromBase64(c.Store.EncryptionKey); err != nil {
		return fmt.Errorf("store.encryption_key: %w", err)
	}
	if c.OAuth.PopupTimeout <= 0 {
		return fmt.Errorf("oauth.popup_timeout must be positive, got %s", c.OAuth.PopupTimeout)
	}
	tel := c.Instrumentation("")
	if err := tel.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

// Instrumentation returns the telemetry settings. Serving metrics implies
// enabling instrumentation.
func (c *Config) Instrumentation(version string) instrumentation.Config {
	return instrumentation.Config{
		ServiceName:       cmp.Or(c.Telemetry.ServiceName, instrumentation.DefaultServiceName),
		ServiceVersion:    cmp.Or(version, "unknown"),
		Enabled:           c.Telemetry.Enabled || c.Metrics.Addr != "",
		MetricsExporter:   c.Telemetry.MetricsExporter,
		TracingExporter:   c.Telemetry.TracingExporter,
		OTLPEndpoint:      c.Telemetry.OTLPEndpoint,
		OTLPInsecure:      c.Telemetry.OTLPInsecure,
		TraceSamplingRate: c.Telemetry.SamplingRate,
	}
}

// Google returns the Google endpoints with the configured overrides applied.
func (c *Config) Google() google.Config {
	g := google.DefaultConfig()
	g.ClientSecret = c.OAuth.ClientSecret
	g.PopupTimeout = c.OAuth.PopupTimeout
	if c.Endpoints.APIBaseURL != "" {
		g.APIBaseURL = c.Endpoints.APIBaseURL
	}
	if c.Endpoints.LicenseURL != "" {
		g.LicenseURL = c.Endpoints.LicenseURL
	}
	return g
}
