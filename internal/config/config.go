// Package config loads curatord settings from .curator.yaml, CURATOR_* env
// vars and CLI flags through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CURATOR_CATALOG_URL.
const EnvPrefix = "CURATOR"

// CurationConfig locates the curation documents.
type CurationConfig struct {
	Paths []string `mapstructure:"path"`
	Watch bool     `mapstructure:"watch"`
}

// CatalogConfig configures the remote catalog client.
type CatalogConfig struct {
	URL       string  `mapstructure:"url"`
	Timeout   int     `mapstructure:"timeout"`
	RateLimit float64 `mapstructure:"rate_limit"`
	AuthToken string  `mapstructure:"auth_token"`
}

// InstallConfig configures the HTTP installer.
type InstallConfig struct {
	Dir     string `mapstructure:"dir"`
	Timeout int    `mapstructure:"timeout"`
}

// RegistryConfig locates the installed-entries registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// MonitorConfig configures process monitoring and event correlation.
type MonitorConfig struct {
	ProcRoot       string        `mapstructure:"proc_root"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	EventRateLimit float64       `mapstructure:"event_rate_limit"`
}

// APIConfig configures the status API server.
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// WebhookConfig configures the optional outcome webhook.
type WebhookConfig struct {
	URL       string `mapstructure:"url"`
	Timeout   int    `mapstructure:"timeout"`
	AuthToken string `mapstructure:"auth_token"`
	ReportOn  string `mapstructure:"report_on"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Config holds all runtime configuration for curatord.
type Config struct {
	Curation CurationConfig `mapstructure:"curation"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Install  InstallConfig  `mapstructure:"install"`
	Registry RegistryConfig `mapstructure:"registry"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	API      APIConfig      `mapstructure:"api"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Log      LogConfig      `mapstructure:"log"`
}

// SetDefaults registers the built-in default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("curation.path", []string{"curation.json"})
	v.SetDefault("curation.watch", true)
	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.timeout", 10)
	v.SetDefault("catalog.rate_limit", 5.0)
	v.SetDefault("catalog.auth_token", "")
	v.SetDefault("install.dir", "content")
	v.SetDefault("install.timeout", 1800)
	v.SetDefault("registry.path", "installed.json")
	v.SetDefault("monitor.proc_root", "/proc")
	v.SetDefault("monitor.poll_interval", time.Second)
	v.SetDefault("monitor.event_rate_limit", 100.0)
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", 10)
	v.SetDefault("webhook.auth_token", "")
	v.SetDefault("webhook.report_on", "all")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// BindEnv makes every key readable from CURATOR_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the global viper instance, applying built-in
// defaults for any values not set by config file, environment, or flags.
func Load() (Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	BindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.Curation.Paths) == 0 {
		errs = append(errs, errors.New("curation.path: at least one path is required"))
	}
	if c.Catalog.URL == "" {
		errs = append(errs, errors.New("catalog.url is required"))
	}
	if c.Catalog.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("catalog.rate_limit must not be negative, got %v", c.Catalog.RateLimit))
	}
	if c.Install.Dir == "" {
		errs = append(errs, errors.New("install.dir is required"))
	}
	if c.Monitor.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.poll_interval must be positive, got %s", c.Monitor.PollInterval))
	}
	switch c.Webhook.ReportOn {
	case "", "all", "failures":
	default:
		errs = append(errs, fmt.Errorf("webhook.report_on must be \"all\" or \"failures\", got %q", c.Webhook.ReportOn))
	}
	return errors.Join(errs...)
}
