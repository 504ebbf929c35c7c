package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const backendURLEnvVar = "FITDASH_BACKEND_URL"

type Config struct {
	Environment string `toml:"-"`
	Host        string
	Port        int
	MetricsPort int `toml:"metrics_port"`
	// aggregation backend
	BackendURL string `toml:"backend_url"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// redis
	RedisEnabled bool   `toml:"redis_enabled"`
	RedisHost    string `toml:"redis_host"`
	RedisPort    string `toml:"redis_port"`
	// sessions
	SessionTTL           Duration `toml:"session_ttl"`
	SessionCheckInterval Duration `toml:"session_check_interval"`
	// http
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	AllowedOrigins     []string `toml:"allowed_origins"`
}

// Duration reads TOML strings like "24h" or "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	cfg.Environment = strings.ToLower(env)

	return cfg, nil
}

// Load reads the config of env from the TOML file at path. The backend URL
// can be overridden with FITDASH_BACKEND_URL.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if backendURL := os.Getenv(backendURLEnvVar); backendURL != "" {
		cfg.BackendURL = backendURL
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", env, err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = 24 * time.Hour
	}
	if c.SessionCheckInterval.Duration == 0 {
		c.SessionCheckInterval.Duration = time.Minute
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 30
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsPort == c.Port {
		return errors.New("metrics port must differ from the server port")
	}

	if c.BackendURL == "" {
		return fmt.Errorf("backend url not set, use backend_url or %s", backendURLEnvVar)
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("backend url must be an absolute http(s) url: %s", c.BackendURL)
	}

	if c.RedisEnabled && (c.RedisHost == "" || c.RedisPort == "") {
		return errors.New("redis enabled but host or port not set")
	}

	return nil
}
