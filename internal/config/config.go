// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Station    StationConfig    `mapstructure:"station"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	DB         DBConfig         `mapstructure:"db"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
}

// StationConfig identifies the source website being archived.
type StationConfig struct {
	Name     string `mapstructure:"name"`
	BaseURL  string `mapstructure:"base_url"`
	IndexURL string `mapstructure:"index_url"`
}

// CrawlerConfig governs fetch politeness and timeouts.
type CrawlerConfig struct {
	ThrottleSeconds int    `mapstructure:"throttle_seconds"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	UserAgent       string `mapstructure:"user_agent"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// ServerConfig controls the read-only API server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// NormalizerConfig carries extra shorthand substitutions applied after the
// built-in ones. The built-in table is known to be incomplete, so new cases
// are added here rather than in code.
type NormalizerConfig struct {
	Substitutions map[string]string `mapstructure:"substitutions"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RADIOCRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("station.name", "XRAY.fm")
	v.SetDefault("station.base_url", "https://xray.fm")
	v.SetDefault("station.index_url", "https://xray.fm/shows/all")
	v.SetDefault("crawler.throttle_seconds", 1)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.user_agent", "radiocrate-bot/0.1")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Station.BaseURL == "" {
		return fmt.Errorf("station.base_url is required")
	}
	if c.Crawler.ThrottleSeconds < 0 {
		return fmt.Errorf("crawler.throttle_seconds must be >= 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// MaxConnLifetimeDuration converts the configured lifetime into a duration.
func (c DBConfig) MaxConnLifetimeDuration() time.Duration {
	return time.Duration(c.MaxConnLifetime) * time.Second
}

// Throttle converts the configured throttle into a duration.
func (c Config) Throttle() time.Duration {
	return time.Duration(c.Crawler.ThrottleSeconds) * time.Second
}

// RequestTimeout converts the configured timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}
