package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Meta    MetaConfig    `mapstructure:"meta"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Logging LoggingConfig `mapstructure:"logging"`
	Redis   RedisConfig   `mapstructure:"redis"`
	NATS    NATSConfig    `mapstructure:"nats"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetaConfig addresses the Graph API Conversions endpoint.
type MetaConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIVersion    string        `mapstructure:"api_version"`
	PixelID       string        `mapstructure:"pixel_id"`
	AccessToken   string        `mapstructure:"access_token"`
	TestEventCode string        `mapstructure:"test_event_code"`
	ActionSource  string        `mapstructure:"action_source"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Configured reports whether both credentials are set.
func (m MetaConfig) Configured() bool {
	return m.PixelID != "" && m.AccessToken != ""
}

type RelayConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
	DefaultCountry  string `mapstructure:"default_country"`
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	InstanceID    string        `mapstructure:"instance_id"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
}

// Variables accepted without the RELAY_ prefix, for deployments that set
// the conventional names.
var plainEnv = map[string]string{
	"server.port":          "PORT",
	"meta.pixel_id":        "META_PIXEL_ID",
	"meta.access_token":    "META_ACCESS_TOKEN",
	"meta.test_event_code": "META_TEST_EVENT_CODE",
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("meta.base_url", "https://graph.facebook.com")
	v.SetDefault("meta.api_version", "v19.0")
	v.SetDefault("meta.pixel_id", "")
	v.SetDefault("meta.access_token", "")
	v.SetDefault("meta.test_event_code", "")
	v.SetDefault("meta.action_source", "website")
	v.SetDefault("meta.timeout", "30s")
	v.SetDefault("relay.default_currency", "BRL")
	v.SetDefault("relay.default_country", "br")
	v.SetDefault("relay.max_body_bytes", 1048576)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.flush_interval", "30s")
	v.SetDefault("redis.instance_id", "")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.token", "")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/capi-relay")
	}

	// Environment variables override
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range plainEnv {
		prefixed := "RELAY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if u, err := url.Parse(c.Meta.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("meta.base_url must be an http(s) URL, got %q", c.Meta.BaseURL))
	}
	if c.Meta.APIVersion == "" {
		errs = append(errs, errors.New("meta.api_version is required"))
	}
	if c.Meta.Timeout <= 0 {
		errs = append(errs, errors.New("meta.timeout must be positive"))
	}

	if c.Relay.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("relay.max_body_bytes must be positive"))
	}
	if len(c.Relay.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Errorf("relay.default_currency must be an ISO 4217 code, got %q", c.Relay.DefaultCurrency))
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required when redis is enabled"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats is enabled"))
	}

	return errors.Join(errs...)
}
