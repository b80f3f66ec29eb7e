package seeder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Inbound event types the relay maps to conversions.
var DefaultEventTypes = []string{"USER_CREATED", "USER_LOGIN", "DEPOSIT_CREATED", "DEPOSIT_PAID"}

// Config controls a simulation run.
type Config struct {
	Count      int           `mapstructure:"count" yaml:"count"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
	EventTypes []string      `mapstructure:"event_types" yaml:"event_types"`
	Seed       int64         `mapstructure:"seed" yaml:"seed"`
	Currency   string        `mapstructure:"currency" yaml:"currency"`
	MinAmount  float64       `mapstructure:"min_amount" yaml:"min_amount"`
	MaxAmount  float64       `mapstructure:"max_amount" yaml:"max_amount"`
	// UserPool bounds how many generated users later events can reuse.
	UserPool int `mapstructure:"user_pool" yaml:"user_pool"`
}

// LoadConfig loads configuration with cascade:
// explicit path > ./simulate.yaml > ~/.capictl/simulate.yaml > defaults.
// SIMULATE_* environment variables override file values.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("simulate")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SIMULATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".capictl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.EventTypes = normalizeEventTypes(cfg.EventTypes)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("count", 10)
	v.SetDefault("interval", 100*time.Millisecond)
	v.SetDefault("event_types", DefaultEventTypes)
	v.SetDefault("seed", 0)
	v.SetDefault("currency", "BRL")
	v.SetDefault("min_amount", 20.0)
	v.SetDefault("max_amount", 500.0)
	v.SetDefault("user_pool", 50)
}

// ParseEventTypes splits a comma separated list, upper-casing entries and
// dropping blanks.
func ParseEventTypes(s string) []string {
	return normalizeEventTypes(strings.Split(s, ","))
}

func normalizeEventTypes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Count <= 0 {
		errs = append(errs, fmt.Errorf("count must be positive, got %d", c.Count))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative, got %s", c.Interval))
	}
	if len(c.EventTypes) == 0 {
		errs = append(errs, errors.New("at least one event type is required"))
	}
	if c.MinAmount <= 0 || c.MaxAmount < c.MinAmount {
		errs = append(errs, fmt.Errorf("amount range [%.2f, %.2f] is invalid", c.MinAmount, c.MaxAmount))
	}
	if c.UserPool < 1 {
		errs = append(errs, fmt.Errorf("user_pool must be at least 1, got %d", c.UserPool))
	}
	return errors.Join(errs...)
}
