// Package config loads kqlmock settings from defaults, an optional config
// file, KQLMOCK_* environment variables and command line flags, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/razeghi71/kqlmock/logging"
)

// EnvPrefix prefixes every environment variable: KQLMOCK_STRICT,
// KQLMOCK_LOG_LEVEL.
const EnvPrefix = "KQLMOCK"

// Config is the resolved configuration.
type Config struct {
	Strict        bool           `mapstructure:"strict"`
	FullOuterJoin bool           `mapstructure:"full_outer_join"`
	LatencyMin    time.Duration  `mapstructure:"latency_min"`
	LatencyMax    time.Duration  `mapstructure:"latency_max"`
	DataDir       string         `mapstructure:"data_dir"`
	Seed          uint64         `mapstructure:"seed"`
	Format        string         `mapstructure:"format"`
	Log           logging.Config `mapstructure:"log"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"strict":          "strict",
	"full-outer-join": "full_outer_join",
	"latency-min":     "latency_min",
	"latency-max":     "latency_max",
	"data-dir":        "data_dir",
	"seed":            "seed",
	"format":          "format",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

func setDefaults(v *viper.Viper) {
	log := logging.DefaultConfig()
	v.SetDefault("strict", false)
	v.SetDefault("full_outer_join", false)
	v.SetDefault("latency_min", 100*time.Millisecond)
	v.SetDefault("latency_max", 300*time.Millisecond)
	v.SetDefault("data_dir", "")
	v.SetDefault("seed", uint64(1))
	v.SetDefault("format", "table")
	v.SetDefault("log.level", log.Level)
	v.SetDefault("log.format", log.Format)
}

// Load resolves the configuration. path names a config file (YAML, JSON or
// TOML); when empty, ./kqlmock.* is used if present. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("kqlmock")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the latency bounds and log settings.
func (c *Config) Validate() error {
	if c.LatencyMin < 0 || c.LatencyMax < 0 {
		return fmt.Errorf("latency bounds must not be negative (min %s, max %s)", c.LatencyMin, c.LatencyMax)
	}
	if c.LatencyMin > c.LatencyMax {
		return fmt.Errorf("latency_min %s is greater than latency_max %s", c.LatencyMin, c.LatencyMax)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
