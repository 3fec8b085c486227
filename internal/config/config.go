package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// EnvPrefix prefixes environment overrides, e.g. NPCSIM_SIM_NPCS=50.
const EnvPrefix = "NPCSIM"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Sim     SimConfig     `mapstructure:"sim"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type SimConfig struct {
	Assets       string         `mapstructure:"assets"`
	NPCs         int            `mapstructure:"npcs"`
	Workers      int            `mapstructure:"workers"`
	TickInterval time.Duration  `mapstructure:"tick_interval"`
	HistoryLimit int            `mapstructure:"history_limit"`
	InitialState map[string]any `mapstructure:"initial_state"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type StorageConfig struct {
	Mode             string        `mapstructure:"mode"` // memory | redis
	RedisURL         string        `mapstructure:"redis_url"`
	SnapshotTTL      time.Duration `mapstructure:"snapshot_ttl"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("sim.assets", "./assets/behaviours.yaml")
	v.SetDefault("sim.npcs", 10)
	v.SetDefault("sim.workers", 4)
	v.SetDefault("sim.tick_interval", "200ms")
	v.SetDefault("sim.history_limit", 256)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", "127.0.0.1:8088")
	v.SetDefault("storage.mode", "memory")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
	v.SetDefault("storage.snapshot_ttl", "0s")
	v.SetDefault("storage.snapshot_interval", "30s")
}

// Load reads the YAML file at path (optional when empty) and applies
// NPCSIM_* environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and enums.
func (c *Config) Validate() error {
	var errs error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = errors.Join(errs, err)
	}
	if c.Sim.Assets == "" {
		errs = errors.Join(errs, errors.New("sim.assets is required"))
	}
	if c.Sim.NPCs < 0 {
		errs = errors.Join(errs, fmt.Errorf("sim.npcs must be >= 0, got %d", c.Sim.NPCs))
	}
	if c.Sim.TickInterval <= 0 {
		errs = errors.Join(errs, fmt.Errorf("sim.tick_interval must be positive, got %s", c.Sim.TickInterval))
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		errs = errors.Join(errs, errors.New("server.addr is required when the server is enabled"))
	}
	switch c.Storage.Mode {
	case "memory":
	case "redis":
		if c.Storage.RedisURL == "" {
			errs = errors.Join(errs, errors.New("storage.redis_url is required in redis mode"))
		}
	default:
		errs = errors.Join(errs, fmt.Errorf("unknown storage.mode %q", c.Storage.Mode))
	}
	if c.Storage.SnapshotInterval < 0 {
		errs = errors.Join(errs, errors.New("storage.snapshot_interval must not be negative"))
	}
	return errs
}

// LogLevel returns the parsed log level; Validate has already vetted it.
func (c *Config) LogLevel() log.Level {
	lvl, _ := log.ParseLevel(c.Log.Level)
	return lvl
}
