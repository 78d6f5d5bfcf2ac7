package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowpulse/flowpulse/internal/flow"
	"github.com/flowpulse/flowpulse/internal/provider"
)

// Config is the top-level YAML configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Feed   FeedConfig   `yaml:"feed"`
	Flow   flow.Config  `yaml:"flow"`
	Redis  RedisConfig  `yaml:"redis"`
}

// FeedConfig points at the market data gateway and tunes the guards
// around it.
type FeedConfig struct {
	BaseURL                string `yaml:"base_url"`
	provider.GuardedConfig `yaml:",inline"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// EngineConfig drives the orchestration loop.
type EngineConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // snapshot poll cadence
	DetectEvery  int           `yaml:"detect_every"`  // run OHLCV detectors every Nth poll
	CandleLimit  int           `yaml:"candle_limit"`  // bars fetched per candle request
	Instruments  []string      `yaml:"instruments"`   // watched at startup
}

// RedisConfig enables the optional external event publisher.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Engine: EngineConfig{
			PollInterval: 5 * time.Second,
			DetectEvery:  12,
			CandleLimit:  250,
		},
		Feed: FeedConfig{
			BaseURL:       "http://localhost:9100",
			GuardedConfig: provider.DefaultGuardedConfig(),
		},
		Flow: flow.DefaultConfig(),
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "flowpulse.events",
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config YAML: %w", err)
	}
	return cfg, nil
}
