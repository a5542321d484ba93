package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Sim       SimConfig       `toml:"sim"`
	Broadcast BroadcastConfig `toml:"broadcast"`
	TickLog   TickLogConfig   `toml:"ticklog"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type SimConfig struct {
	Map          string   `toml:"map"`      // built-in layout, see world.MapNames
	Scenario     string   `toml:"scenario"` // optional YAML file spawned after the map
	Seed         int64    `toml:"seed"`
	TickInterval Duration `toml:"tick_interval"` // at 1x speed
	Autoplay     bool     `toml:"autoplay"`
}

type BroadcastConfig struct {
	Interval Duration `toml:"interval"`
	Compress bool     `toml:"compress"` // zstd board frames
}

type TickLogConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Duration reads "250ms" style strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Sim.TickInterval.Duration <= 0 {
		return fmt.Errorf("sim.tick_interval must be positive")
	}
	if c.Broadcast.Interval.Duration <= 0 {
		return fmt.Errorf("broadcast.interval must be positive")
	}
	if c.TickLog.Enabled && c.TickLog.Dir == "" {
		return fmt.Errorf("ticklog.dir is required when ticklog is enabled")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Sim: SimConfig{
			Map:          "loop",
			Seed:         1,
			TickInterval: Duration{250 * time.Millisecond},
			Autoplay:     true,
		},
		Broadcast: BroadcastConfig{
			Interval: Duration{100 * time.Millisecond},
		},
		TickLog: TickLogConfig{
			Dir: "data/ticks",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
