package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all gauged configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Escrow     EscrowConfig     `yaml:"escrow"`
	Controller ControllerConfig `yaml:"controller"`
	Compaction CompactionConfig `yaml:"compaction"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EscrowConfig selects the lock-authority provider. The "static" provider
// serves the Locks table from memory; "http" queries a voting-escrow
// service.
type EscrowConfig struct {
	Provider string                `yaml:"provider"` // "http", "static"
	URL      string                `yaml:"url"`
	Locks    map[string]EscrowLock `yaml:"locks"`
}

// EscrowLock is one static lock entry: unlock period plus the voter's
// full slope as an exact fraction.
type EscrowLock struct {
	UnlockPeriod uint64 `yaml:"unlock_period"`
	SlopeNum     string `yaml:"slope_num"`
	SlopeDen     string `yaml:"slope_den"`
}

// ControllerConfig seeds the persisted controller state on first start.
// Once the database is initialized these values are read from it, not
// from here; period_seconds in particular is immutable after init.
type ControllerConfig struct {
	Owner         string `yaml:"owner"`
	RewardToken   string `yaml:"reward_token"`
	EscrowAddr    string `yaml:"escrow_addr"`
	PeriodSeconds uint64 `yaml:"period_seconds"`
	VoteDelay     uint64 `yaml:"vote_delay"`
}

// CompactionConfig schedules periodic mutating catch-up so long-idle
// series don't accumulate query-time work. Correctness never depends on
// it.
type CompactionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression, 5 fields
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37711,
		},
		Escrow: EscrowConfig{
			Provider: "http",
			URL:      "http://127.0.0.1:37712",
		},
		Controller: ControllerConfig{
			PeriodSeconds: 604800, // 1 week
			VoteDelay:     2,      // periods between re-votes per (voter, gauge)
		},
		Compaction: CompactionConfig{
			Enabled:  false,
			Schedule: "0 3 * * *",
		},
	}
}

// Load reads config from a YAML file, then applies environment variable
// overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("GAUGED_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("GAUGED_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("GAUGED_PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("GAUGED_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GAUGED_ESCROW_URL"); v != "" {
		cfg.Escrow.Provider = "http"
		cfg.Escrow.URL = v
	}
	if v := os.Getenv("GAUGED_OWNER"); v != "" {
		cfg.Controller.Owner = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with. A
// non-positive period duration is fatal: every stored period index is
// derived from it.
func (c *Config) Validate() error {
	if c.Controller.PeriodSeconds == 0 {
		return fmt.Errorf("controller.period_seconds must be > 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Escrow.Provider {
	case "http", "static":
	default:
		return fmt.Errorf("escrow.provider must be http or static, got %q", c.Escrow.Provider)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
