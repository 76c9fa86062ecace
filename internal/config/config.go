// Package config loads the engine configuration file with a
// defaults-then-overlay policy: a missing file yields defaults, a present
// file only overrides what it sets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts the human form ("30s", "2h") as well as bare
// nanosecond integers in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, perr := time.ParseDuration(raw)
		if perr != nil {
			return fmt.Errorf("invalid duration %q", raw)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration at line %d", value.Line)
	}
	*d = Duration(ns)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Version string      `yaml:"version"`
	Scan    ScanConfig  `yaml:"scan"`
	Cache   CacheConfig `yaml:"cache"`
	Threat  Threat      `yaml:"threat"`
	Notify  []Channel   `yaml:"notify"`
}

type ScanConfig struct {
	RulesPath      string   `yaml:"rules_path"`
	Workers        int      `yaml:"workers"`
	PerFileTimeout Duration `yaml:"per_file_timeout"`
}

type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
}

type Threat struct {
	HistoryWindow Duration `yaml:"history_window"`
	Retention     Duration `yaml:"retention"`
	BlockTTL      Duration `yaml:"block_ttl"`
	AlertCooldown Duration `yaml:"alert_cooldown"`
	AlertChannels []string `yaml:"alert_channels"`
}

type Channel struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

func Default() Config {
	return Config{
		Version: "1",
		Scan: ScanConfig{
			Workers:        4,
			PerFileTimeout: Duration(30 * time.Second),
		},
		Threat: Threat{
			HistoryWindow: Duration(24 * time.Hour),
			Retention:     Duration(30 * 24 * time.Hour),
			BlockTTL:      Duration(time.Hour),
			AlertCooldown: Duration(15 * time.Minute),
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.Scan.Workers <= 0 {
		cfg.Scan.Workers = Default().Scan.Workers
	}
	if cfg.Scan.PerFileTimeout <= 0 {
		cfg.Scan.PerFileTimeout = Default().Scan.PerFileTimeout
	}
	return cfg, nil
}
