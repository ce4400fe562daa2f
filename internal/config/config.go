// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package config loads daemon configuration. Precedence: environment
// variables override the optional YAML file, which overrides defaults. The
// result is a value passed at construction; nothing reads configuration
// after startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	SchedulingDBPath string `yaml:"scheduling_db_path"`
	CatalogDBPath    string `yaml:"catalog_db_path"`

	CatalogTimeout  time.Duration `yaml:"catalog_timeout"`
	CountCacheTTL   time.Duration `yaml:"count_cache_ttl"`
	OnlineThreshold time.Duration `yaml:"online_threshold"`
	PollRateLimit   int           `yaml:"poll_rate_limit"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ListenAddr:       ":8080",
		LogLevel:         "info",
		SchedulingDBPath: "data/scheduling.db",
		CatalogDBPath:    "data/catalog.db",
		CatalogTimeout:   10 * time.Second,
		CountCacheTTL:    2 * time.Hour,
		OnlineThreshold:  30 * time.Second,
		PollRateLimit:    120,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Load builds the effective configuration. path may be empty; a missing
// explicit file is an error, env vars always apply last.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.ListenAddr = ParseString("VLOOP_LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = ParseString("VLOOP_LOG_LEVEL", cfg.LogLevel)
	cfg.SchedulingDBPath = ParseString("VLOOP_SCHEDULING_DB", cfg.SchedulingDBPath)
	cfg.CatalogDBPath = ParseString("VLOOP_CATALOG_DB", cfg.CatalogDBPath)

	var err error
	if cfg.CatalogTimeout, err = ParseDuration("VLOOP_CATALOG_TIMEOUT", cfg.CatalogTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CountCacheTTL, err = ParseDuration("VLOOP_COUNT_CACHE_TTL", cfg.CountCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.OnlineThreshold, err = ParseDuration("VLOOP_ONLINE_THRESHOLD", cfg.OnlineThreshold); err != nil {
		return Config{}, err
	}
	if cfg.PollRateLimit, err = ParseInt("VLOOP_POLL_RATE_LIMIT", cfg.PollRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = ParseDuration("VLOOP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the daemon relies on.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.SchedulingDBPath == "" || c.CatalogDBPath == "" {
		return fmt.Errorf("config: both database paths must be set")
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("config: catalog_timeout must be positive")
	}
	if c.CountCacheTTL <= 0 {
		return fmt.Errorf("config: count_cache_ttl must be positive")
	}
	if c.OnlineThreshold <= 0 {
		return fmt.Errorf("config: online_threshold must be positive")
	}
	if c.PollRateLimit < 1 {
		return fmt.Errorf("config: poll_rate_limit must be at least 1")
	}
	return nil
}
