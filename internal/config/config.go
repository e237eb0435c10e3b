package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Listing struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"listing"`
	Detail struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"detail"`
	Drafts struct {
		TTL string `yaml:"ttl"`
	} `yaml:"drafts"`
	Submission struct {
		Timeout         string `yaml:"timeout"`
		MaxAttempts     int    `yaml:"max_attempts"`
		InitialInterval string `yaml:"initial_interval"`
		Deadline        string `yaml:"deadline"`
	} `yaml:"submission"`
	Fixtures struct {
		Seed int64 `yaml:"seed"`
	} `yaml:"fixtures"`
}

// Default returns the configuration used when no file is present: in-memory
// stores seeded with the demo catalogue.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Listing.PageSize = 5
	cfg.Detail.CacheTTL = "10m"
	cfg.Drafts.TTL = "24h"
	cfg.Submission.Timeout = "5s"
	cfg.Submission.MaxAttempts = 3
	cfg.Submission.InitialInterval = "200ms"
	cfg.Submission.Deadline = "10s"
	cfg.Fixtures.Seed = 1
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
