// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig     `toml:"server"`
	Database  DatabaseConfig   `toml:"database"`
	Instances []InstanceConfig `toml:"instances"`
	Approvals ApprovalsConfig  `toml:"approvals"`
	Quota     QuotaConfig      `toml:"quota"`
	Lookup    LookupConfig     `toml:"lookup"`
	Events    EventsConfig     `toml:"events"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// InstanceConfig declares a download-manager instance. Declared instances
// are synced into the database at startup; routing rules reference them by
// name.
type InstanceConfig struct {
	Name           string   `toml:"name"`
	Type           string   `toml:"type"` // "radarr" or "sonarr"
	URL            string   `toml:"url"`
	APIKey         string   `toml:"api_key"`
	QualityProfile string   `toml:"quality_profile"`
	RootFolder     string   `toml:"root_folder"`
	Tags           []string `toml:"tags"`
	Default        bool     `toml:"default"`
	Disabled       bool     `toml:"disabled"`
}

type ApprovalsConfig struct {
	// ExpireAfter is how long a pending request lives before the sweep
	// expires it. Zero disables expiry.
	ExpireAfter   time.Duration `toml:"expire_after"`
	SweepInterval time.Duration `toml:"sweep_interval"`
}

type QuotaConfig struct {
	// UsageRetention bounds how long per-request usage rows are kept.
	// Must cover the longest quota window.
	UsageRetention      time.Duration `toml:"usage_retention"`
	MaintenanceInterval time.Duration `toml:"maintenance_interval"`
}

type LookupConfig struct {
	TMDBAPIKey string        `toml:"tmdb_api_key"`
	TVDBAPIKey string        `toml:"tvdb_api_key"`
	CacheTTL   time.Duration `toml:"cache_ttl"`
}

type EventsConfig struct {
	Retention time.Duration `toml:"retention"`
}

// Load reads, parses, and validates the configuration file. Missing
// environment variables and validation failures are aggregated into a
// single ConfigError.
func Load(path string) (*Config, error) {
	cfg, missing, err := load(path)
	if err != nil {
		return nil, err
	}

	cerr := &ConfigError{Path: path, Missing: missing, Errors: cfg.Validate()}
	if cerr.HasErrors() {
		return nil, cerr
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file, skipping
// validation. Used by tooling that inspects partial configs.
func LoadWithoutValidation(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content, missing := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/pulsarr.db"
	}
	if cfg.Approvals.ExpireAfter == 0 {
		cfg.Approvals.ExpireAfter = 72 * time.Hour
	}
	if cfg.Approvals.SweepInterval == 0 {
		cfg.Approvals.SweepInterval = 15 * time.Minute
	}
	if cfg.Quota.UsageRetention == 0 {
		cfg.Quota.UsageRetention = 90 * 24 * time.Hour
	}
	if cfg.Quota.MaintenanceInterval == 0 {
		cfg.Quota.MaintenanceInterval = 24 * time.Hour
	}
	if cfg.Lookup.CacheTTL == 0 {
		cfg.Lookup.CacheTTL = 24 * time.Hour
	}
	if cfg.Events.Retention == 0 {
		cfg.Events.Retention = 30 * 24 * time.Hour
	}

	return &cfg, missing, nil
}

// substituteEnvVars replaces ${VAR} references with environment variable
// values, supporting ${VAR:-default} and ${VAR:?message} forms. Unresolved
// references are left in place and reported in the second return value.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}`)

func substituteEnvVars(content string) (string, []string) {
	var missing []string
	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, op, arg := groups[1], groups[2], groups[3]
		value, ok := os.LookupEnv(name)
		switch op {
		case "-": // ${VAR:-default}: empty counts as unset
			if ok && value != "" {
				return value
			}
			return arg
		case "?": // ${VAR:?message}: required, with operator-facing message
			if ok && value != "" {
				return value
			}
			missing = append(missing, name+": "+arg)
			return match
		default:
			if ok {
				return value
			}
			missing = append(missing, name)
			return match
		}
	})
	return result, missing
}
