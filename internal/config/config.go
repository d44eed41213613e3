package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "LICITAHUB_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	logLevelEnv      = "LICITAHUB_LOG_LEVEL"
	pncpBaseURLEnv   = "PNCP_BASE_URL"
	globalTimeoutEnv = "LICITAHUB_GLOBAL_TIMEOUT_SECONDS"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Refresh       RefreshConfig       `yaml:"refresh"`
	Sources       []SourceConfig      `yaml:"sources"`
}

// DatabaseConfig describes the optional Postgres audit sink; an empty DSN
// disables persistence entirely.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ConsolidationConfig bounds one orchestration run as a whole.
type ConsolidationConfig struct {
	GlobalTimeoutSeconds int `yaml:"globalTimeoutSeconds"`
}

// GlobalTimeout resolves the configured global budget.
func (c ConsolidationConfig) GlobalTimeout() time.Duration {
	if c.GlobalTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.GlobalTimeoutSeconds) * time.Second
}

// RefreshConfig drives watch mode.
type RefreshConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
}

// Interval resolves the refresh period.
func (r RefreshConfig) Interval() time.Duration {
	if r.IntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(r.IntervalMinutes) * time.Minute
}

// SourceConfig is the static descriptor of one upstream platform.
type SourceConfig struct {
	Name              string  `yaml:"name"`
	Driver            string  `yaml:"driver"`
	BaseURL           string  `yaml:"baseUrl"`
	TimeoutSeconds    int     `yaml:"timeoutSeconds"`
	MaxRetries        int     `yaml:"maxRetries"`
	BackoffBaseMs     int     `yaml:"backoffBaseMs"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	FailureThreshold  int     `yaml:"failureThreshold"`
	CooldownSeconds   int     `yaml:"cooldownSeconds"`
	Enabled           *bool   `yaml:"enabled"`
}

// Timeout resolves the per-source fetch budget.
func (s SourceConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Retries resolves the retry budget; the zero value gets the default of 3.
func (s SourceConfig) Retries() int {
	if s.MaxRetries <= 0 {
		return 3
	}
	return s.MaxRetries
}

// BackoffBase resolves the first retry delay.
func (s SourceConfig) BackoffBase() time.Duration {
	if s.BackoffBaseMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(s.BackoffBaseMs) * time.Millisecond
}

// Cooldown resolves how long an open circuit waits before its trial call.
func (s SourceConfig) Cooldown() time.Duration {
	if s.CooldownSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.CooldownSeconds) * time.Second
}

// IsEnabled treats an absent flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(globalTimeoutEnv); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			c.Consolidation.GlobalTimeoutSeconds = seconds
		}
	}

	if v := os.Getenv(pncpBaseURLEnv); v != "" {
		for i := range c.Sources {
			if c.Sources[i].Driver == "pncp" {
				c.Sources[i].BaseURL = v
			}
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Consolidation.GlobalTimeoutSeconds > 0 {
		base.Consolidation = override.Consolidation
	}

	if override.Refresh.IntervalMinutes > 0 {
		base.Refresh = override.Refresh
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Logging:  LoggingConfig{Level: "info"},
		Consolidation: ConsolidationConfig{
			GlobalTimeoutSeconds: 60,
		},
		Refresh: RefreshConfig{IntervalMinutes: 30},
		Sources: []SourceConfig{
			{
				Name:              "pncp",
				Driver:            "pncp",
				BaseURL:           "https://pncp.gov.br/api/consulta",
				TimeoutSeconds:    30,
				MaxRetries:        3,
				BackoffBaseMs:     500,
				RequestsPerSecond: 5,
				FailureThreshold:  5,
				CooldownSeconds:   60,
			},
			{
				Name:              "bll",
				Driver:            "portal",
				BaseURL:           "https://portal.example.org/licitacoes",
				TimeoutSeconds:    30,
				MaxRetries:        2,
				BackoffBaseMs:     750,
				RequestsPerSecond: 2,
				FailureThreshold:  5,
				CooldownSeconds:   90,
				Enabled:           boolPtr(false),
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}
