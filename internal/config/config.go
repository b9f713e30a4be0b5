package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the fetchr API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Expansion ExpansionConfig `yaml:"expansion"`
	Search    SearchConfig    `yaml:"search"`
	Probe     ProbeConfig     `yaml:"probe"`
	Retry     RetryConfig     `yaml:"retry"`
	Backoff   BackoffConfig   `yaml:"backoff"`
	Session   SessionConfig   `yaml:"session"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)

	// File adds a rotating JSON log next to the console output. Empty disables it.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ExpansionConfig holds the query expansion model settings.
// An empty APIKey is reported when the first query runs, not at startup.
type ExpansionConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	CacheTTLSec int     `yaml:"cache_ttl_sec"` // 0 disables; needs a database

	// DailyTokenLimit caps tokens per UTC day, 0 is unlimited.
	DailyTokenLimit int64  `yaml:"daily_token_limit"`
	BudgetAction    string `yaml:"budget_action"` // "reject" (default) or "warn"
}

// SearchConfig holds image search provider settings.
type SearchConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ProbeConfig holds URL reachability probe settings.
type ProbeConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

// RetryConfig holds attempt loop settings.
type RetryConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	MinDimension   int `yaml:"min_dimension"`
	CandidateLimit int `yaml:"candidate_limit"`
}

// BackoffConfig holds rate-limit backoff settings shared by all providers.
type BackoffConfig struct {
	MaxRetries     int     `yaml:"max_retries"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

// InitialDelay returns the first backoff sleep.
func (b BackoffConfig) InitialDelay() time.Duration {
	return time.Duration(b.InitialDelayMs) * time.Millisecond
}

// SessionConfig holds multi-query session settings.
type SessionConfig struct {
	Concurrency int `yaml:"concurrency"`
	MaxQueries  int `yaml:"max_queries"`
}

// DatabaseConfig holds database connection settings.
// Without addrs the service runs without persistence.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return len(d.Addrs) > 0
}

// StorageConfig holds retention settings for persisted data.
type StorageConfig struct {
	DecisionTTLHours int `yaml:"decision_ttl_hours"`
	UsageTTLHours    int `yaml:"usage_ttl_hours"`
	FeedbackWindow   int `yaml:"feedback_window"`
	FeedbackExamples int `yaml:"feedback_examples"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, substituting ${VAR} references first.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	// A session runs several provider round trips per query.
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Expansion.Provider == "" {
		c.Expansion.Provider = "Gemini"
	}
	if c.Expansion.BudgetAction == "" {
		c.Expansion.BudgetAction = "reject"
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 15
	}
	if c.Probe.TimeoutSec <= 0 {
		c.Probe.TimeoutSec = 5
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.MinDimension <= 0 {
		c.Retry.MinDimension = 32
	}
	if c.Retry.CandidateLimit <= 0 {
		c.Retry.CandidateLimit = 5
	}
	if c.Backoff.MaxRetries <= 0 {
		c.Backoff.MaxRetries = 3
	}
	if c.Backoff.InitialDelayMs <= 0 {
		c.Backoff.InitialDelayMs = 1000
	}
	if c.Backoff.Multiplier <= 0 {
		c.Backoff.Multiplier = 2
	}
	if c.Session.Concurrency <= 0 {
		c.Session.Concurrency = 4
	}
	if c.Session.MaxQueries <= 0 {
		c.Session.MaxQueries = 20
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.DecisionTTLHours <= 0 {
		c.Storage.DecisionTTLHours = 24
	}
	if c.Storage.UsageTTLHours <= 0 {
		c.Storage.UsageTTLHours = 48
	}
	if c.Storage.FeedbackWindow <= 0 {
		c.Storage.FeedbackWindow = 200
	}
	if c.Storage.FeedbackExamples <= 0 {
		c.Storage.FeedbackExamples = 3
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 7
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Expansion.Temperature < 0 || c.Expansion.Temperature > 2 {
		return fmt.Errorf("expansion.temperature must be between 0 and 2, got %g", c.Expansion.Temperature)
	}
	if c.Expansion.CacheTTLSec < 0 {
		return fmt.Errorf("expansion.cache_ttl_sec must not be negative, got %d", c.Expansion.CacheTTLSec)
	}
	if c.Expansion.DailyTokenLimit < 0 {
		return fmt.Errorf("expansion.daily_token_limit must not be negative, got %d", c.Expansion.DailyTokenLimit)
	}
	switch c.Expansion.BudgetAction {
	case "", "reject", "warn":
	default:
		return fmt.Errorf("expansion.budget_action must be reject or warn, got %q", c.Expansion.BudgetAction)
	}
	if c.Backoff.Multiplier < 1 {
		return fmt.Errorf("backoff.multiplier must be at least 1, got %g", c.Backoff.Multiplier)
	}
	if c.Retry.CandidateLimit > 10 {
		return fmt.Errorf("retry.candidate_limit must be at most 10, got %d", c.Retry.CandidateLimit)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	for i, addr := range c.Database.Addrs {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("database.addrs[%d] is empty", i)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
