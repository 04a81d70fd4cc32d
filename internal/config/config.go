package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Drip     DripConfig     `yaml:"drip"`
	Worker   WorkerConfig   `yaml:"worker"`
	SES      SESConfig      `yaml:"ses"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis connection settings. When Addr is
// empty, everything that would use Redis (capacity cache, janitor lock)
// falls back to Postgres-only behavior.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DripConfig holds the scheduling parameters for the drip campaign core.
type DripConfig struct {
	// DailyMax is the global cap on completed sends per civil day (UTC).
	DailyMax int `yaml:"daily_max"`
	// DefaultMaxMessages is used when an admission request omits the
	// message count.
	DefaultMaxMessages int `yaml:"default_max_messages"`
	// OverflowHorizonDays is how many days forward the scheduler scans
	// for a day with remaining capacity before clamping.
	OverflowHorizonDays int `yaml:"overflow_horizon_days"`
	// TestMode prefixes every day-queue name with "test-".
	TestMode bool `yaml:"test_mode"`
}

// WorkerConfig holds the drip worker's pacing and queue parameters.
type WorkerConfig struct {
	PollIntervalMs           int `yaml:"poll_interval_ms"`
	MessageDelayMs           int `yaml:"message_delay_ms"`
	VisibilityTimeoutSeconds int `yaml:"visibility_timeout_seconds"`
	JanitorRetentionDays     int `yaml:"janitor_retention_days"`
	JanitorTimeoutSeconds    int `yaml:"janitor_timeout_seconds"`
}

// PollInterval returns the delay between empty-result polls.
func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MessageDelay returns the pause between successful sends in one worker.
func (c WorkerConfig) MessageDelay() time.Duration {
	return time.Duration(c.MessageDelayMs) * time.Millisecond
}

// JanitorTimeout returns the global budget for startup queue cleanup.
func (c WorkerConfig) JanitorTimeout() time.Duration {
	return time.Duration(c.JanitorTimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES credentials for the production transport.
// When disabled, the worker sends through the log transport.
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	FromName       string `yaml:"from_name"`
	FromEmail      string `yaml:"from_email"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Drip.DailyMax == 0 {
		c.Drip.DailyMax = 100
	}
	if c.Drip.DefaultMaxMessages == 0 {
		c.Drip.DefaultMaxMessages = 5
	}
	if c.Drip.OverflowHorizonDays == 0 {
		c.Drip.OverflowHorizonDays = 30
	}
	if c.Worker.PollIntervalMs == 0 {
		c.Worker.PollIntervalMs = 5000
	}
	if c.Worker.MessageDelayMs == 0 {
		c.Worker.MessageDelayMs = 2000
	}
	if c.Worker.VisibilityTimeoutSeconds == 0 {
		c.Worker.VisibilityTimeoutSeconds = 30
	}
	if c.Worker.JanitorRetentionDays == 0 {
		c.Worker.JanitorRetentionDays = 7
	}
	if c.Worker.JanitorTimeoutSeconds == 0 {
		c.Worker.JanitorTimeoutSeconds = 10
	}
	if c.SES.Region == "" {
		c.SES.Region = "us-east-1"
	}
	if c.SES.TimeoutSeconds == 0 {
		c.SES.TimeoutSeconds = 30
	}
}

// Default returns a configuration with all defaults applied and no file
// read. Useful for processes driven entirely by environment variables.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// A missing config file is not an error; defaults are used instead.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = Default()
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if v := os.Getenv("DAILY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Drip.DailyMax = n
		}
	}
	if v := os.Getenv("WORKER_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.PollIntervalMs = n
		}
	}
	if v := os.Getenv("WORKER_MESSAGE_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.MessageDelayMs = n
		}
	}
	if v := os.Getenv("DRIP_TEST_MODE"); v == "1" || v == "true" {
		cfg.Drip.TestMode = true
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}

	return cfg, nil
}
