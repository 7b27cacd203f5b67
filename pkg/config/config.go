// Package config loads the application configuration from YAML with
// environment-variable fallbacks for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// Schema
	SchemaPath string `yaml:"schema_path"`

	// Model configuration
	Provider    string  `yaml:"provider"` // openai, gemini, bedrock
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// API keys
	OpenAIKey string `yaml:"openai_key"`
	GeminiKey string `yaml:"gemini_key"`
	AWSRegion string `yaml:"aws_region"`

	// Model call throttling
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Sessions
	Session SessionConfig `yaml:"session"`

	// History persistence
	History HistoryConfig `yaml:"history"`

	// Observability
	MetricsPort int `yaml:"metrics_port"`
}

// RateLimitConfig throttles model calls.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained model call rate (0 = unlimited).
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Burst is the burst allowance.
	Burst int `yaml:"burst"`
}

// SessionConfig controls in-memory session behavior.
type SessionConfig struct {
	// Capacity is the per-session message cap.
	Capacity int `yaml:"capacity"`
	// IdleTTL is how long an inactive session stays in memory.
	IdleTTL Duration `yaml:"idle_ttl"`
	// SweepInterval is a cron expression for the idle-session sweep.
	SweepInterval string `yaml:"sweep_interval"`
}

// HistoryConfig selects and configures the durable history backend.
type HistoryConfig struct {
	// Backend is "memory", "redis", or "firestore".
	Backend string `yaml:"backend"`

	// Redis settings
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	RedisTTL      Duration `yaml:"redis_ttl"`

	// Firestore settings
	FirestoreProject    string `yaml:"firestore_project"`
	FirestoreCollection string `yaml:"firestore_collection"`
	GCPCredentials      string `yaml:"gcp_credentials"`

	// TranscriptDir enables plain-text transcript export when non-empty.
	TranscriptDir string `yaml:"transcript_dir"`
}

// Load reads configuration from a YAML file, applies defaults, and fills
// credentials from the environment when absent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.Session.Capacity == 0 {
		c.Session.Capacity = 20
	}
	if c.Session.IdleTTL == 0 {
		c.Session.IdleTTL = Duration(time.Hour)
	}
	if c.Session.SweepInterval == "" {
		c.Session.SweepInterval = "@every 10m"
	}
	if c.History.Backend == "" {
		c.History.Backend = "memory"
	}
	if c.History.RedisAddr == "" {
		c.History.RedisAddr = "localhost:6379"
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}
}

func (c *Config) applyEnv() {
	if c.OpenAIKey == "" {
		c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.GeminiKey == "" {
		c.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.AWSRegion == "" {
		c.AWSRegion = os.Getenv("AWS_REGION")
	}
	if c.History.FirestoreProject == "" {
		c.History.FirestoreProject = os.Getenv("GCP_PROJECT")
	}
	if c.History.GCPCredentials == "" {
		c.History.GCPCredentials = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if c.SchemaPath == "" {
		c.SchemaPath = os.Getenv("QUERYFORGE_SCHEMA")
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("openai provider requires openai_key or OPENAI_API_KEY")
		}
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("gemini provider requires gemini_key or GEMINI_API_KEY")
		}
	case "bedrock":
		if c.AWSRegion == "" {
			return fmt.Errorf("bedrock provider requires aws_region or AWS_REGION")
		}
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider)
	}

	switch c.History.Backend {
	case "memory", "redis":
	case "firestore":
		if c.History.FirestoreProject == "" {
			return fmt.Errorf("firestore backend requires firestore_project or GCP_PROJECT")
		}
	default:
		return fmt.Errorf("unknown history backend: %s", c.History.Backend)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// ProviderConfig renders the provider factory configuration for the
// configured provider.
func (c *Config) ProviderConfig() map[string]any {
	switch c.Provider {
	case "openai":
		return map[string]any{"api_key": c.OpenAIKey}
	case "gemini":
		return map[string]any{"api_key": c.GeminiKey}
	case "bedrock":
		return map[string]any{"region": c.AWSRegion}
	default:
		return nil
	}
}
