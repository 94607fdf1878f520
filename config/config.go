// Package config holds service configuration and the per-request generation
// parameters passed to providers. Service configuration is loaded from the
// environment; API keys are never embedded in source.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/promptsmith/promptsmith/utils"
)

// Config is the process-level configuration, loaded once at startup and
// passed by reference into the provider gateway and the HTTP server.
type Config struct {
	HTTPPort         string         `env:"PROMPTSMITH_PORT" envDefault:"8000"`
	Provider         string         `env:"LLM_PROVIDER" envDefault:"openai"`
	Model            string         `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature      float64        `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens        int            `env:"LLM_MAX_TOKENS" envDefault:"2048"`
	TopP             float64        `env:"LLM_TOP_P" envDefault:"1.0"`
	Timeout          time.Duration  `env:"LLM_TIMEOUT" envDefault:"30s"`
	PipelineDeadline time.Duration  `env:"PIPELINE_DEADLINE" envDefault:"10m"`
	MaxRetries       int            `env:"LLM_MAX_RETRIES" envDefault:"3"`
	RetryDelay       time.Duration  `env:"LLM_RETRY_DELAY" envDefault:"2s"`
	Concurrency      int            `env:"EVAL_CONCURRENCY" envDefault:"4"`
	RateLimit        float64        `env:"EVAL_RATE_LIMIT" envDefault:"2"`
	LogLevel         utils.LogLevel `env:"LOG_LEVEL" envDefault:"WARN"`
	APIKeys          map[string]string
}

// Load parses the environment into a Config and collects provider API keys.
func Load() (*Config, error) {
	cfg := &Config{
		APIKeys: make(map[string]string),
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	loadAPIKeys(cfg)
	return cfg, nil
}

// loadAPIKeys scans the environment for *_API_KEY variables and maps them to
// lowercase provider names, e.g. OPENAI_API_KEY -> openai.
func loadAPIKeys(cfg *Config) {
	for _, envVar := range os.Environ() {
		key, value, found := strings.Cut(envVar, "=")
		if found && strings.HasSuffix(strings.ToUpper(key), "_API_KEY") {
			provider := strings.TrimSuffix(strings.ToUpper(key), "_API_KEY")
			cfg.APIKeys[strings.ToLower(provider)] = value
		}
	}
}

// ConfigOption mutates a Config; used by tests and the component wrapper.
type ConfigOption func(*Config)

// New returns a Config with usable defaults and no API keys.
func New(options ...ConfigOption) *Config {
	cfg := &Config{
		HTTPPort:         "8000",
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		Temperature:      0.7,
		MaxTokens:        2048,
		TopP:             1.0,
		Timeout:          30 * time.Second,
		PipelineDeadline: 10 * time.Minute,
		MaxRetries:       3,
		RetryDelay:       2 * time.Second,
		Concurrency:      4,
		RateLimit:        2,
		LogLevel:         utils.LogLevelWarn,
		APIKeys:          make(map[string]string),
	}
	for _, option := range options {
		option(cfg)
	}
	return cfg
}

func SetProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

func SetModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

func SetAPIKey(provider, apiKey string) ConfigOption {
	return func(c *Config) {
		if c.APIKeys == nil {
			c.APIKeys = make(map[string]string)
		}
		c.APIKeys[provider] = apiKey
	}
}

func SetTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

func SetMaxRetries(maxRetries int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

func SetRetryDelay(retryDelay time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryDelay = retryDelay
	}
}

func SetConcurrency(n int) ConfigOption {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.Concurrency = n
	}
}

func SetLogLevel(level utils.LogLevel) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// Generation returns the default per-request generation parameters derived
// from the process configuration.
func (c *Config) Generation() GenerationConfig {
	return GenerationConfig{
		Provider:    c.Provider,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		TopP:        c.TopP,
	}
}
