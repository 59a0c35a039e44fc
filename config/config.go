package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider selects the language model backend.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Cohere    Provider = "cohere"
)

// Config is the explicit process configuration. It is loaded once at start
// and passed down by value; nothing in the repo reads configuration from
// process-wide mutable state after that.
type Config struct {
	Provider    Provider `yaml:"provider" validate:"required,oneof=openai anthropic cohere"`
	Model       string   `yaml:"model" validate:"required"`
	APIKeyEnv   string   `yaml:"api_key_env" validate:"required"`
	BaseURL     string   `yaml:"base_url" validate:"omitempty,url"`
	Temperature float32  `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int      `yaml:"max_tokens" validate:"gt=0"`

	SearchBaseURL  string `yaml:"search_base_url" validate:"omitempty,url"`
	FinanceBaseURL string `yaml:"finance_base_url" validate:"omitempty,url"`
	MaxResults     int    `yaml:"max_results" validate:"gt=0"`
	ContextBudget  int    `yaml:"context_budget" validate:"gt=0"`

	Watchlist []string `yaml:"watchlist"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:      OpenAI,
		Model:         "llama-3.3-70b-versatile",
		APIKeyEnv:     "GROQ_API_KEY",
		BaseURL:       "https://api.groq.com/openai/v1",
		Temperature:   0.3,
		MaxTokens:     2048,
		MaxResults:    10,
		ContextBudget: 2048,
		Watchlist:     []string{"AAPL", "TSLA", "AMZN", "GOOGL", "NVDA"},
	}
}

// Load builds the configuration: built-in defaults, then an optional YAML
// file, then environment overrides, validated as a whole. A .env file in the
// working directory is loaded first without overwriting existing variables.
func Load(path string) (*Config, error) {
	godotenv.Load()
	cfg := Default()
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(bs, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FA_PROVIDER"); v != "" {
		c.Provider = Provider(v)
	}
	if v := os.Getenv("FA_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("FA_API_KEY_ENV"); v != "" {
		c.APIKeyEnv = v
	}
	if v := os.Getenv("FA_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("FA_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			c.Temperature = float32(f)
		}
	}
	if v := os.Getenv("FA_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTokens = n
		}
	}
	if v := os.Getenv("FA_WATCHLIST"); v != "" {
		var list []string
		for _, symbol := range strings.Split(v, ",") {
			if symbol = strings.TrimSpace(symbol); symbol != "" {
				list = append(list, strings.ToUpper(symbol))
			}
		}
		c.Watchlist = list
	}
}

// Validate checks the configuration shape.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// APIKey resolves the model credential. A missing credential is a startup
// error for the process.
func (c *Config) APIKey() (string, error) {
	key := os.Getenv(c.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("missing credential: environment variable %s is not set", c.APIKeyEnv)
	}
	return key, nil
}
