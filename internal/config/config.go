// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	// GitHubToken is optional; when set it is sent as a bearer token for
	// rate-limit relief.
	GitHubToken  string
	GitHubAPIURL string

	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
	LLMTemperature  float32
	LLMStrictSchema bool

	FetchTimeout   time.Duration
	ModelTimeout   time.Duration
	MaxReadmeBytes int
	CompactReadme  bool

	// SecretKey is the 32-byte AES-256 key for credential encryption.
	// Nil when REPOBRIEF_SECRET_KEY is unset.
	SecretKey []byte
}

// HasSecretKey returns true when encrypted credential storage is available.
func (c *Config) HasSecretKey() bool {
	return c.SecretKey != nil
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment take precedence over it.
// Optional variables with defaults: REPOBRIEF_LISTEN_ADDR (127.0.0.1:8080),
// REPOBRIEF_DB_PATH (repobrief.db), REPOBRIEF_GITHUB_API_URL (https://api.github.com/),
// REPOBRIEF_LLM_BASE_URL (https://api.openai.com/v1), REPOBRIEF_LLM_MODEL (gpt-3.5-turbo),
// REPOBRIEF_LLM_TEMPERATURE (0.3), REPOBRIEF_FETCH_TIMEOUT (10s),
// REPOBRIEF_MODEL_TIMEOUT (60s), REPOBRIEF_MAX_README_BYTES (32768).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:     envOr("REPOBRIEF_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:         envOr("REPOBRIEF_DB_PATH", "repobrief.db"),
		GitHubToken:    os.Getenv("REPOBRIEF_GITHUB_TOKEN"),
		GitHubAPIURL:   envOr("REPOBRIEF_GITHUB_API_URL", "https://api.github.com/"),
		LLMBaseURL:     envOr("REPOBRIEF_LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      os.Getenv("REPOBRIEF_LLM_API_KEY"),
		LLMModel:       envOr("REPOBRIEF_LLM_MODEL", "gpt-3.5-turbo"),
		LLMTemperature: 0.3,
		FetchTimeout:   10 * time.Second,
		ModelTimeout:   60 * time.Second,
		MaxReadmeBytes: 32 * 1024,
	}

	if v, ok := os.LookupEnv("REPOBRIEF_LLM_TEMPERATURE"); ok {
		parsed, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, fmt.Errorf("REPOBRIEF_LLM_TEMPERATURE has invalid number %q: %w", v, err)
		}
		if parsed < 0 || parsed > 2 {
			return nil, fmt.Errorf("REPOBRIEF_LLM_TEMPERATURE must be between 0 and 2, got %v", parsed)
		}
		cfg.LLMTemperature = float32(parsed)
	}

	var err error
	if cfg.LLMStrictSchema, err = envBool("REPOBRIEF_LLM_STRICT_SCHEMA"); err != nil {
		return nil, err
	}
	if cfg.CompactReadme, err = envBool("REPOBRIEF_COMPACT_README"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = envDuration("REPOBRIEF_FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return nil, err
	}
	if cfg.ModelTimeout, err = envDuration("REPOBRIEF_MODEL_TIMEOUT", cfg.ModelTimeout); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("REPOBRIEF_MAX_README_BYTES"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("REPOBRIEF_MAX_README_BYTES has invalid size %q: must be a non-negative integer", v)
		}
		cfg.MaxReadmeBytes = parsed
	}

	if v, ok := os.LookupEnv("REPOBRIEF_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("REPOBRIEF_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("REPOBRIEF_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(key))
		}
		cfg.SecretKey = key
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s has invalid boolean %q: %w", key, v, err)
	}
	return parsed, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}
