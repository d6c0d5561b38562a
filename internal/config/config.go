package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the multi-agent chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	SessionIdleTimeout time.Duration
	MaxContextTurns    int
	PromptHistoryTurns int
	MaxSuggestions     int

	// RequestDeadline bounds one whole pipeline run; ProviderCallTimeout
	// bounds a single generation attempt inside it.
	RequestDeadline     time.Duration
	ProviderCallTimeout time.Duration

	ProviderMode    string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	MaxTokens       int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "ensemble"),
		AllowAnyOrigin:      false,
		ProviderMode:        envOrDefault("PROVIDER_MODE", "auto"),
		OpenAIAPIKey:        stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIModel:         envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:     stringsTrimSpace("ANTHROPIC_API_KEY"),
		AnthropicModel:      envOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		DatabaseURL:         stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:     15 * time.Second,
		SessionIdleTimeout:  time.Hour,
		MaxContextTurns:     100,
		PromptHistoryTurns:  5,
		MaxSuggestions:      3,
		RequestDeadline:     30 * time.Second,
		ProviderCallTimeout: 10 * time.Second,
		MaxTokens:           200,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTimeout, err = durationFromEnv("APP_SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestDeadline, err = durationFromEnv("APP_REQUEST_DEADLINE", cfg.RequestDeadline)
	if err != nil {
		return Config{}, err
	}
	cfg.ProviderCallTimeout, err = durationFromEnv("PROVIDER_CALL_TIMEOUT", cfg.ProviderCallTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxContextTurns, err = intFromEnv("APP_MAX_CONTEXT_TURNS", cfg.MaxContextTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.PromptHistoryTurns, err = intFromEnv("APP_PROMPT_HISTORY_TURNS", cfg.PromptHistoryTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSuggestions, err = intFromEnv("APP_MAX_SUGGESTIONS", cfg.MaxSuggestions)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = intFromEnv("PROVIDER_MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionIdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_IDLE_TIMEOUT must be at least 5s")
	}
	if cfg.MaxContextTurns <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_CONTEXT_TURNS must be positive")
	}
	if cfg.PromptHistoryTurns <= 0 {
		return Config{}, fmt.Errorf("APP_PROMPT_HISTORY_TURNS must be positive")
	}
	if cfg.MaxSuggestions < 0 {
		return Config{}, fmt.Errorf("APP_MAX_SUGGESTIONS must be >= 0")
	}
	if cfg.RequestDeadline <= 0 {
		return Config{}, fmt.Errorf("APP_REQUEST_DEADLINE must be positive")
	}
	if cfg.ProviderCallTimeout <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_CALL_TIMEOUT must be positive")
	}
	if cfg.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_MAX_TOKENS must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.ProviderMode)) {
	case "auto", "mock":
	case "live":
		// Refuse to start half-configured rather than degrade silently.
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("PROVIDER_MODE=live requires OPENAI_API_KEY")
		}
		if cfg.AnthropicAPIKey == "" {
			return Config{}, fmt.Errorf("PROVIDER_MODE=live requires ANTHROPIC_API_KEY")
		}
	default:
		return Config{}, fmt.Errorf("invalid PROVIDER_MODE: %q (expected auto|live|mock)", cfg.ProviderMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
