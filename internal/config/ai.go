package config

import (
	"os"
	"strconv"
	"time"
)

// MatcherConfig holds settings for the generative semantic-matching
// capability (OpenAI). When no API key is configured the engine runs on the
// deterministic keyword matcher alone.
type MatcherConfig struct {
	APIKey    string `json:"-"` // Never serialize
	Model     string `json:"model"`
	TimeoutMS int    `json:"timeoutMs"`
}

// DefaultMatcherConfig returns the default matcher configuration.
func DefaultMatcherConfig() *MatcherConfig {
	return &MatcherConfig{
		APIKey:    os.Getenv("OPENAI_API_KEY"),
		Model:     getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		TimeoutMS: getEnvIntOrDefault("MATCHER_TIMEOUT_MS", 10000),
	}
}

// IsEnabled returns true if the generative matcher is configured.
func (c *MatcherConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// Timeout returns the per-call deadline for the generative matcher.
func (c *MatcherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
