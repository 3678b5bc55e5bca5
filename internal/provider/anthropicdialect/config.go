package anthropicdialect

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// Config holds the native single-system-block dialect's connection
// settings. Grounded on original_source/ollama-server/scriptEdition/
// apiServer/llm_service.py's ANTHROPIC_API_KEY/ANTHROPIC_MODEL env
// resolution, and on haasonsaas-nexus's simultaneous use of
// anthropic-sdk-go alongside go-openai.
type Config struct {
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int
}

func NewConfigFromEnv() (*Config, error) {
	c := &Config{
		APIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		Model:      getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		MaxTokens:  getEnvIntOrDefault("ANTHROPIC_MAX_TOKENS", 4096),
		MaxRetries: getEnvIntOrDefault("ANTHROPIC_MAX_RETRIES", 1),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required. Set it in .env or environment")
	}
	if c.Model == "" {
		return fmt.Errorf("ANTHROPIC_MODEL cannot be empty")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("ANTHROPIC_MAX_RETRIES cannot be negative, got %d", c.MaxRetries)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
		log.Printf("[Config] WARNING: invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}
