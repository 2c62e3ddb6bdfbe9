package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains configuration for the song-generation agents.
type Config struct {
	OpenAIAPIKey string // OpenAI API key for LLM provider
	GeminiAPIKey string // Google Gemini API key (optional)
	SentryDSN    string // Sentry DSN for telemetry (optional)

	MaxRevisions  int // reviewer-triggered full restarts
	MaxQARestarts int // QA-triggered targeted restarts

	CallTimeout     time.Duration // per oracle call
	WorkflowTimeout time.Duration // whole generation run
}

// Load reads configuration from the environment, loading a .env file first
// when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		MaxRevisions:    envInt("SONGGEN_MAX_REVISIONS", 1),
		MaxQARestarts:   envInt("SONGGEN_MAX_QA_RESTARTS", 2),
		CallTimeout:     envDuration("SONGGEN_CALL_TIMEOUT", 2*time.Minute),
		WorkflowTimeout: envDuration("SONGGEN_WORKFLOW_TIMEOUT", 10*time.Minute),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
