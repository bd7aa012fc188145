package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the environment-level knobs. Loaded once in main and passed
// down explicitly; core packages never read the environment themselves.
type Config struct {
	Provider       string // "openai" or "gemini"
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	GeminiAPIKey   string
	Model          string
	Temperature    float64
	MaxConcurrent  int
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
	MaxCorpusChars int
	DatabaseURL    string
	NatsURL        string
	NatsToken      string
	LogLevel       string
}

func Load() Config {
	return Config{
		Provider:       envStr("CHATSIFT_PROVIDER", "openai"),
		OpenAIAPIKey:   envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:   envStr("GEMINI_API_KEY", ""),
		Model:          envStr("CHATSIFT_MODEL", "gpt-4o-mini"),
		Temperature:    envFloat("TEMPERATURE", 0),
		MaxConcurrent:  envInt("MAX_CONCURRENT_REQUESTS", 5),
		RequestTimeout: time.Duration(envInt("REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		MaxAttempts:    envInt("MAX_RETRIES", 3),
		RetryBackoff:   time.Duration(envInt("RETRY_BACKOFF_MS", 500)) * time.Millisecond,
		MaxCorpusChars: envInt("MAX_CORPUS_CHARS", 15000),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		NatsURL:        envStr("NATS_URL", ""),
		NatsToken:      envStr("NATS_TOKEN", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
