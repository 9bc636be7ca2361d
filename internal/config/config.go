package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string

	Provider        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	Model           string
	EmbeddingModel  string

	Clustering       bool
	ClusterThreshold float64
	PromptTokenLimit int

	SlackBotToken string
	SlackChannel  string
	APIToken      string
}

func Load() Config {
	provider := strings.ToLower(envStr("KEPLER_PROVIDER", "openai"))
	return Config{
		Port:        envInt("KEPLER_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		Provider:        provider,
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		Model:           envStr("KEPLER_MODEL", defaultModel(provider)),
		EmbeddingModel:  envStr("KEPLER_EMBEDDING_MODEL", "text-embedding-3-small"),

		Clustering:       envBool("KEPLER_CLUSTERING", false),
		ClusterThreshold: envFloat("KEPLER_CLUSTER_THRESHOLD", 0.75),
		PromptTokenLimit: envInt("KEPLER_PROMPT_TOKEN_BUDGET", 12000),

		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_INSIGHTS_CHANNEL", ""),
		APIToken:      envStr("KEPLER_API_TOKEN", ""),
	}
}

func defaultModel(provider string) string {
	if provider == "anthropic" {
		return "claude-sonnet-4-20250514"
	}
	return "gpt-4o-mini"
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
