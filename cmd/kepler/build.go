package main

import (
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/kepler/internal/agent"
	"github.com/MikeSquared-Agency/kepler/internal/anthropic"
	"github.com/MikeSquared-Agency/kepler/internal/cluster"
	"github.com/MikeSquared-Agency/kepler/internal/config"
	"github.com/MikeSquared-Agency/kepler/internal/llm"
)

// newCompleter picks the generation provider. Missing keys are not checked
// here: the client reports them on the first call.
func newCompleter(cfg config.Config) (llm.Completer, error) {
	switch cfg.Provider {
	case llm.ProviderOpenAI:
		return llm.NewOpenAI(llm.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}), nil
	case llm.ProviderAnthropic:
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// newAgent builds the analysis agent. Embeddings always go through the
// OpenAI-compatible endpoint, so clustering needs OPENAI_API_KEY regardless of
// the generation provider.
func newAgent(cfg config.Config, clustering bool, logger *slog.Logger) (*agent.Agent, error) {
	completer, err := newCompleter(cfg)
	if err != nil {
		return nil, err
	}

	opts := []agent.Option{agent.WithTokenBudget(cfg.PromptTokenLimit)}
	if clustering {
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("clustering requested but OPENAI_API_KEY is not set, using raw sampling")
		} else {
			embedder := llm.NewOpenAI(llm.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL})
			c := cluster.New(embedder, cfg.EmbeddingModel, logger, cluster.WithThreshold(cfg.ClusterThreshold))
			opts = append(opts, agent.WithClusterer(c))
			logger.Info("clustering enabled", "model", cfg.EmbeddingModel, "threshold", cfg.ClusterThreshold)
		}
	}

	return agent.New(completer, cfg.Model, logger, opts...), nil
}
