// Package agent runs one insight analysis: context, summary, prompt, model call
// and parse.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/kepler/internal/cluster"
	"github.com/MikeSquared-Agency/kepler/internal/feedback"
	"github.com/MikeSquared-Agency/kepler/internal/insight"
	"github.com/MikeSquared-Agency/kepler/internal/llm"
	"github.com/MikeSquared-Agency/kepler/internal/prompt"
)

// Decoding parameters for every generation call.
const (
	Temperature     = 0.3
	MaxOutputTokens = 2000
)

const DefaultTokenBudget = 12000

var (
	ErrNoData        = errors.New("no data available for analysis")
	ErrEmptyResponse = errors.New("empty response from model")
)

type Metadata struct {
	DurationMS    int64     `json:"duration_ms"`
	Model         string    `json:"model"`
	ItemsAnalyzed int       `json:"items_analyzed"`
	Usage         llm.Usage `json:"usage"`
	// PromptTokensEstimate is the local tokenizer count, before the call.
	PromptTokensEstimate int    `json:"prompt_tokens_estimate"`
	PromptVersion        string `json:"prompt_version"`
	Clusters             int    `json:"clusters,omitempty"`
}

// Output is either a success carrying the insight, the raw model text and
// metadata, or a failure carrying only a short reason.
type Output struct {
	Success     bool                       `json:"success"`
	Insight     *insight.ActionableInsight `json:"insight,omitempty"`
	RawResponse string                     `json:"raw_response,omitempty"`
	Metadata    *Metadata                  `json:"metadata,omitempty"`
	Warnings    []string                   `json:"warnings,omitempty"`
	Error       string                     `json:"error,omitempty"`

	// Err is the underlying cause of a failure, for errors.Is checks.
	Err error `json:"-"`
}

func failure(err error) Output {
	return Output{Success: false, Error: err.Error(), Err: err}
}

type Agent struct {
	llm       llm.Completer
	model     string
	logger    *slog.Logger
	clusterer *cluster.Clusterer
	tokens    *prompt.TokenCounter
	budget    int
	now       func() time.Time
}

type Option func(*Agent)

// WithClusterer enables clustered sampling. Clustering failures fall back to
// raw sampling.
func WithClusterer(c *cluster.Clusterer) Option {
	return func(a *Agent) { a.clusterer = c }
}

// WithTokenBudget sets the prompt size above which a warning is logged.
func WithTokenBudget(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.budget = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

func New(completer llm.Completer, model string, logger *slog.Logger, opts ...Option) *Agent {
	if model == "" {
		model = llm.DefaultOpenAIModel
	}
	a := &Agent{
		llm:    completer,
		model:  model,
		logger: logger,
		tokens: prompt.NewTokenCounter(),
		budget: DefaultTokenBudget,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run analyzes one input. It always returns; every failure is reported in the
// Output rather than as an error or panic.
func (a *Agent) Run(ctx context.Context, in feedback.Input) (out Output) {
	start := a.now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("insight generation panicked", "panic", r)
			out = failure(errors.New("internal error during insight generation"))
		}
	}()

	if in.Empty() {
		a.logger.Warn("skipping analysis", "reason", ErrNoData.Error())
		return failure(ErrNoData)
	}

	items := in.TotalItems()
	pctx := prompt.Consolidate(in.BusinessContexts, in.Team)
	summary := prompt.Summarize(in)

	var opts []prompt.Option
	clusters := a.cluster(ctx, in)
	if len(clusters) > 0 {
		opts = append(opts, prompt.WithClusters(clusters))
	}

	p := prompt.Assemble(in, pctx, summary, start, opts...)
	estimate := a.tokens.Count(a.model, p)
	if estimate > a.budget {
		a.logger.Warn("prompt exceeds token budget",
			"prompt_tokens", estimate,
			"budget", a.budget,
		)
	}

	a.logger.Info("generating insight",
		"model", a.model,
		"items_analyzed", items,
		"prompt_tokens", estimate,
		"clusters", len(clusters),
	)

	completion, err := a.llm.Complete(ctx, llm.CompletionRequest{
		Model:       a.model,
		System:      p.System,
		User:        p.User,
		Temperature: Temperature,
		MaxTokens:   MaxOutputTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			err = fmt.Errorf("configuration error: %w", err)
		}
		a.logger.Error("insight generation failed", "error", err)
		return failure(err)
	}
	if completion == nil || strings.TrimSpace(completion.Text) == "" {
		a.logger.Warn("insight generation returned no text", "model", a.model)
		return failure(ErrEmptyResponse)
	}

	result, warnings := insight.Parse(completion.Text)
	for _, w := range warnings {
		a.logger.Warn("insight parse fallback", "detail", w)
	}

	elapsed := a.now().Sub(start)
	a.logger.Info("insight generated",
		"title", result.Title,
		"actions", len(result.Actions),
		"model", completion.Model,
		"total_tokens", completion.Usage.TotalTokens,
		"duration_ms", elapsed.Milliseconds(),
	)

	return Output{
		Success:     true,
		Insight:     &result,
		RawResponse: completion.Text,
		Warnings:    warnings,
		Metadata: &Metadata{
			DurationMS:           elapsed.Milliseconds(),
			Model:                completion.Model,
			ItemsAnalyzed:        items,
			Usage:                completion.Usage,
			PromptTokensEstimate: estimate,
			PromptVersion:        prompt.SystemPromptVersion,
			Clusters:             len(clusters),
		},
	}
}

func (a *Agent) cluster(ctx context.Context, in feedback.Input) []cluster.Cluster {
	if a.clusterer == nil {
		return nil
	}
	clusters, err := a.clusterer.Run(ctx, cluster.ItemsFromInput(in))
	if err != nil {
		a.logger.Warn("clustering failed, using raw samples", "error", err)
		return nil
	}
	return clusters
}
