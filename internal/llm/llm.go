// Package llm defines the model-provider surface the insight pipeline talks to.
package llm

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned before any network I/O when a client has no credential.
var ErrMissingAPIKey = errors.New("API key is required")

// Provider constants for client selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// CompletionRequest is a single-turn chat completion: one system message, one user message.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the provider reply. Model is the model that actually served the
// request, which may differ from the one requested.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Completer runs chat completions. Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Embedder returns one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float64, error)
}
