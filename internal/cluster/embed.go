package cluster

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MikeSquared-Agency/kepler/internal/llm"
)

const (
	DefaultBatchSize = 100
	DefaultCacheSize = 4096
	DefaultModel     = "text-embedding-3-small"
)

// EmbeddingError reports the batch that failed. No partial result is returned
// alongside it.
type EmbeddingError struct {
	Batch int
	Start int
	End   int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch %d [%d:%d]: %v", e.Batch, e.Start, e.End, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Clusterer embeds feedback items and groups them.
type Clusterer struct {
	embedder  llm.Embedder
	model     string
	threshold float64
	batchSize int
	cache     *lru.Cache[string, []float64]
	logger    *slog.Logger
}

type Option func(*Clusterer)

func WithThreshold(t float64) Option {
	return func(c *Clusterer) {
		if t > 0 {
			c.threshold = t
		}
	}
}

func WithBatchSize(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithCacheSize bounds the in-process embedding cache. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(c *Clusterer) {
		if n <= 0 {
			c.cache = nil
			return
		}
		cache, err := lru.New[string, []float64](n)
		if err == nil {
			c.cache = cache
		}
	}
}

func New(embedder llm.Embedder, model string, logger *slog.Logger, opts ...Option) *Clusterer {
	if model == "" {
		model = DefaultModel
	}
	cache, _ := lru.New[string, []float64](DefaultCacheSize)
	c := &Clusterer{
		embedder:  embedder,
		model:     model,
		threshold: DefaultThreshold,
		batchSize: DefaultBatchSize,
		cache:     cache,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns one vector per text. Texts already in the cache are not sent.
// Batches run sequentially and the first failure aborts the call.
func (c *Clusterer) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	var pending []string
	positions := make(map[string][]int)
	for i, text := range texts {
		if v, ok := c.cached(text); ok {
			out[i] = v
			continue
		}
		if _, seen := positions[text]; !seen {
			pending = append(pending, text)
		}
		positions[text] = append(positions[text], i)
	}

	for batch, start := 0, 0; start < len(pending); batch, start = batch+1, start+c.batchSize {
		end := min(start+c.batchSize, len(pending))
		chunk := pending[start:end]

		vectors, err := c.embedder.Embed(ctx, c.model, chunk)
		if err == nil && len(vectors) != len(chunk) {
			err = fmt.Errorf("got %d vectors for %d inputs", len(vectors), len(chunk))
		}
		if err != nil {
			return nil, &EmbeddingError{Batch: batch, Start: start, End: end, Err: err}
		}

		for k, text := range chunk {
			c.store(text, vectors[k])
			for _, idx := range positions[text] {
				out[idx] = vectors[k]
			}
		}
	}

	c.logger.Debug("embedded feedback items",
		"total", len(texts),
		"requested", len(pending),
		"model", c.model,
	)
	return out, nil
}

// Run embeds items, groups them and returns the kept clusters ordered by priority.
func (c *Clusterer) Run(ctx context.Context, items []Item) ([]Cluster, error) {
	if len(items) == 0 {
		return nil, nil
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}

	embeddings, err := c.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	grouped := Group(items, embeddings, c.threshold)
	kept := Prioritize(Keep(grouped))
	c.logger.Info("clustered feedback",
		"items", len(items),
		"clusters", len(grouped),
		"kept", len(kept),
	)
	return kept, nil
}

func (c *Clusterer) cached(text string) ([]float64, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(c.model + "\x00" + text)
}

func (c *Clusterer) store(text string, v []float64) {
	if c.cache == nil {
		return
	}
	c.cache.Add(c.model+"\x00"+text, v)
}
