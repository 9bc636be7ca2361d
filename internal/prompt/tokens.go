package prompt

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// perMessageOverhead approximates the role and separator tokens chat APIs add.
const perMessageOverhead = 4

// TokenCounter estimates the prompt size of a Prompt for a given model. Counts
// are exact for OpenAI models and an approximation for everything else.
type TokenCounter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// Count returns the estimated number of prompt tokens.
func (c *TokenCounter) Count(model string, p Prompt) int {
	codec, err := c.codec(encodingFor(model))
	if err != nil {
		return approximate(p.System) + approximate(p.User) + 2*perMessageOverhead
	}

	total := 2 * perMessageOverhead
	for _, text := range []string{p.System, p.User} {
		ids, _, err := codec.Encode(text)
		if err != nil {
			total += approximate(text)
			continue
		}
		total += len(ids)
	}
	return total
}

func (c *TokenCounter) codec(enc tokenizer.Encoding) (tokenizer.Codec, error) {
	c.mu.RLock()
	if cached, ok := c.codecs[enc]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.codecs[enc] = codec
	c.mu.Unlock()
	return codec, nil
}

// encodingFor maps a model name onto its tiktoken encoding. Unknown and
// non-OpenAI models use o200k_base.
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"), strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"),
		strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

func approximate(text string) int {
	return (len(text) + 3) / 4
}
