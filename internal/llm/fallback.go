package llm

import (
	"context"
	"log"
	"strings"
)

// FallbackProvider asks each provider in turn until one answers. It moves
// on only after a retryable failure, and the attempts of every provider
// tried are added up on the response or error.
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a provider chain. The first provider is primary.
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

// Name lists the chain, e.g. "openai>anthropic".
func (f *FallbackProvider) Name() string {
	if len(f.providers) == 0 {
		return "fallback"
	}
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

func (f *FallbackProvider) DefaultModel() string {
	if len(f.providers) > 0 {
		return f.providers[0].DefaultModel()
	}
	return ""
}

func (f *FallbackProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	var lastErr error
	spent := 0
	for i, p := range f.providers {
		// only the primary honours the requested model
		r := req
		if i > 0 && req.Model != "" {
			copied := *req
			copied.Model = ""
			r = &copied
		}

		resp, err := p.Chat(ctx, r)
		if err == nil {
			resp.Attempts = spent + max(resp.Attempts, 1)
			return resp, nil
		}
		spent += Attempts(err)
		lastErr = withAttempts(err, spent)
		if !IsRetryable(err) || ctx.Err() != nil {
			return nil, lastErr
		}
		log.Printf("[llm] provider %s failed: %v, trying next", p.Name(), err)
	}
	return nil, lastErr
}
