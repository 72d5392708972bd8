package companion

import (
	"context"
	"log"
	"strings"
	"time"

	"morvo/internal/llm"
)

// Params are the fixed generation parameters. Callers never override them
// per request.
type Params struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Result is the outcome of one generation. Text is never empty.
type Result struct {
	Text     string
	Fallback bool
	Attempts int
	Err      error
}

// Generator calls the provider once per turn, bounded by an overall
// deadline, and substitutes the fallback reply on any failure.
type Generator struct {
	provider     llm.Provider
	params       Params
	timeout      time.Duration
	fallbackText string
}

// NewGenerator creates a generator. timeout bounds the whole call
// including retries done by the provider.
func NewGenerator(provider llm.Provider, params Params, timeout time.Duration, fallbackText string) *Generator {
	return &Generator{
		provider:     provider,
		params:       params,
		timeout:      timeout,
		fallbackText: fallbackText,
	}
}

// Generate returns the provider's reply, or the fallback text.
func (g *Generator) Generate(ctx context.Context, p Prompt) Result {
	if err := ctx.Err(); err != nil {
		return g.fallback(0, err)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := &llm.ChatRequest{
		Model:            g.params.Model,
		Messages:         p.Messages(),
		MaxTokens:        g.params.MaxTokens,
		Temperature:      g.params.Temperature,
		TopP:             g.params.TopP,
		FrequencyPenalty: g.params.FrequencyPenalty,
		PresencePenalty:  g.params.PresencePenalty,
		Context:          p.Summary,
	}

	type outcome struct {
		resp *llm.LLMResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := g.provider.Chat(ctx, req)
		done <- outcome{resp, err}
	}()

	// A provider that ignores ctx must not hold the turn past the deadline.
	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return g.fallback(1, &llm.LLMError{Type: llm.ErrorTimeout, Message: g.provider.Name(), Err: ctx.Err()})
	}

	if out.err != nil {
		return g.fallback(llm.Attempts(out.err), out.err)
	}
	attempts := out.resp.Attempts
	if attempts == 0 {
		attempts = 1
	}
	text := strings.TrimSpace(out.resp.Content)
	if text == "" {
		return g.fallback(attempts, &llm.LLMError{Type: llm.ErrorEmpty, Message: g.provider.Name() + ": empty completion"})
	}
	return Result{Text: text, Attempts: attempts}
}

func (g *Generator) fallback(attempts int, err error) Result {
	log.Printf("[companion] generation failed after %d attempt(s), using fallback: %v", attempts, err)
	return Result{Text: g.fallbackText, Fallback: true, Attempts: attempts, Err: err}
}
