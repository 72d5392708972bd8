package llm

import (
	"context"

	"morvo/internal/intent"
)

// IntentProvider answers from the canned intent templates instead of a
// remote model. It is used offline and when no API key is configured.
type IntentProvider struct{}

// NewIntentProvider creates a template-backed provider.
func NewIntentProvider() *IntentProvider {
	return &IntentProvider{}
}

func (p *IntentProvider) Name() string         { return "intent" }
func (p *IntentProvider) DefaultModel() string { return "templates" }

// Chat classifies the last user message and renders its template with
// req.Context.
func (p *IntentProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LLMError{Type: ErrorTimeout, Message: "intent", Err: err}
	}

	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	if last == "" {
		return nil, &LLMError{Type: ErrorInvalidInput, Message: "intent: no user message"}
	}

	return &LLMResponse{
		Content:    intent.Render(intent.Classify(last), req.Context),
		StopReason: "end_turn",
	}, nil
}
