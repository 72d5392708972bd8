package llm

import (
	"context"
	"errors"
)

// Provider is the interface all generation backends must implement.
type Provider interface {
	// Chat sends a chat completion request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error)

	// Name returns the provider name (e.g. "openai", "anthropic").
	Name() string

	// DefaultModel returns the default model for this provider.
	DefaultModel() string
}

// LLMError wraps an error with a classification for retry and fallback logic.
type LLMError struct {
	Type    ErrorType
	Message string
	Err     error

	// Attempts is the number of calls made, set by RetryProvider and
	// FallbackProvider.
	Attempts int
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// Attempts reports how many calls produced err, at least one.
func Attempts(err error) int {
	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.Attempts > 0 {
		return llmErr.Attempts
	}
	return 1
}

// IsRetryable returns true for errors that may succeed on another attempt
// or another provider.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		return true // unknown errors are retryable
	}
	switch llmErr.Type {
	case ErrorAuth, ErrorInvalidInput:
		return false // these won't succeed on retry
	default:
		return true
	}
}

// classifyContextError maps context failures before falling back to
// message matching, so deadlines are reported as timeouts regardless of
// how the SDK words them.
func classifyContextError(err error) (ErrorType, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout, true
	case errors.Is(err, context.Canceled):
		return ErrorTimeout, true
	}
	return ErrorUnknown, false
}
