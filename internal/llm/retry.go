package llm

import (
	"context"
	"errors"
	"log"
	"time"
)

// RetryPolicy bounds how often and how long a single generation may be
// attempted.
type RetryPolicy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       4 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Backoff computes exponential backoff for the given 1-based retry attempt,
// capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		return p.MaxDelay
	}
	return d
}

// RetryProvider retries transient failures of an inner provider with
// backoff. Each attempt runs under its own timeout.
type RetryProvider struct {
	inner  Provider
	policy RetryPolicy
}

// NewRetryProvider wraps p with the given policy.
func NewRetryProvider(p Provider, policy RetryPolicy) *RetryProvider {
	return &RetryProvider{inner: p, policy: policy}
}

func (r *RetryProvider) Name() string         { return r.inner.Name() }
func (r *RetryProvider) DefaultModel() string { return r.inner.DefaultModel() }

func (r *RetryProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.policy.Backoff(attempt)
			log.Printf("[llm] %s attempt %d failed: %v, retrying in %s", r.inner.Name(), attempt, lastErr, delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &LLMError{Type: ErrorTimeout, Message: "retry aborted", Err: ctx.Err(), Attempts: attempt}
			case <-timer.C:
			}
		}

		resp, err := r.attempt(ctx, req)
		if err == nil {
			resp.Attempts = attempt + 1
			return resp, nil
		}
		lastErr = withAttempts(err, attempt+1)
		if !IsRetryable(err) || ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func withAttempts(err error, n int) error {
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		llmErr.Attempts = n
		return err
	}
	return &LLMError{Type: ErrorUnknown, Message: "retry", Err: err, Attempts: n}
}

func (r *RetryProvider) attempt(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	if r.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
		defer cancel()
	}
	return r.inner.Chat(ctx, req)
}
