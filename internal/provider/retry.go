package provider

import (
	"context"
	"time"
)

// WithLinearRetry runs attempt up to maxRetries+1 times with a linear
// backoff (n seconds before the n-th retry), matching the teacher's
// CallLLM retry loop (internal/llm/openai/client.go). Shared by both
// dialect adapters so the backoff policy is defined once.
func WithLinearRetry(ctx context.Context, maxRetries int, onRetry func(attempt int, err error), attempt func() error) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		lastErr = attempt()
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			if onRetry != nil {
				onRetry(i+1, lastErr)
			}
			wait := time.Duration(i+1) * time.Second
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
