// LLM Client with retry support for transient failures.
//
// Information Hiding:
// - Retry strategy and backoff algorithm
// - Error classification logic

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultMaxAttempts is how many times a request is tried before giving up.
const DefaultMaxAttempts = 3

// Client wraps a Provider and retries transient failures with exponential
// backoff.
type Client struct {
	provider    Provider
	maxAttempts int
}

// NewClient creates a client around the given provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider, maxAttempts: DefaultMaxAttempts}
}

// NewClientWithRetries creates a client with a custom attempt limit.
func NewClientWithRetries(provider Provider, maxAttempts int) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{provider: provider, maxAttempts: maxAttempts}
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Chat sends a chat completion request, retrying transient failures.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.provider.Chat(ctx, messages)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) {
			return Response{}, err
		}
	}
	return Response{}, fmt.Errorf("chat failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// StreamChat streams a chat completion. Streaming requests are not retried:
// deltas may already have reached the caller.
func (c *Client) StreamChat(ctx context.Context, messages []ChatMessage, onDelta func(string)) (Response, error) {
	return c.provider.StreamChat(ctx, messages, onDelta)
}

// calculateBackoff returns the backoff duration for the given attempt.
func calculateBackoff(attempt int) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// retryable reports whether an error looks transient.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errLower := strings.ToLower(err.Error())
	transient := []string{"rate limit", "429", "502", "503", "timeout", "connection", "network", "overloaded"}
	for _, s := range transient {
		if strings.Contains(errLower, s) {
			return true
		}
	}
	return false
}
