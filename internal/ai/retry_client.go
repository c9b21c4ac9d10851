package ai

import (
	"context"

	"tasklens/internal/retry"
)

// RetryingClient wraps a Client with exponential backoff on failures the
// provider marks retryable.
type RetryingClient struct {
	inner   Client
	retrier *retry.Retrier
}

// NewRetryingClient wraps client with the given retry configuration.
// A nil config uses the defaults.
func NewRetryingClient(client Client, config *retry.Config) *RetryingClient {
	return &RetryingClient{
		inner:   client,
		retrier: retry.New(config),
	}
}

// Process implements the Client interface.
func (c *RetryingClient) Process(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		resp, opErr = c.inner.Process(ctx, req)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
