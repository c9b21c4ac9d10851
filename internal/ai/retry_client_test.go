package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklens/internal/retry"
	"tasklens/pkg/types"
)

func fastRetryConfig(attempts int) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestMockClient_Process(t *testing.T) {
	client := NewMockClient()

	resp, err := client.Process(context.Background(), &Request{
		ID:           "req-1",
		TaskID:       "task-1",
		Prompt:       "summarize this",
		OutputFormat: types.FormatMarkdown,
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, types.FormatMarkdown, resp.Format)
	assert.NotEmpty(t, resp.Content)
}

func TestRetryingClient_RetriesRetryableFailures(t *testing.T) {
	// First request fails retryably, the retry succeeds.
	mock := &MockClient{FailEvery: 1, Retryable: true}
	mock.FailEvery = 3 // fail on request 3, 6, ...
	client := NewRetryingClient(mock, fastRetryConfig(3))

	// Burn two successes so the next Process hits the failing request first.
	_, _ = mock.Process(context.Background(), &Request{ID: "a"})
	_, _ = mock.Process(context.Background(), &Request{ID: "b"})

	resp, err := client.Process(context.Background(), &Request{ID: "c"})
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, 4, mock.Requests())
}

func TestRetryingClient_DoesNotRetryPermanentFailures(t *testing.T) {
	mock := &MockClient{FailEvery: 1, Retryable: false} // every request fails permanently
	client := NewRetryingClient(mock, fastRetryConfig(5))

	_, err := client.Process(context.Background(), &Request{ID: "a"})
	require.Error(t, err)
	assert.Equal(t, 1, mock.Requests(), "permanent failure must not be retried")
}

func TestMockClient_CancelledContext(t *testing.T) {
	client := &MockClient{ResponseDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Process(ctx, &Request{ID: "a"})
	assert.Error(t, err)
}
