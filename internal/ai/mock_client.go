package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tasklens/internal/taskerr"
)

// MockClient implements Client for tests and local development.
type MockClient struct {
	ResponseDelay time.Duration
	// FailEvery makes every Nth request fail; zero disables failures.
	FailEvery int
	// Retryable marks injected failures as retryable.
	Retryable bool

	mu    sync.Mutex
	count int
}

// NewMockClient creates a mock AI client that always succeeds.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Process implements the Client interface.
func (m *MockClient) Process(ctx context.Context, req *Request) (*Response, error) {
	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return nil, taskerr.NewAIServiceError("request cancelled", false, ctx.Err())
		}
	}

	m.mu.Lock()
	m.count++
	n := m.count
	m.mu.Unlock()

	if m.FailEvery > 0 && n%m.FailEvery == 0 {
		return nil, taskerr.NewAIServiceError(
			fmt.Sprintf("simulated failure on request %d", n), m.Retryable, nil)
	}

	return &Response{
		Content:    fmt.Sprintf("mock response for task %s (%d chars of prompt)", req.TaskID, len(req.Prompt)),
		Format:     req.OutputFormat,
		Confidence: 0.95,
		Timestamp:  time.Now(),
		RequestID:  req.ID,
	}, nil
}

// Requests returns how many requests the mock has seen.
func (m *MockClient) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
