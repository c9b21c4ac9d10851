// Package ai defines the interface to the external AI provider and the
// request/response shapes the orchestrator exchanges with it.
package ai

import (
	"context"
	"time"

	"tasklens/pkg/types"
)

// Request is a fully built AI request: injected prompt plus the security
// constraints derived from the page's classification.
type Request struct {
	ID                  string              `json:"id"`
	TaskID              string              `json:"task_id"`
	Prompt              string              `json:"prompt"`
	OutputFormat        types.OutputFormat  `json:"output_format"`
	MaxContentLength    int                 `json:"max_content_length"`
	RestrictedSelectors []string            `json:"restricted_selectors,omitempty"`
	SecurityLevel       types.SecurityLevel `json:"security_level"`
}

// Response is what the AI provider returns for one request.
type Response struct {
	Content    string             `json:"content"`
	Format     types.OutputFormat `json:"format"`
	Confidence float64            `json:"confidence"`
	Timestamp  time.Time          `json:"timestamp"`
	RequestID  string             `json:"request_id"`
}

// Client processes AI requests. Implementations may reject with a typed
// *taskerr.AIServiceError carrying a retryable flag.
type Client interface {
	Process(ctx context.Context, req *Request) (*Response, error)
}
