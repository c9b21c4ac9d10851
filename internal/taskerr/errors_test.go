package taskerr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorCollectsAllFields(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.ErrOrNil())

	verr.Add("name", CodeRequiredField, "name must be a non-empty string")
	verr.Add("output_format", CodeInvalidValue, "unsupported format")

	assert.True(t, verr.HasErrors())
	assert.Error(t, verr.ErrOrNil())
	assert.Contains(t, verr.Error(), "name")
	assert.Contains(t, verr.Error(), "output_format")
}

func TestIsNotFound(t *testing.T) {
	err := NewNotFoundError("task", "task-42")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", err)))
	assert.False(t, IsNotFound(errors.New("something else")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewAIServiceError("timeout", true, nil)))
	assert.False(t, IsRetryable(NewAIServiceError("bad request", false, nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsRateLimited(t *testing.T) {
	err := &RateLimitError{Limit: 30, RetryAfter: 2 * time.Second}
	assert.True(t, IsRateLimited(err))
	assert.Contains(t, err.Error(), "retry in 2s")
	assert.False(t, IsRateLimited(errors.New("plain")))
}
