// Package response provides standardized HTTP response structures for
// the API layer.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tasklens/internal/taskerr"
)

// ErrorResponse is the JSON shape of every API error.
type ErrorResponse struct {
	Error     ErrorDetails `json:"error"`
	Timestamp string       `json:"timestamp"`
}

// ErrorDetails carries the machine-readable code plus human context.
type ErrorDetails struct {
	Code    taskerr.Code `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
}

// SuccessResponse wraps every successful API payload.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, statusCode int, code taskerr.Code, message string, details ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	d := ErrorDetails{Code: code, Message: message}
	if len(details) > 0 {
		d.Details = details[0]
	}

	resp := ErrorResponse{
		Error:     d,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// WriteSuccess writes a standardized success response.
func WriteSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := SuccessResponse{
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		WriteError(w, http.StatusInternalServerError, taskerr.CodeInternal, "failed to encode response")
	}
}

// WriteFromError maps pipeline errors to their HTTP representation.
func WriteFromError(w http.ResponseWriter, err error) {
	var (
		validation *taskerr.ValidationError
		rateLimit  *taskerr.RateLimitError
	)

	switch {
	case taskerr.IsNotFound(err):
		WriteError(w, http.StatusNotFound, taskerr.CodeNotFound, err.Error())
	case errors.As(err, &validation):
		WriteError(w, http.StatusBadRequest, taskerr.CodeValidation, "validation failed", err.Error())
	case errors.As(err, &rateLimit):
		if rateLimit.RetryAfter > 0 {
			w.Header().Set("Retry-After", rateLimit.RetryAfter.Round(time.Second).String())
		}
		WriteError(w, http.StatusTooManyRequests, taskerr.CodeRateLimited, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, taskerr.CodeInternal, err.Error())
	}
}
