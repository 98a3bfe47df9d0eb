package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or target type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Pipeline Errors.

	// ErrProvider indicates a transient reasoning-service failure: transport,
	// timeout, authentication or rate limiting. Retried within a stage.
	ErrProvider = errors.New("provider error")

	// ErrMalformedResponse indicates a reasoning call returned content that
	// could not be interpreted. Treated as retryable.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrSchemaViolation indicates a stage output did not match the expected
	// structure. Always recovered locally by defaulting.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrBudgetExceeded signals that the exploration budget refused more
	// content. It ends exploration early and is not a fault.
	ErrBudgetExceeded = errors.New("exploration budget exceeded")

	// ErrRunCancelled indicates the run was cancelled before completion.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrCallTimeout indicates a single reasoning call exceeded its
	// per-call timeout. Retryable like a provider error.
	ErrCallTimeout = errors.New("call timed out")
)

// ProviderError wraps a failure reported by a reasoning-service provider.
// It matches ErrProvider via errors.Is and unwraps to the cause.
type ProviderError struct {
	// Provider names the backend, e.g. "openai".
	Provider string

	// StatusCode is the HTTP status, or 0 when the request never completed.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: status, Err: err}
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrProvider.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// StageFailure reports that a pipeline stage exhausted its retry budget.
// It is fatal to the run.
type StageFailure struct {
	// Stage is the stage that failed.
	Stage Stage

	// Err is the last underlying error.
	Err error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the last underlying error.
func (e *StageFailure) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err should be retried within a stage.
// Provider failures, malformed responses and timeouts are retryable;
// cancellation and invalid input are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRunCancelled) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrLLMUnavailable) {
		return false
	}
	return errors.Is(err, ErrProvider) || errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCallTimeout)
}

// maxErrorBody caps how much of a provider error body is kept.
const maxErrorBody = 500

// StatusError classifies a non-success HTTP status reported by a provider.
// 429 wraps ErrRateLimited; 401 and 403 wrap ErrLLMUnavailable and 400, 404
// and 422 wrap ErrInvalidInput, so neither is retried.
func StatusError(provider string, status int, body string) *ProviderError {
	body = strings.TrimSpace(body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	var cause error
	switch status {
	case 429:
		cause = ErrRateLimited
	case 401, 403:
		cause = ErrLLMUnavailable
	case 400, 404, 422:
		cause = ErrInvalidInput
	}
	switch {
	case cause == nil && body == "":
		cause = errors.New("request failed")
	case cause == nil:
		cause = errors.New(body)
	case body != "":
		cause = fmt.Errorf("%w: %s", cause, body)
	}
	return NewProviderError(provider, status, cause)
}
