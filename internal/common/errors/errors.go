// internal/common/errors/errors.go

// Package errors provides standardized error handling for the deep search
// pipeline. Provider failures never abort a search: every component has a
// degraded path, and the codes here classify what went wrong for logging,
// metrics, and the final report.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Completion provider
	ErrCodeCompletionFailed  ErrorCode = "COMPLETION_FAILED"
	ErrCodeCompletionTimeout ErrorCode = "COMPLETION_TIMEOUT"
	ErrCodeResponseShape     ErrorCode = "RESPONSE_SHAPE_INVALID"

	// Search provider
	ErrCodeSearchFailed  ErrorCode = "SEARCH_FAILED"
	ErrCodeSearchTimeout ErrorCode = "SEARCH_TIMEOUT"

	// Supporting infrastructure
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeArchiveFailed    ErrorCode = "ARCHIVE_FAILED"

	// Pipeline
	ErrCodePipelineFailed ErrorCode = "PIPELINE_FAILED"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewCompletionFailedError classifies a completion provider transport or
// auth failure. Callers fall through to their rule-based path.
func NewCompletionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionFailed,
		Message:   "Completion provider call failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionTimeoutError classifies a completion call that exceeded its
// context deadline.
func NewCompletionTimeoutError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionTimeout,
		Message:   "Completion provider timed out",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseShapeError classifies a successful provider response whose
// payload did not parse into the expected schema. Treated identically to a
// transport failure by every caller.
func NewResponseShapeError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseShape,
		Message:   "Provider response did not match expected schema",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchFailedError classifies a search provider failure. The pipeline
// treats the round as degraded (empty results), not fatal.
func NewSearchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchFailed,
		Message:   "Search provider call failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError classifies a search call that exceeded its per-round
// timeout.
func NewSearchTimeoutError(query string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Search provider timed out",
		Details:   fmt.Sprintf("query: %s", query),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError classifies a cache read/write failure; the search
// client proceeds to the network.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Search cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchiveFailedError classifies a report-archive indexing failure; the
// pipeline result is unaffected.
func NewArchiveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchiveFailed,
		Message:   "Report archive indexing failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPipelineFailedError wraps an unexpected failure during a deep search
// invocation. It is reported as a structured failure result, never thrown
// past the engine boundary.
func NewPipelineFailedError(query string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineFailed,
		Message:   "Deep search pipeline failed",
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"query": query},
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigInvalidError classifies a configuration validation failure; the
// process refuses to start.
func NewConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeCompletionFailed, ErrCodeCompletionTimeout, ErrCodeResponseShape:
		return "completion_provider"
	case ErrCodeSearchFailed, ErrCodeSearchTimeout:
		return "search_provider"
	case ErrCodeCacheUnavailable, ErrCodeArchiveFailed:
		return "infrastructure"
	case ErrCodePipelineFailed, ErrCodeConfigInvalid:
		return "pipeline"
	default:
		return "unknown"
	}
}
