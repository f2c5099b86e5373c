package tts

import (
	"context"
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNoEngineConfigured indicates no synthesis engine has been selected
	ErrNoEngineConfigured = errors.New("no TTS engine configured - set tts.engine to gtts, google, piper or mock")

	// ErrInvalidEngine indicates an unknown engine was specified
	ErrInvalidEngine = errors.New("invalid TTS engine specified")

	// ErrEngineNotAvailable indicates the selected engine cannot run here
	ErrEngineNotAvailable = errors.New("selected TTS engine is not available")

	// ErrOutOfRange indicates a number outside the supported numeral domain
	ErrOutOfRange = errors.New("number out of range")

	// ErrSynthesisFailed indicates the synthesis engine failed
	ErrSynthesisFailed = errors.New("text synthesis failed")

	// ErrStorageFailed indicates the artifact could not be written
	ErrStorageFailed = errors.New("artifact storage failed")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// Error represents a lookup failure with a code the boundary layer can map.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel that corresponds to the error code, so callers
// can use errors.Is(err, ErrSynthesisFailed) without caring about the cause.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case ErrorCodeOutOfRange:
		return target == ErrOutOfRange
	case ErrorCodeSynthesisFailed:
		return target == ErrSynthesisFailed
	case ErrorCodeStorageFailed:
		return target == ErrStorageFailed
	case ErrorCodeTimeout:
		return target == ErrTimeout || target == ErrSynthesisFailed
	case ErrorCodeEngineUnavailable:
		return target == ErrEngineNotAvailable
	}
	return false
}

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Caller errors, never retried
	ErrorCodeOutOfRange   ErrorCode = "OUT_OF_RANGE"
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Engine errors
	ErrorCodeSynthesisFailed   ErrorCode = "SYNTHESIS_FAILED"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeTimeout           ErrorCode = "TIMEOUT"

	// Artifact store errors
	ErrorCodeStorageFailed ErrorCode = "STORAGE_FAILED"
)

// NewError creates a new error with context
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether the caller may retry the same request.
// Synthesis failures are transient; storage failures may be (disk full) but
// are left to the operator.
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrorCodeSynthesisFailed,
		ErrorCodeTimeout:
		return true
	default:
		return false
	}
}

// SynthesisError wraps an engine failure. Context deadline errors become
// TIMEOUT and an engine that cannot run at all becomes ENGINE_UNAVAILABLE,
// so the boundary can tell a slow engine from a missing or broken one.
func SynthesisError(engine string, cause error) *Error {
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		return NewError(ErrorCodeTimeout, "synthesis timed out", cause).WithContext("engine", engine)
	case errors.Is(cause, ErrEngineNotAvailable):
		return NewError(ErrorCodeEngineUnavailable, "synthesis engine unavailable", cause).WithContext("engine", engine)
	}
	return NewError(ErrorCodeSynthesisFailed, "synthesis failed", cause).WithContext("engine", engine)
}

// StorageError wraps an artifact write failure.
func StorageError(path string, cause error) *Error {
	return NewError(ErrorCodeStorageFailed, "could not store artifact", cause).WithContext("path", path)
}

// CodeOf returns the code carried by err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
