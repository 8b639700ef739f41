package types

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Timer related errors
	ErrCodeTimerAlreadyRunning ErrorCode = "TIMER_ALREADY_RUNNING"
	ErrCodeTimerNotRunning     ErrorCode = "TIMER_NOT_RUNNING"

	// Dispatch related errors
	ErrCodeRequestFailed ErrorCode = "REQUEST_FAILED"
	ErrCodeBatchAborted  ErrorCode = "BATCH_ABORTED"
	ErrCodeCanceled      ErrorCode = "CANCELED"

	// Network related errors
	ErrCodeNetworkError ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"

	// Serialization related errors
	ErrCodeSerializationError   ErrorCode = "SERIALIZATION_ERROR"
	ErrCodeDeserializationError ErrorCode = "DESERIALIZATION_ERROR"
	ErrCodeCompressionError     ErrorCode = "COMPRESSION_ERROR"
	ErrCodeDecompressionError   ErrorCode = "DECOMPRESSION_ERROR"

	// Configuration related errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Storage related errors
	ErrCodeStorageError ErrorCode = "STORAGE_ERROR"
	ErrCodeKeyNotFound  ErrorCode = "KEY_NOT_FOUND"
)

// Sentinels for errors.Is matching. Comparison is by code only.
var (
	ErrTimerAlreadyRunning = NewProbeError(ErrCodeTimerAlreadyRunning, "timer is running, use Stop to stop it")
	ErrTimerNotRunning     = NewProbeError(ErrCodeTimerNotRunning, "timer is not running, use Start to start it")
	ErrRequestFailed       = NewProbeError(ErrCodeRequestFailed, "request failed")
	ErrBatchAborted        = NewProbeError(ErrCodeBatchAborted, "batch aborted")
	ErrKeyNotFound         = NewProbeError(ErrCodeKeyNotFound, "key not found")
)

// ProbeError represents a structured error in postbench
type ProbeError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"cause,omitempty"`
}

// NewProbeError creates a new ProbeError
func NewProbeError(code ErrorCode, message string) *ProbeError {
	return &ProbeError{
		Code:      code,
		Message:   message,
		Details:   make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// NewProbeErrorWithCause creates a new ProbeError with a cause
func NewProbeErrorWithCause(code ErrorCode, message string, cause error) *ProbeError {
	err := NewProbeError(code, message)
	err.Cause = cause
	return err
}

// WithDetail adds a detail to the error
func (e *ProbeError) WithDetail(key string, value interface{}) *ProbeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface
func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// IsCode checks if this error is of a specific code
func (e *ProbeError) IsCode(code ErrorCode) bool {
	return e.Code == code
}

// Is reports whether target is a ProbeError with the same code
func (e *ProbeError) Is(target error) bool {
	if pe, ok := target.(*ProbeError); ok {
		return e.Code == pe.Code
	}
	return false
}

// ErrInvalidConfig creates an invalid configuration error
func ErrInvalidConfig(field string, value interface{}) *ProbeError {
	return NewProbeError(ErrCodeInvalidConfig, fmt.Sprintf("invalid configuration value for %s", field)).
		WithDetail("field", field).
		WithDetail("value", value)
}

// ErrSerializationError creates a serialization error
func ErrSerializationError(format string, cause error) *ProbeError {
	return NewProbeErrorWithCause(ErrCodeSerializationError, fmt.Sprintf("serialization failed for format: %s", format), cause).
		WithDetail("format", format)
}

// ErrDeserializationError creates a deserialization error
func ErrDeserializationError(format string, cause error) *ProbeError {
	return NewProbeErrorWithCause(ErrCodeDeserializationError, fmt.Sprintf("deserialization failed for format: %s", format), cause).
		WithDetail("format", format)
}

// ErrCompressionError creates a compression error
func ErrCompressionError(algorithm string, cause error) *ProbeError {
	return NewProbeErrorWithCause(ErrCodeCompressionError, fmt.Sprintf("compression failed for algorithm: %s", algorithm), cause).
		WithDetail("algorithm", algorithm)
}

// ErrDecompressionError creates a decompression error
func ErrDecompressionError(algorithm string, cause error) *ProbeError {
	return NewProbeErrorWithCause(ErrCodeDecompressionError, fmt.Sprintf("decompression failed for algorithm: %s", algorithm), cause).
		WithDetail("algorithm", algorithm)
}

// ErrNetworkError creates a network error
func ErrNetworkError(operation string, cause error) *ProbeError {
	return NewProbeErrorWithCause(ErrCodeNetworkError, fmt.Sprintf("network operation failed: %s", operation), cause).
		WithDetail("operation", operation)
}

// ErrTimeout creates a timeout error
func ErrTimeout(operation string, cause error) *ProbeError {
	return NewProbeErrorWithCause(ErrCodeTimeout, fmt.Sprintf("operation timed out: %s", operation), cause).
		WithDetail("operation", operation)
}

// ErrStorageError creates a storage error
func ErrStorageError(operation string, cause error) *ProbeError {
	return NewProbeErrorWithCause(ErrCodeStorageError, fmt.Sprintf("storage operation failed: %s", operation), cause)
}
