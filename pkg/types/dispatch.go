package types

import (
	"fmt"
	"time"
)

// RequestFailure reports a single POST that did not succeed, either because
// the transport failed or because the target answered with a non-2xx status.
type RequestFailure struct {
	Index      int    `json:"index"`
	Key        string `json:"key,omitempty"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	Cause      error  `json:"cause,omitempty"`
}

func (f *RequestFailure) Error() string {
	prefix := fmt.Sprintf("request to %s failed", f.URL)
	if f.Key != "" {
		prefix = fmt.Sprintf("request %d (%s) to %s failed", f.Index, f.Key, f.URL)
	}

	switch {
	case f.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", prefix, f.StatusCode)
	case f.Cause != nil:
		return fmt.Sprintf("%s: %v", prefix, f.Cause)
	default:
		return prefix
	}
}

// Unwrap returns the transport or serialization error, if any
func (f *RequestFailure) Unwrap() error {
	return f.Cause
}

// Is matches ErrRequestFailed
func (f *RequestFailure) Is(target error) bool {
	pe, ok := target.(*ProbeError)
	return ok && pe.Code == ErrCodeRequestFailed
}

// BatchAbortedError is returned when a failure interrupts a running batch.
// Elapsed is the time measured up to the abort.
type BatchAbortedError struct {
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Elapsed   time.Duration `json:"elapsed"`
	Cause     error         `json:"cause,omitempty"`
}

func (e *BatchAbortedError) Error() string {
	return fmt.Sprintf("batch aborted after %d of %d requests (elapsed %d ns): %v",
		e.Completed, e.Total, e.Elapsed.Nanoseconds(), e.Cause)
}

// Remaining returns how many payloads were not confirmed as sent
func (e *BatchAbortedError) Remaining() int {
	return e.Total - e.Completed
}

// Unwrap returns the failure that aborted the batch
func (e *BatchAbortedError) Unwrap() error {
	return e.Cause
}

// Is matches ErrBatchAborted
func (e *BatchAbortedError) Is(target error) bool {
	pe, ok := target.(*ProbeError)
	return ok && pe.Code == ErrCodeBatchAborted
}
