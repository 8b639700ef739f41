package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbeErrorIsByCode(t *testing.T) {
	err := NewProbeError(ErrCodeTimerNotRunning, "other message")
	assert.True(t, errors.Is(err, ErrTimerNotRunning))
	assert.False(t, errors.Is(err, ErrTimerAlreadyRunning))

	wrapped := fmt.Errorf("stop: %w", err)
	assert.True(t, errors.Is(wrapped, ErrTimerNotRunning))
}

func TestProbeErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	err := NewProbeErrorWithCause(ErrCodeNetworkError, "dial failed", cause).WithDetail("host", "127.0.0.1")

	assert.Equal(t, "[NETWORK_ERROR] dial failed: boom", err.Error())
	assert.Equal(t, "127.0.0.1", err.Details["host"])
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.IsCode(ErrCodeNetworkError))
}

func TestRequestFailure(t *testing.T) {
	t.Run("Status", func(t *testing.T) {
		f := &RequestFailure{Index: 2, Key: "test-2", URL: "http://x/collections", StatusCode: 500}
		assert.Equal(t, "request 2 (test-2) to http://x/collections failed: status 500", f.Error())
		assert.ErrorIs(t, f, ErrRequestFailed)
	})

	t.Run("Transport", func(t *testing.T) {
		cause := ErrNetworkError("post", errors.New("connection refused"))
		f := &RequestFailure{Index: 0, Key: "test-0", URL: "http://x", Cause: cause}
		assert.Contains(t, f.Error(), "connection refused")
		assert.ErrorIs(t, f, ErrRequestFailed)

		var pe *ProbeError
		assert.True(t, errors.As(f, &pe))
		assert.Equal(t, ErrCodeNetworkError, pe.Code)
	})
}

func TestBatchAbortedError(t *testing.T) {
	failure := &RequestFailure{Index: 2, Key: "test-2", URL: "http://x", StatusCode: 503}
	err := &BatchAbortedError{Completed: 2, Total: 5, Elapsed: 1500 * time.Nanosecond, Cause: failure}

	assert.Equal(t, 3, err.Remaining())
	assert.ErrorIs(t, err, ErrBatchAborted)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "after 2 of 5 requests")
	assert.Contains(t, err.Error(), "1500 ns")

	var rf *RequestFailure
	assert.True(t, errors.As(err, &rf))
	assert.Equal(t, 503, rf.StatusCode)
}
