// Package timer provides a reusable stopwatch with strict start/stop
// discipline. A Timer holds at most one active measurement.
package timer

import (
	"time"

	"github.com/meftunca/postbench/pkg/types"
)

// Timer measures elapsed time between Start and Stop.
//
// Readings come from time.Now, whose monotonic component makes Sub immune to
// wall clock adjustments. A Timer is not safe for concurrent use.
type Timer struct {
	now     func() time.Time
	started time.Time
	running bool
}

// New creates an idle timer backed by the system monotonic clock
func New() *Timer {
	return NewWithClock(time.Now)
}

// NewWithClock creates an idle timer that reads time from now
func NewWithClock(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Start begins a measurement. It fails with types.ErrTimerAlreadyRunning if a
// previous Start has no matching Stop; the running measurement is kept.
func (t *Timer) Start() error {
	if t.running {
		return types.ErrTimerAlreadyRunning
	}
	t.started = t.now()
	t.running = true
	return nil
}

// Stop ends the active measurement and returns the elapsed duration in
// nanoseconds. It fails with types.ErrTimerNotRunning if no measurement is
// active.
func (t *Timer) Stop() (time.Duration, error) {
	if !t.running {
		return 0, types.ErrTimerNotRunning
	}
	elapsed := t.now().Sub(t.started)
	t.started = time.Time{}
	t.running = false
	return elapsed, nil
}

// Running reports whether a measurement is active
func (t *Timer) Running() bool {
	return t.running
}
