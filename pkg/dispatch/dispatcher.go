// Package dispatch runs one batch of synthetic payloads against a target
// endpoint and measures the batch with a single Timer.
//
// Two scheduling models are supported and every result states which one
// produced it, because they measure different quantities:
//
//   - sequential (default): each POST is awaited before the next is issued,
//     in payload index order. Elapsed time is the sum of all round trips.
//   - concurrent: POSTs are issued by a bounded worker pool. Elapsed time is
//     the wall clock time of the overlapped work and per-payload completion
//     order is not guaranteed.
//
// In both models the Timer is started once before the first request and
// stopped once after the last completion, on every exit path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/meftunca/postbench/pkg/client"
	"github.com/meftunca/postbench/pkg/common"
	"github.com/meftunca/postbench/pkg/config"
	"github.com/meftunca/postbench/pkg/payload"
	"github.com/meftunca/postbench/pkg/timer"
	"github.com/meftunca/postbench/pkg/types"
)

// Recorder receives per-request and per-batch observations
type Recorder interface {
	RecordRequest(success bool, statusCode int)
	RecordBatchStart(mode string)
	RecordBatch(mode string, aborted bool, completed int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(bool, int)                      {}
func (nopRecorder) RecordBatchStart(string)                      {}
func (nopRecorder) RecordBatch(string, bool, int, time.Duration) {}

// Result describes one run. On abort it carries the partial measurement.
type Result struct {
	RunID     string              `json:"run_id"`
	Mode      config.DispatchMode `json:"mode"`
	URL       string              `json:"url"`
	Total     int                 `json:"total"`
	Completed int                 `json:"completed"`
	Elapsed   time.Duration       `json:"elapsed"`
}

// Dispatcher sends batches through a client.Poster. It owns one Timer and
// runs one batch at a time; concurrent calls are serialized.
type Dispatcher struct {
	cfg      config.DispatchConfig
	timer    *timer.Timer
	reporter Reporter
	recorder Recorder
	logger   common.Logger
	newRunID func() string

	mu sync.Mutex
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithReporter sets where the duration line of each run goes
func WithReporter(r Reporter) Option {
	return func(d *Dispatcher) { d.reporter = r }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithLogger sets the logger used for progress messages
func WithLogger(l common.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock replaces the Timer's clock
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.timer = timer.NewWithClock(now) }
}

// WithRunID replaces the run id generator
func WithRunID(f func() string) Option {
	return func(d *Dispatcher) { d.newRunID = f }
}

// New creates a dispatcher. An empty mode selects sequential dispatch and a
// non-positive concurrency selects one worker.
func New(cfg config.DispatchConfig, opts ...Option) *Dispatcher {
	if cfg.Mode == "" {
		cfg.Mode = config.ModeSequential
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	d := &Dispatcher{
		cfg:      cfg,
		timer:    timer.New(),
		recorder: nopRecorder{},
		logger:   common.DefaultLogger,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.reporter == nil {
		d.reporter = &LogReporter{Logger: d.logger}
	}
	return d
}

// Mode returns the scheduling model of this dispatcher
func (d *Dispatcher) Mode() config.DispatchMode {
	return d.cfg.Mode
}

// Run generates a batch of batchSize payloads and dispatches it to targetURL.
func (d *Dispatcher) Run(ctx context.Context, batchSize int, targetURL string, poster client.Poster) (*Result, error) {
	batch, err := payload.NewBatch(batchSize)
	if err != nil {
		return nil, err
	}
	return d.RunBatch(ctx, batch, targetURL, poster)
}

// RunBatch dispatches batch to targetURL and reports the elapsed time.
//
// The first failed request aborts the batch: remaining payloads are not sent
// and already sent requests are not compensated. The returned error is then
// a *types.BatchAbortedError wrapping the *types.RequestFailure, and the
// Result holds the measurement up to the abort.
func (d *Dispatcher) RunBatch(ctx context.Context, batch payload.Batch, targetURL string, poster client.Poster) (res *Result, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if poster == nil {
		return nil, types.ErrInvalidConfig("poster", nil)
	}
	switch d.cfg.Mode {
	case config.ModeSequential, config.ModeConcurrent:
	default:
		return nil, types.ErrInvalidConfig("dispatch mode", d.cfg.Mode)
	}

	mode := string(d.cfg.Mode)
	res = &Result{
		RunID: d.newRunID(),
		Mode:  d.cfg.Mode,
		URL:   targetURL,
		Total: len(batch),
	}

	if err := d.timer.Start(); err != nil {
		return nil, err
	}
	d.recorder.RecordBatchStart(mode)
	d.logger.Debugf("batch %s started: %d payloads to %s (%s)", res.RunID, res.Total, targetURL, mode)

	defer func() {
		elapsed, stopErr := d.timer.Stop()
		res.Elapsed = elapsed
		if stopErr != nil {
			err = errors.Join(err, stopErr)
		}

		var aborted *types.BatchAbortedError
		if errors.As(err, &aborted) {
			aborted.Elapsed = elapsed
		}

		if p := recover(); p != nil {
			d.recorder.RecordBatch(mode, true, res.Completed, elapsed)
			d.logger.Errorf("batch %s panicked after %d ns: %v", res.RunID, elapsed.Nanoseconds(), p)
			panic(p)
		}

		d.recorder.RecordBatch(mode, err != nil, res.Completed, elapsed)
		d.reporter.Report(res, err)
	}()

	var dispatchErr error
	switch d.cfg.Mode {
	case config.ModeConcurrent:
		res.Completed, dispatchErr = d.dispatchConcurrent(ctx, batch, targetURL, poster)
	default:
		res.Completed, dispatchErr = d.dispatchSequential(ctx, batch, targetURL, poster)
	}

	if dispatchErr != nil {
		return res, &types.BatchAbortedError{
			Completed: res.Completed,
			Total:     res.Total,
			Cause:     dispatchErr,
		}
	}
	return res, nil
}

func (d *Dispatcher) dispatchSequential(ctx context.Context, batch payload.Batch, targetURL string, poster client.Poster) (int, error) {
	for i, p := range batch {
		if err := ctx.Err(); err != nil {
			return i, canceled(err)
		}
		if err := d.post(ctx, i, p, targetURL, poster); err != nil {
			return i, err
		}
	}
	return len(batch), nil
}

// dispatchConcurrent stops handing out payloads once a request fails or ctx
// is done. Requests already in flight finish or observe the cancellation.
func (d *Dispatcher) dispatchConcurrent(ctx context.Context, batch payload.Batch, targetURL string, poster client.Poster) (int, error) {
	var completed atomic.Int64

	workers := pool.New().
		WithMaxGoroutines(d.cfg.Concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i, p := range batch {
		workers.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return canceled(err)
			}
			if err := d.post(ctx, i, p, targetURL, poster); err != nil {
				return err
			}
			completed.Add(1)
			return nil
		})
	}

	err := workers.Wait()
	return int(completed.Load()), err
}

// post issues one request and normalizes its failure to a
// *types.RequestFailure that identifies the payload.
func (d *Dispatcher) post(ctx context.Context, index int, p payload.Payload, targetURL string, poster client.Poster) error {
	err := poster.Post(ctx, targetURL, p)
	if err == nil {
		d.recorder.RecordRequest(true, 0)
		return nil
	}

	failure := &types.RequestFailure{Index: index, Key: p.Key, URL: targetURL, Cause: err}
	var rf *types.RequestFailure
	if errors.As(err, &rf) {
		failure.StatusCode = rf.StatusCode
		failure.Cause = rf.Cause
		if rf.URL != "" {
			failure.URL = rf.URL
		}
	}

	d.recorder.RecordRequest(false, failure.StatusCode)
	d.logger.Debugf("request %d failed: %v", index, failure)
	return failure
}

func canceled(cause error) error {
	return types.NewProbeErrorWithCause(types.ErrCodeCanceled, "batch canceled", cause)
}

// FormatReport renders the single human-readable line of a run
func FormatReport(res *Result, err error) string {
	if res == nil {
		return fmt.Sprintf("batch failed to start: %v", err)
	}
	if err != nil {
		return fmt.Sprintf("batch %s aborted: %d/%d requests completed, elapsed time: %d ns (%s): %v",
			res.RunID, res.Completed, res.Total, res.Elapsed.Nanoseconds(), res.Mode, err)
	}
	return fmt.Sprintf("batch %s completed: %d/%d requests, elapsed time: %d ns (%s)",
		res.RunID, res.Completed, res.Total, res.Elapsed.Nanoseconds(), res.Mode)
}
