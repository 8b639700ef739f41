package dispatch

import (
	"fmt"
	"io"
	"sync"

	"github.com/meftunca/postbench/pkg/common"
)

// Reporter receives exactly one report per run
type Reporter interface {
	Report(res *Result, err error)
}

// LogReporter writes the report line through a logger, at error level when
// the batch aborted.
type LogReporter struct {
	Logger common.Logger
}

func (r *LogReporter) Report(res *Result, err error) {
	if err != nil {
		r.Logger.Errorf("%s", FormatReport(res, err))
		return
	}
	r.Logger.Infof("%s", FormatReport(res, err))
}

// LineReporter writes the report line to W, one line per run
type LineReporter struct {
	W  io.Writer
	mu sync.Mutex
}

func (r *LineReporter) Report(res *Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.W, FormatReport(res, err))
}

// MultiReporter fans a report out to several reporters
type MultiReporter []Reporter

func (m MultiReporter) Report(res *Result, err error) {
	for _, r := range m {
		r.Report(res, err)
	}
}
