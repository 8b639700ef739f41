package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level orders log severities
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a configuration string to a Level. Unknown values map to
// LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the logging interface used across postbench.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// StdLogger is a Logger backed by the standard log package
type StdLogger struct {
	out   *log.Logger
	level atomic.Int32
}

// NewLogger creates a leveled logger writing to w with the standard log
// flags.
func NewLogger(w io.Writer, level Level) *StdLogger {
	l := &StdLogger{out: log.New(w, "", log.LstdFlags)}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the minimum severity written
func (l *StdLogger) SetLevel(level Level) { l.level.Store(int32(level)) }

func (l *StdLogger) logf(level Level, tag, format string, args ...interface{}) {
	if level < Level(l.level.Load()) {
		return
	}
	l.out.Printf("%s: %s", tag, fmt.Sprintf(format, args...))
}

func (l *StdLogger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}
func (l *StdLogger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, "INFO", format, args...)
}
func (l *StdLogger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, "WARN", format, args...)
}
func (l *StdLogger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, "ERROR", format, args...)
}

var defaultLogger = NewLogger(os.Stderr, LevelInfo)

// DefaultLogger writes to stderr at info level
var DefaultLogger Logger = defaultLogger

// SetDefaultLevel changes the level of DefaultLogger's initial value
func SetDefaultLevel(level Level) { defaultLogger.SetLevel(level) }
