// Package logging defines the leveled logger used across cookship and
// its zerolog-backed implementation.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// Logger provides structured logging for build and release operations.
// Packages accept this interface so callers can plug in their own logger.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &noopLogger{}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// zeroLogger adapts a zerolog.Logger to the Logger interface.
type zeroLogger struct {
	zl zerolog.Logger
}

// Options configures the console logger.
type Options struct {
	Out     io.Writer
	Verbose bool
	NoColor bool
}

// New builds a console logger writing to opts.Out (stderr when nil).
// Verbose lowers the level from info to debug.
func New(opts Options) Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	writer := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	zl := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return FromZerolog(zl)
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(zl zerolog.Logger) Logger {
	return &zeroLogger{zl: zl}
}

func (l *zeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Debug(), msg, keysAndValues)
}

func (l *zeroLogger) Info(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Info(), msg, keysAndValues)
}

func (l *zeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Warn(), msg, keysAndValues)
}

func (l *zeroLogger) Error(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Error(), msg, keysAndValues)
}

// emit attaches key-value pairs to the event. An odd trailing key is
// logged under "extra".
func (l *zeroLogger) emit(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			e = e.Interface("extra", kv[i])
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, isErr := kv[i+1].(error); isErr {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

// Success prints a highlighted success line for a finished operation.
func Success(format string, args ...interface{}) {
	pterm.Success.Println(fmt.Sprintf(format, args...))
}
