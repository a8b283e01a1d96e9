// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger provides a small leveled logger, threaded through
// context.Context, used throughout this repository in place of bare fmt.
package logger

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"strings"

	"github.com/vaibhawvipul/fluvio/lib/color"
)

// Flags, re-exported from the standard log package so callers never need to
// import "log" themselves just to configure a Logger.
const (
	Ldate         = log.Ldate
	Ltime         = log.Ltime
	Lmicroseconds = log.Lmicroseconds
	Llongfile     = log.Llongfile
	Lshortfile    = log.Lshortfile
	LUTC          = log.LUTC
	LstdFlags     = log.LstdFlags
)

const defaultFlags = Ldate | Lmicroseconds

// LogLevel controls which of a Logger's methods actually emit output.
type LogLevel int

const (
	FatalLevel LogLevel = iota
	ErrorLevel
	WarningLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

func (l LogLevel) String() string {
	switch l {
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarningLevel:
		return "warning"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case TraceLevel:
		return "trace"
	default:
		return "unknown"
	}
}

// Set implements flag.Value so a LogLevel can be bound to a -level flag.
func (l *LogLevel) Set(s string) error {
	switch strings.ToLower(s) {
	case "fatal":
		*l = FatalLevel
	case "error":
		*l = ErrorLevel
	case "warning", "warn":
		*l = WarningLevel
	case "info":
		*l = InfoLevel
	case "debug":
		*l = DebugLevel
	case "trace":
		*l = TraceLevel
	default:
		return fmt.Errorf("invalid log level %q", s)
	}
	return nil
}

// Logger is a small leveled wrapper around the standard library's *log.Logger,
// splitting Info/Debug/Trace to one writer and Warning/Error/Fatal to
// another, with optional ANSI coloring of the level tag.
type Logger struct {
	level         LogLevel
	color         *color.Color
	goLogger      *log.Logger
	goErrorLogger *log.Logger
	prefix        interface{}
}

// NewLogger constructs a Logger at the given level, writing info, debug and
// trace output to stdout and warning-and-above output to stderr. prefix may be a string or
// any fmt.Stringer and is re-evaluated on every log call, so a counting or
// timestamp-bearing prefix works. A nil stdout/stderr discards that stream.
func NewLogger(level LogLevel, c *color.Color, stdout, stderr io.Writer, prefix interface{}) *Logger {
	if stdout == nil {
		stdout = ioutil.Discard
	}
	if stderr == nil {
		stderr = ioutil.Discard
	}
	if c == nil {
		c = color.NewColor(color.ColorNever)
	}
	return &Logger{
		level:         level,
		color:         c,
		goLogger:      log.New(stdout, "", defaultFlags),
		goErrorLogger: log.New(stderr, "", defaultFlags),
		prefix:        prefix,
	}
}

// SetFlags sets the flags used by both the info and error loggers.
func (l *Logger) SetFlags(flags int) {
	l.goLogger.SetFlags(flags)
	l.goErrorLogger.SetFlags(flags)
}

func (l *Logger) renderPrefix() string {
	if l.prefix == nil {
		return ""
	}
	return fmt.Sprint(l.prefix)
}

// calldepth 3 accounts for: Output's own frame (1), this helper (2), and the
// exported Xf method that called it (3) - leaving the Logger's caller's
// file:line in the %lshortfile/%llongfile output.
const calldepth = 3

func (l *Logger) emit(dst *log.Logger, tag string, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	dst.Output(calldepth, l.renderPrefix()+tag+msg)
}

// Tracef logs at TraceLevel.
func (l *Logger) Tracef(format string, a ...interface{}) {
	if l.level >= TraceLevel {
		l.emit(l.goLogger, "", format, a...)
	}
}

// Debugf logs at DebugLevel.
func (l *Logger) Debugf(format string, a ...interface{}) {
	if l.level >= DebugLevel {
		l.emit(l.goLogger, "", format, a...)
	}
}

// Infof logs at InfoLevel.
func (l *Logger) Infof(format string, a ...interface{}) {
	if l.level >= InfoLevel {
		l.emit(l.goLogger, "", format, a...)
	}
}

// Warningf logs at WarningLevel, to the error writer, tagged "WARNING: ".
func (l *Logger) Warningf(format string, a ...interface{}) {
	if l.level >= WarningLevel {
		l.emit(l.goErrorLogger, l.color.Yellow("WARNING: "), format, a...)
	}
}

// Errorf logs at ErrorLevel, to the error writer, tagged "ERROR: ".
func (l *Logger) Errorf(format string, a ...interface{}) {
	if l.level >= ErrorLevel {
		l.emit(l.goErrorLogger, l.color.Red("ERROR: "), format, a...)
	}
}

// Fatalf logs at FatalLevel, to the error writer, tagged "FATAL: ", and
// terminates the process, matching the standard library's log.Fatalf.
func (l *Logger) Fatalf(format string, a ...interface{}) {
	l.emit(l.goErrorLogger, l.color.Red("FATAL: "), format, a...)
	fatal()
}

type globalLoggerKeyType struct{}

// WithLogger returns a context carrying l, retrievable with LoggerFromContext.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, globalLoggerKeyType{}, l)
}

// LoggerFromContext returns the Logger stored in ctx by WithLogger, or a
// fallback InfoLevel logger to stdout/stderr if none was stored.
func LoggerFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(globalLoggerKeyType{}).(*Logger); ok {
		return l
	}
	return defaultLogger
}
