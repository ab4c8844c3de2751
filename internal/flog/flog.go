// Package flog is a thin leveled wrapper over the standard log package,
// matching the plain log.Printf style the rest of this codebase's
// ancestry uses rather than pulling in a structured logging library.
package flog

import (
	"log"
	"os"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// Logger gates log.Printf calls below its Min level. The zero value logs
// every level (Min is LevelDebug) through the standard logger, to stderr.
type Logger struct {
	Min    Level
	out    *log.Logger
}

func New(min Level) *Logger {
	return &Logger{Min: min, out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if l == nil {
		return
	}
	if level < l.Min {
		return
	}
	out := l.out
	if out == nil {
		out = log.Default()
	}
	out.Printf("["+level.String()+"] "+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// Fatalf logs at LevelError and terminates the process, mirroring
// stdlib log.Fatalf for the few call sites (cmd/fuzzctl) that need it.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
	os.Exit(1)
}
