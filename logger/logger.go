package logger

import (
	"log"
	"strings"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var LoggerEnabled = true

// Level orders log output. Names match the log levels a provisioner accepts.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "INFO"
	}
}

// ParseLevel maps a level name onto a Level. Unknown names, including "auto",
// resolve to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type DefaultLogger struct {
	name  string
	level Level
}

func NewDefaultLogger(name string) *DefaultLogger {
	return &DefaultLogger{name: name, level: LevelDebug}
}

// WithLevel drops every message below level.
func (d *DefaultLogger) WithLevel(level Level) *DefaultLogger {
	d.level = level
	return d
}

func (d *DefaultLogger) Level() Level {
	return d.level
}

func (d *DefaultLogger) Debug(format string, args ...any) {
	d.printf(LevelDebug, format, args...)
}

func (d *DefaultLogger) Info(format string, args ...any) {
	d.printf(LevelInfo, format, args...)
}

func (d *DefaultLogger) Warn(format string, args ...any) {
	d.printf(LevelWarn, format, args...)
}

func (d *DefaultLogger) Error(format string, args ...any) {
	d.printf(LevelError, format, args...)
}

func (d *DefaultLogger) printf(level Level, format string, args ...any) {
	if !LoggerEnabled || level < d.level {
		return
	}
	log.Printf("["+level.String()+"] "+d.name+" | "+format+"\n", args...)
}

type nop struct{}

// Nop discards everything.
func Nop() Logger { return nop{} }

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}
