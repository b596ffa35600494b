// Package logging provides the leveled logger used across sitesweep.
//
// Output goes to a size-rotated file when one is configured and to stderr
// otherwise. Stdout is never used; it carries the MCP stdio transport.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level orders log severities.
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
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts debug, info, warn/warning and error. Empty means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Options configures New.
type Options struct {
	File       string // empty logs to stderr
	Level      string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// Logger is a leveled wrapper over the standard logger. A nil *Logger
// discards everything.
type Logger struct {
	l     *log.Logger
	level Level
	out   io.Closer
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.File == "" {
		return NewWriter(os.Stderr, level), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	lg := NewWriter(rotator, level)
	lg.out = rotator
	return lg, nil
}

// NewWriter logs to w at the given level.
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{l: log.New(w, "sitesweep ", log.LstdFlags), level: level}
}

// Discard returns a logger that drops all output.
func Discard() *Logger {
	return NewWriter(io.Discard, LevelError+1)
}

// Close releases the rotating file, if any.
func (lg *Logger) Close() error {
	if lg == nil || lg.out == nil {
		return nil
	}
	return lg.out.Close()
}

func (lg *Logger) logf(level Level, format string, args ...any) {
	if lg == nil || level < lg.level {
		return
	}
	lg.l.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

func (lg *Logger) Debugf(format string, args ...any) { lg.logf(LevelDebug, format, args...) }
func (lg *Logger) Infof(format string, args ...any)  { lg.logf(LevelInfo, format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.logf(LevelWarn, format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.logf(LevelError, format, args...) }
