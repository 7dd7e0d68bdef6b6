// Package logging sets up subsystem loggers backed by decred/slog with an
// optional rotating log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Logger is accepted by every component constructor. All logging goes
// through it.
type Logger = slog.Logger

// Disabled discards everything. Components fall back to it when given a
// nil Logger.
var Disabled Logger = slog.Disabled

// Subsystem tags.
const (
	SubsystemBoost   = "BOST"
	SubsystemHistory = "HIST"
	SubsystemNetwork = "NTWK"
	SubsystemFeeRate = "FEER"
	SubsystemMain    = "MAIN"
)

const maxLogRolls = 8

// LoggerMaker creates subsystem loggers with predefined levels.
type LoggerMaker struct {
	*slog.Backend
	DefaultLevel slog.Level
	Levels       map[string]slog.Level
}

// ParseLevel maps a level name such as "debug" to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	lvl, ok := slog.LevelFromString(s)
	if !ok {
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
	return lvl, nil
}

// NewLoggerMaker writes all subsystems to w at the named default level.
func NewLoggerMaker(w io.Writer, level string) (*LoggerMaker, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return &LoggerMaker{
		Backend:      slog.NewBackend(w),
		DefaultLevel: lvl,
		Levels:       make(map[string]slog.Level),
	}, nil
}

// NewLogger creates the logger for subsystem name, honoring any level set
// for it in Levels.
func (lm *LoggerMaker) NewLogger(name string) Logger {
	lvl, ok := lm.Levels[name]
	if !ok {
		lvl = lm.DefaultLevel
	}
	logger := lm.Backend.Logger(name)
	logger.SetLevel(lvl)
	return logger
}

// SubLogger creates a logger named "parent[name]" at the parent's level.
func (lm *LoggerMaker) SubLogger(parent, name string) Logger {
	lvl, ok := lm.Levels[parent]
	if !ok {
		lvl = lm.DefaultLevel
	}
	logger := lm.Backend.Logger(fmt.Sprintf("%s[%s]", parent, name))
	logger.SetLevel(lvl)
	return logger
}

// SetLevelsFromMap overrides per-subsystem levels.
func (lm *LoggerMaker) SetLevelsFromMap(levels map[string]slog.Level) {
	for name, lvl := range levels {
		lm.Levels[name] = lvl
	}
}

type logWriter struct {
	*rotator.Rotator
	stdout bool
}

func (w logWriter) Write(p []byte) (int, error) {
	if w.stdout {
		os.Stdout.Write(p)
	}
	return w.Rotator.Write(p)
}

// InitLogging writes logs to a rotating logFile, and to stdout as well
// when stdout is set. An empty logFile logs to stdout only. The returned
// func closes the rotator.
func InitLogging(logFile, level string, stdout bool) (*LoggerMaker, func(), error) {
	if logFile == "" {
		lm, err := NewLoggerMaker(os.Stdout, level)
		return lm, func() {}, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return nil, nil, fmt.Errorf("logging: create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 32*1024, false, maxLogRolls)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: create file rotator: %w", err)
	}
	lm, err := NewLoggerMaker(logWriter{r, stdout}, level)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return lm, func() { r.Close() }, nil
}

// OrDisabled returns log, or Disabled when log is nil.
func OrDisabled(log Logger) Logger {
	if log == nil {
		return Disabled
	}
	return log
}
