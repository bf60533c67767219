// Package logging builds the gateway's structured logger and, when
// configured, a wire-trace file whose name is expanded from a strftime
// pattern once, at startup; the file is not rotated afterwards.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// New builds a logger at the given level ("debug", "info", "warn",
// "error"; anything else is treated as "info"). If traceFile is
// non-empty it is expanded as a strftime pattern against the current
// time and opened for append, and a second logger is returned that
// additionally writes every record there; traceFile == "" returns a
// nil trace logger.
func New(level string, traceFile string) (*log.Logger, *log.Logger, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           parseLevel(level),
	})

	if traceFile == "" {
		return logger, nil, nil
	}

	name, err := strftime.Format(traceFile, time.Now())
	if err != nil {
		return logger, nil, fmt.Errorf("logging: trace file pattern %q: %w", traceFile, err)
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return logger, nil, fmt.Errorf("logging: open trace file %s: %w", name, err)
	}
	trace := log.NewWithOptions(io.MultiWriter(os.Stderr, f), log.Options{
		ReportTimestamp: true,
		Level:           log.DebugLevel,
	})
	return logger, trace, nil
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
