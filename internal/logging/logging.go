// Package logging builds the process logger: charmbracelet/log output
// behind a log/slog front end, so services only see *slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	// Output defaults to os.Stderr.
	Output io.Writer

	// Level is one of debug, info, warn or error. Empty means info.
	Level string

	// Verbose forces debug level.
	Verbose bool

	// Prefix is printed before every line.
	Prefix string
}

// ParseLevel maps a config level name to a charmbracelet/log level.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return log.InfoLevel, nil
	case "warning":
		return log.WarnLevel, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// New returns a slog logger writing through charmbracelet/log.
func New(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		lvl = log.DebugLevel
	}

	handler := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
		Prefix:          opts.Prefix,
	})
	return slog.New(handler), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
