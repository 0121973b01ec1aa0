// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	// Tweets go to stdout, so logs must not.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Component loggers copy the
// global logger when created, so Setup must run before clients, paginators
// and aggregators are constructed.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ValidateLevel reports an error for level names Setup would not recognise.
func ValidateLevel(level LogLevel) error {
	switch strings.ToLower(string(level)) {
	case "debug", "info", "warn", "warning", "error", "disabled", "":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRun tags logger with a retrieval run ID.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithPartition tags logger with a partition index.
func WithPartition(logger zerolog.Logger, index int) zerolog.Logger {
	return logger.With().Int("partition", index).Logger()
}

// Log Level Guidelines:
//
// Debug: one line per page
//   - Page fetched / merged (window, records, new)
//   - Cache hits and 304 revalidations
//   - Window complete
//
// Info: one line per partition or run
//   - Retrieval started / complete (range, partitions, count)
//   - Partition complete (pages, kept)
//   - Server startup/shutdown
//
// Warn: failures that are reported, not fatal to the process
//   - Bad status, transport and decode failures
//   - Partition failed, retry exhausted
//   - Cache errors (request goes to the API)
//   - Page limit or stalled cursor
//
// Error: a run was aborted or the process cannot continue
//
// Context Fields:
//   - component: tweets-client, paginator, aggregator, cache, ratelimit, server
//   - run_id: retrieval run ID
//   - partition: partition index
//   - window: [startDate, endDate] of the request
//   - status: HTTP status code
//   - duration: request, partition or run duration
