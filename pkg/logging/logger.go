// Package logging configures zerolog for the repricer and its command-line tools.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used for the "component" field.
const (
	ComponentClient   = "admin-client"
	ComponentCatalog  = "catalog"
	ComponentRepricer = "repricer"
	ComponentRates    = "rate-store"
	ComponentRunStore = "run-store"
	ComponentServer   = "server"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
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

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

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

// ParseLevel converts a level name to zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRun tags every event of logger with the batch run identifier.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// Log Level Guidelines:
//
// Debug: per-item detail
//   - Price breakdowns (rate, base, making, gst)
//   - Skipped items (no purity tag, no variant)
//   - Throttle budget and GraphQL query cost
//
// Info: normal batch progress
//   - Run start / finish with counts
//   - Page fetched (page number, item count)
//   - Variant price committed
//
// Warn: recoverable problems
//   - Variant update rejected (userErrors) or failed after retries
//   - Retry attempts and throttling waits
//
// Error: run-level failures
//   - Run aborted on a catalog transport error
//   - Missing or invalid rate record
//
// Context Fields:
//   - run_id: batch run identifier
//   - page: 1-based page number
//   - item_id / variant_id: Admin API global IDs
//   - price: committed or planned price
//   - error_class: client, server, rate_limit, network, graphql
//   - attempt: retry attempt number
