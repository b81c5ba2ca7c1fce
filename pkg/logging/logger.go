// Package logging provides structured logging configuration using zerolog.
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
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
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

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
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
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Component names used as the "component" field.
const (
	ComponentEnricher = "enricher"
	ComponentClient   = "people-client"
	ComponentGate     = "backoff-gate"
	ComponentSource   = "id-source"
	ComponentCLI      = "enricher-cli"
)

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Individual requests to the people service
//   - Worker start/stop
//
// Info: Normal operation events
//   - Run start ("Executing GetPeopleInfo") and completion
//   - Number of IDs loaded from the source
//   - Progress every 50 processed IDs
//   - Metrics server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Per-person fetch failures (logged, run continues)
//   - Rate-limit responses and backoff pauses
//   - Retry attempts
//   - Cache or shared backoff store errors (fallback to local behaviour)
//
// Error: Error conditions requiring attention
//   - Identifier source failures (run aborted)
//   - Configuration errors
//
// Context Fields:
//   - run_id: UUID of the enrichment run
//   - worker_id: Worker index within the run
//   - person_id: ID being enriched
//   - status_code: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network, parse)
//   - retry_after: Backoff requested by the service
//   - duration: Request or run duration
//   - ttl: Cache entry TTL
