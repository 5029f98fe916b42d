package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultService names the process in every log line unless Config.Service
// overrides it.
const DefaultService = "paymentsengine"

// Config holds logger configuration.
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // json, console
	Output io.Writer // defaults to stderr; stdout carries the balance report

	Service string
	// RunID ties together every line of one CLI invocation.
	RunID   string
	Command string
}

// New creates a new zerolog logger based on config. Amounts are logged as
// strings, so the decimal fields never go through a float.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	service := cfg.Service
	if service == "" {
		service = DefaultService
	}

	ctx := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", service)
	if cfg.RunID != "" {
		ctx = ctx.Str("run_id", cfg.RunID)
	}
	if cfg.Command != "" {
		ctx = ctx.Str("command", cfg.Command)
	}

	return ctx.Logger()
}

// ForClient returns a child logger for one client's worker.
func ForClient(logger zerolog.Logger, clientID uint16) zerolog.Logger {
	return logger.With().Uint16("client", clientID).Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
