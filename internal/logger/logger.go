// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	logLevelDebug = "debug"
	logLevelInfo  = "info"
	logLevelWarn  = "warn"
	logLevelError = "error"
)

// Log is the global logger instance. It discards everything until Init is called.
var Log = zerolog.Nop()

// Init initializes the global logger with the specified level and output format.
func Init(level string, pretty bool) {
	InitWithWriter(os.Stdout, level, pretty)
}

// InitWithWriter is Init with an explicit destination, used by tests.
func InitWithWriter(out io.Writer, level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	output := out
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	zerolog.SetGlobalLevel(ParseLevel(level))

	Log = zerolog.New(output).
		With().
		Timestamp().
		Logger()
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}

// ParseLevel converts a string log level to zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case logLevelDebug:
		return zerolog.DebugLevel
	case logLevelInfo:
		return zerolog.InfoLevel
	case logLevelWarn:
		return zerolog.WarnLevel
	case logLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevels lists the accepted level names.
func ValidLevels() []string {
	return []string{logLevelDebug, logLevelInfo, logLevelWarn, logLevelError}
}
