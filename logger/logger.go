// Package logger builds the zerolog logger shared by all components.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New creates a logger with the given level and format ("console" or
// "json"). Unknown levels fall back to info.
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
