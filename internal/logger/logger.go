package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns the application logger: human readable in development, JSON
// otherwise. An unknown level falls back to info.
func New(environment, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
		if environment == "development" {
			lvl = zerolog.DebugLevel
		}
	}

	if environment == "production" {
		return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("service", "tree-census").Logger()
	}

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}
