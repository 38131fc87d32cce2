package utils

import (
	"os"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/rs/zerolog"
)

// Log is the process-wide logger. Everything under pkg/ logs through it.
var Log zerolog.Logger

func init() {
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// SetLogger configures the global logger. Verbose wins over KATSU_LOG.
func SetLogger(verbose bool) {
	level := zerolog.InfoLevel
	if env := os.Getenv(constants.EnvLog); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)
}
