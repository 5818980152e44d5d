package utils

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. Every component derives subloggers from it
// so step context travels as structured fields.
var Log zerolog.Logger

func SetLogger(debug bool) {
	level := zerolog.InfoLevel

	if debug || os.Getenv("BOOTFORGE_DEBUG") != "" {
		level = zerolog.DebugLevel
	}

	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)
}
