package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. Development gets human-readable console
// output; everything else logs JSON to stdout.
func New(appEnv string) zerolog.Logger {
	if appEnv == "development" {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
