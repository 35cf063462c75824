// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	Level   string
	Console bool
	NoColor bool
	Out     io.Writer
}

// New builds a zerolog logger. Unknown levels fall back to info.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	if opts.Console {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    opts.NoColor,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// NewDefault builds a console logger at info level on stderr.
func NewDefault() zerolog.Logger {
	return New(Options{Level: "info", Console: true})
}
