package hdrjwt

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds a logger writing to stderr in the configured format.
func NewLogger(cfg LogConfig) zerolog.Logger {
	return newLogger(os.Stderr, cfg)
}

func newLogger(out io.Writer, cfg LogConfig) zerolog.Logger {
	if cfg.Format == LogFormatJSON {
		return zerolog.New(out).Level(cfg.Level).With().
			Timestamp().
			Str("component", "hdrjwt").
			Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(cfg.Level).With().
		Timestamp().
		Logger()
}
