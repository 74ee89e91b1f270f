// Package log builds the process-wide slog.Logger on top of zerolog.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog"

	"github.com/dmagro/eth-rpc-tier-router/internal/config"
)

// NewLogger returns a logger writing to stderr in the configured format.
func NewLogger(cfg config.Log) *slog.Logger {
	return New(os.Stderr, cfg)
}

// New is NewLogger with an explicit writer.
func New(w io.Writer, cfg config.Log) *slog.Logger {
	var zerologLogger zerolog.Logger
	if strings.EqualFold(cfg.Format, "json") {
		zerologLogger = zerolog.New(w)
	} else {
		zerologLogger = zerolog.New(zerolog.ConsoleWriter{Out: w})
	}
	zerologLogger = zerologLogger.With().Timestamp().Logger()

	return slog.New(slogzerolog.Option{Level: ParseLevel(cfg.Level), Logger: &zerologLogger}.NewZerologHandler())
}

// ParseLevel maps a config string to a slog level. Unknown values fall back
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

