// Package sysutil holds process setup shared by the sgc commands.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogOptions describes the process logger.
type LogOptions struct {
	Level   string // debug|info|warn|error|fatal|panic; anything else is info
	Pretty  bool   // human readable console output instead of JSON
	Service string
	Version string
}

// ParseLevel maps a configured level name to zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	switch lvl, err := zerolog.ParseLevel(s); {
	case err != nil, s == "", lvl == zerolog.NoLevel, lvl == zerolog.Disabled, lvl == zerolog.TraceLevel:
		return zerolog.InfoLevel
	default:
		return lvl
	}
}

// SetupLogging installs the global logger every package logs through,
// including the fallback for log.Ctx on contexts without a request logger.
func SetupLogging(w io.Writer, opts LogOptions) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	ctx := zerolog.New(w).With().Timestamp().
		Str("service", FirstNonEmpty(opts.Service, "sgc-maule"))
	if opts.Version != "" {
		ctx = ctx.Str("version", opts.Version)
	}
	log.Logger = ctx.Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return log.Logger
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
