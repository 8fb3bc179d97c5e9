// Package log provides disktree's process-wide structured logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured by Init.
var Logger zerolog.Logger

// Level is a configured log verbosity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// zerologLevels maps disktree's Level enum onto zerolog's, so Init
// resolves a level with a lookup instead of a switch.
var zerologLevels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// Init configures the global Logger. Safe to call once at process
// startup, before any component logger is derived from it.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(resolveLevel(cfg.Level))
	Logger = zerolog.New(writerFor(cfg)).With().Timestamp().Logger()
}

func resolveLevel(l Level) zerolog.Level {
	if zl, ok := zerologLevels[l]; ok {
		return zl
	}
	return zerolog.InfoLevel
}

// writerFor picks the destination writer: raw JSON lines when
// cfg.JSONOutput is set, otherwise zerolog's human-readable console
// formatter, both wrapping cfg.Output (or stdout if unset).
func writerFor(cfg Config) io.Writer {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.JSONOutput {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}

// WithComponent returns a child logger tagged with the given
// component name, the convention the packages that log (mutator,
// scheduler) use to identify their log lines (e.g.
// log.WithComponent("scheduler")).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithScanID returns a child logger tagged with a scan job ID.
func WithScanID(scanID string) zerolog.Logger {
	return Logger.With().Str("scan_id", scanID).Logger()
}

// WithRootURI returns a child logger tagged with a scan root URI.
func WithRootURI(rootURI string) zerolog.Logger {
	return Logger.With().Str("root_uri", rootURI).Logger()
}
