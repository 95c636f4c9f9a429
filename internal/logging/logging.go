// Package logging provides structured logging for rendezcode's two
// session state machines. A rendezvous session logs many events under
// the same channel-id and role, so this package centers on WithSession,
// a binding helper, rather than just wrapping slog.New.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a new structured logger with the specified level and format.
// Supported levels: debug, info, warn, error
// Supported formats: text, json
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
// An unrecognized level falls back to info, and the fallback itself is
// reported as a warning through the logger it just built, rather than
// being silently swallowed — a misconfigured config.yaml log.level
// should be visible in the very logs it controls.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	lvl, recognized := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if !recognized && level != "" {
		logger.Warn("unrecognized log level, defaulting to info", KeyLevel, level)
	}
	return logger
}

// parseLevel converts a string log level to slog.Level. recognized is
// false when level matched none of the known names, in which case lvl
// is slog.LevelInfo.
func parseLevel(level string) (lvl slog.Level, recognized bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithSession binds the two attributes that identify a rendezvous
// session for its entire lifetime — channel-id and role — onto logger.
// internal/session calls this once a channel-id is known and logs
// through the result from then on, so call sites add only the
// event-specific attributes (state, endpoint, error, ...) instead of
// repeating channel-id and role on every line.
func WithSession(logger *slog.Logger, channelID int64, role string) *slog.Logger {
	return logger.With(KeyChannelID, channelID, KeyRole, role)
}

// Common attribute keys for consistent logging across a session's lifetime.
const (
	KeyChannelID = "channel_id"
	KeySide      = "side"
	KeyRole      = "role"
	KeyState     = "state"
	KeyAttempt   = "attempt"
	KeyEndpoint  = "endpoint"
	KeyError     = "error"
	KeyWarning   = "warning"
	KeyDuration  = "duration"
	KeyExtra     = "extra_messages"
	KeyLevel     = "requested_level"
)
