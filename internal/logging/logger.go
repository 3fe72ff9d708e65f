package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a configured application logger.
// It writes to Stderr to keep Stdout free for reports and JSON-RPC.
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level) *slog.Logger {
	return NewWriter(os.Stderr, level, false)
}

// NewWriter creates a logger on w. JSON selects the JSON handler.
func NewWriter(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Standardize 'error' key to 'err'
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a flag value such as "debug" or "WARN" to a level.
// "off" and "" yield ok=false, meaning no logging.
func ParseLevel(s string) (level slog.Level, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return 0, false, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, false, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, true, nil
}

// FromFlag builds the logger for a --log-level flag value.
func FromFlag(s string) (*slog.Logger, error) {
	level, ok, err := ParseLevel(s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewNop(), nil
	}
	return New(level), nil
}
