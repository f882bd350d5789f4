// Package logging provides the zerolog-backed implementation of types.Logger
// used by every entrypoint.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"thumbnails/internal/types"
)

// Logger adapts a zerolog.Logger to the types.Logger interface.
type Logger struct {
	zl zerolog.Logger
}

var _ types.Logger = (*Logger)(nil)

// New builds a JSON logger writing to stdout at the given level. In local
// mode it writes human-readable console output instead.
func New(level, appEnv string) *Logger {
	var out io.Writer = os.Stdout
	if appEnv == "local" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, level)
}

// NewWithWriter builds a logger writing JSON lines to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	zl := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
	return &Logger{zl: zl}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Info logs at info level. args are alternating key/value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.zl.Info().Fields(args).Msg(msg)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.zl.Warn().Fields(args).Msg(msg)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.zl.Error().Fields(args).Msg(msg)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) types.Logger {
	return &Logger{zl: l.zl.With().Fields(args).Logger()}
}
