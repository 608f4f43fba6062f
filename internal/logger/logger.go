// Package logger wraps zerolog with the constructors and context helpers the
// API uses. *Logger embeds zerolog.Logger, so the full zerolog API is
// available directly.
package logger

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger struct {
	zerolog.Logger
}

// New builds a JSON logger on stdout tagged with role (e.g. "api", "sweeper").
// Development environments get debug level; everything else starts at info.
func New(role, appEnv string) *Logger {
	return newLogger(os.Stdout, role, appEnv)
}

func newLogger(w io.Writer, role, appEnv string) *Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	l := zerolog.New(w).Level(level).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()
	return &Logger{l}
}

// Nop discards everything; meant for tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// With returns a child logger carrying one extra string field.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{l.Logger.With().Str(key, value).Logger()}
}

// FromContext returns the request-scoped logger attached by the HTTP
// middleware, or a disabled logger when none is attached.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
