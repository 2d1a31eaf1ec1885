// Package logger builds the process logger.
// Components receive a *slog.Logger; records are written by zerolog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the output encoding.
type Format string

const (
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"

	// FormatConsole writes human readable colored lines.
	FormatConsole Format = "console"
)

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     string
	Format    Format
	AddCaller bool
	Service   string
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  "info",
		Format: FormatJSON,
	}
}

// ParseLevel parses a string into a zerolog level. Unknown values map to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog creates the underlying zerolog logger.
func NewZerolog(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.AddCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// New creates a *slog.Logger backed by zerolog.
func New(opts Options) *slog.Logger {
	return slog.New(NewHandler(NewZerolog(opts)))
}

// Default creates a logger with default options.
func Default() *slog.Logger {
	return New(DefaultOptions())
}

// Discard returns a logger that drops every record. Used in tests.
func Discard() *slog.Logger {
	return slog.New(NewHandler(zerolog.Nop()))
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Common attribute keys.
func EnrollmentID(id string) slog.Attr { return slog.String("enrollment_id", id) }
func StudentID(id string) slog.Attr    { return slog.String("student_id", id) }
func CourseID(id string) slog.Attr     { return slog.String("course_id", id) }
func LessonID(id string) slog.Attr     { return slog.String("lesson_id", id) }
func EventID(id string) slog.Attr      { return slog.String("event_id", id) }
func Err(err error) slog.Attr          { return slog.Any("error", err) }
