package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// Handler implements slog.Handler on top of a zerolog.Logger.
type Handler struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

// NewHandler wraps a zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(logger zerolog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= toZerologLevel(level)
}

// Handle writes the record.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	var event *zerolog.Event
	switch {
	case record.Level < slog.LevelInfo:
		event = h.logger.Debug()
	case record.Level < slog.LevelWarn:
		event = h.logger.Info()
	case record.Level < slog.LevelError:
		event = h.logger.Warn()
	default:
		event = h.logger.Error()
	}
	if event == nil {
		return nil
	}

	for _, attr := range h.attrs {
		event = appendAttr(event, attr, h.groups)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = appendAttr(event, attr, h.groups)
		return true
	})

	event.Msg(record.Message)
	return nil
}

// WithAttrs returns a new Handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{logger: h.logger, attrs: merged, groups: h.groups}
}

// WithGroup returns a new Handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &Handler{logger: h.logger, attrs: h.attrs, groups: groups}
}

func appendAttr(event *zerolog.Event, attr slog.Attr, groups []string) *zerolog.Event {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return event
	}

	key := attr.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return event.Str(key, attr.Value.String())
	case slog.KindInt64:
		return event.Int64(key, attr.Value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, attr.Value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, attr.Value.Float64())
	case slog.KindBool:
		return event.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return event.Dur(key, attr.Value.Duration())
	case slog.KindTime:
		return event.Time(key, attr.Value.Time())
	case slog.KindGroup:
		nested := append(append([]string{}, groups...), attr.Key)
		for _, ga := range attr.Value.Group() {
			event = appendAttr(event, ga, nested)
		}
		return event
	default:
		if err, ok := attr.Value.Any().(error); ok {
			return event.AnErr(key, err)
		}
		return event.Interface(key, attr.Value.Any())
	}
}

func toZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
