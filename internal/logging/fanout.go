package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Fanout combines slog handlers so one record reaches every sink, such as
// terminal output plus Sentry breadcrumbs. Nil handlers are skipped.
func Fanout(handlers ...slog.Handler) slog.Handler {
	active := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return slog.NewTextHandler(io.Discard, nil)
	}
	return fanoutHandler(active)
}

type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		err = errors.Join(err, h.Handle(ctx, record))
	}
	return err
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(f))
	for _, h := range f {
		next = append(next, h.WithAttrs(attrs))
	}
	return fanoutHandler(next)
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(f))
	for _, h := range f {
		next = append(next, h.WithGroup(name))
	}
	return fanoutHandler(next)
}
