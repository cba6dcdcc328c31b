// Package logging provides structured logging using Go's slog package.
package logging

import (
	"context"
	"errors"
	"log/slog"
)

// sink is one destination of a tee with its own minimum level.
type sink struct {
	handler slog.Handler
	level   slog.Leveler
}

// Tee is an slog.Handler that copies each record to several destinations.
// Each destination filters by its own level, so the rotating file can keep
// trace-level mesh diagnostics while the console stays at info.
type Tee struct {
	sinks []sink
}

// NewTee creates an empty tee. Add destinations with Add.
func NewTee() *Tee {
	return &Tee{}
}

// Add appends a destination that receives records at or above level.
// A nil level defers entirely to the handler's own Enabled.
func (t *Tee) Add(h slog.Handler, level slog.Leveler) *Tee {
	t.sinks = append(t.sinks, sink{handler: h, level: level})
	return t
}

func (s sink) enabled(ctx context.Context, level slog.Level) bool {
	if s.level != nil && level < s.level.Level() {
		return false
	}

	return s.handler.Enabled(ctx, level)
}

// Enabled implements slog.Handler. It reports true if any destination wants
// the level.
func (t *Tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range t.sinks {
		if s.enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle implements slog.Handler. Every destination is attempted; their
// errors are joined.
func (t *Tee) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	var errs []error

	for _, s := range t.sinks {
		if !s.enabled(ctx, r.Level) {
			continue
		}

		if err := s.handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (t *Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler.
func (t *Tee) WithGroup(name string) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t *Tee) derive(fn func(slog.Handler) slog.Handler) *Tee {
	out := &Tee{sinks: make([]sink, len(t.sinks))}
	for i, s := range t.sinks {
		out.sinks[i] = sink{handler: fn(s.handler), level: s.level}
	}

	return out
}
