package utils

import (
	"context"
	"errors"
	"log/slog"
)

// FanoutHandler duplicates each record to a set of slog handlers, letting
// the agent log to the console and the log file at independent levels.
type FanoutHandler struct {
	targets []slog.Handler
}

func NewFanoutHandler(targets ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{targets: targets}
}

// Enabled reports whether any target accepts the level. Handle filters per
// target again, so a record only reaches the targets that want it.
func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, target := range h.targets {
		if target.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *FanoutHandler) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, target := range h.targets {
		if !target.Enabled(ctx, rec.Level) {
			continue
		}
		if err := target.Handle(ctx, rec.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.targets))
	for i, target := range h.targets {
		next[i] = target.WithAttrs(attrs)
	}
	return NewFanoutHandler(next...)
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.targets))
	for i, target := range h.targets {
		next[i] = target.WithGroup(name)
	}
	return NewFanoutHandler(next...)
}
