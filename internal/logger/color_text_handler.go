package logger

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

const colorReset = "\033[0m"

// ColorTextHandler wraps slog.TextHandler and paints each record in its level's color.
// The escape codes are written around the record, not inside it, since the text
// handler would quote them.
type ColorTextHandler struct {
	*slog.TextHandler
	w  io.Writer
	mu *sync.Mutex
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	return &ColorTextHandler{TextHandler: slog.NewTextHandler(w, opts), w: w, mu: &sync.Mutex{}}
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m"
	case l >= slog.LevelWarn:
		return "\033[33m"
	case l >= slog.LevelInfo:
		return "\033[32m"
	default:
		return "\033[36m"
	}
}

func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = io.WriteString(h.w, levelColor(r.Level))
	err := h.TextHandler.Handle(ctx, r)
	_, _ = io.WriteString(h.w, colorReset)
	return err
}

// Derived handlers share the writer lock so colored records never interleave.

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorTextHandler{TextHandler: h.TextHandler.WithAttrs(attrs).(*slog.TextHandler), w: h.w, mu: h.mu}
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	return &ColorTextHandler{TextHandler: h.TextHandler.WithGroup(name).(*slog.TextHandler), w: h.w, mu: h.mu}
}
