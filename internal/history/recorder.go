package history

import (
	"context"
	"io"
	"log/slog"
	"time"
)

const DefaultSendTimeout = 5 * time.Second

// Recorder fans events out to every configured sink. Sink failures are logged
// and never returned, so recording can not fail a supervisor operation.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger
}

func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sinks: sinks, timeout: DefaultSendTimeout, logger: logger}
}

// SetTimeout bounds each individual Send call.
func (r *Recorder) SetTimeout(d time.Duration) {
	if r != nil && d > 0 {
		r.timeout = d
	}
}

// Record stamps e (when OccurredAt is zero) and delivers it to all sinks.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil || len(r.sinks) == 0 {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	for _, s := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := s.Send(sctx, e)
		cancel()
		if err != nil {
			r.logger.Warn("history sink failed",
				"type", string(e.Type), "profile", e.ProfileID, "error", err)
		}
	}
}

// Len returns the number of sinks.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	return len(r.sinks)
}

// Close closes every sink that holds resources.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	var first error
	for _, s := range r.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
