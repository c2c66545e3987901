package history

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ closed bool }

func (f *failingSink) Send(context.Context, Event) error { return errors.New("boom") }
func (f *failingSink) Close() error                      { f.closed = true; return nil }

type slowSink struct{ sawDeadline bool }

func (s *slowSink) Send(ctx context.Context, _ Event) error {
	_, s.sawDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestRecorderFansOut(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	r := NewRecorder(nil, a, b)
	require.Equal(t, 2, r.Len())

	r.Record(context.Background(), Event{Type: EventStart, ProfileID: "p1", PID: 42})

	for _, s := range []*MemorySink{a, b} {
		got := s.Events()
		require.Len(t, got, 1)
		assert.Equal(t, "p1", got[0].ProfileID)
		assert.False(t, got[0].OccurredAt.IsZero())
	}
}

func TestRecorderLogsSinkFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mem := &MemorySink{}
	bad := &failingSink{}
	r := NewRecorder(logger, bad, mem)

	r.Record(context.Background(), Event{Type: EventExit, ProfileID: "p1"})

	assert.Len(t, mem.OfType(EventExit), 1, "later sinks still receive the event")
	assert.Contains(t, buf.String(), "history sink failed")
	assert.Contains(t, buf.String(), "boom")

	require.NoError(t, r.Close())
	assert.True(t, bad.closed)
}

func TestRecorderTimeout(t *testing.T) {
	slow := &slowSink{}
	r := NewRecorder(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), slow)
	r.SetTimeout(20 * time.Millisecond)

	start := time.Now()
	r.Record(context.Background(), Event{Type: EventStop})
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, slow.sawDeadline)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), Event{Type: EventStart})
	r.SetTimeout(time.Second)
	assert.Equal(t, 0, r.Len())
	assert.NoError(t, r.Close())
}
