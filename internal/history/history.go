package history

import (
	"context"
	"time"
)

// EventType is the kind of lifecycle transition being recorded.
type EventType string

const (
	EventStart       EventType = "start"
	EventStop        EventType = "stop"
	EventExit        EventType = "exit"
	EventSpawnFailed EventType = "spawn_failed"
)

// Event is one supervisor transition for a profile.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ProfileID  string    `json:"profile_id"`
	PID        int       `json:"pid"`
	LogPath    string    `json:"log_path,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
