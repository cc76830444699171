package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time
	EntityType string
	EntityID   string
	Action     string
	SubjectID  string
	IPAddress  string
	UserAgent  string
	Metadata   map[string]any
}

// Emitter is the write side of the audit trail. The synchronous Publisher
// persists inline; the Queue hands events to a background Worker.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists events. It is append-only; audit rows are evidence and are
// never updated or deleted.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID string) ([]Event, error)
}
