package audit

import (
	"context"
	"log/slog"

	"consentry/pkg/requestcontext"
)

// Queue is the asynchronous Emitter. Emit stamps the event with the
// request-scoped time and hands it to the worker; it blocks only when the
// inbox is full, so the buffer size bounds how far persistence may lag.
type Queue struct {
	inbox chan Event
}

func NewQueue(size int) *Queue {
	return &Queue{inbox: make(chan Event, size)}
}

func (q *Queue) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	select {
	case q.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events exposes the consuming side for the worker.
func (q *Queue) Events() <-chan Event {
	return q.inbox
}

// Worker consumes audit events from a channel and persists them. It keeps
// background processing off the request path without wiring a broker.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until ctx is cancelled, then flushes whatever is
// already buffered. Append failures are logged and skipped; losing one audit
// row beats wedging the whole trail behind it.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "audit append failed",
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"action", event.Action,
			"error", err,
		)
	}
}

func (w *Worker) flush() {
	ctx := context.Background()
	for {
		select {
		case event := <-w.inbox:
			w.append(ctx, event)
		default:
			return
		}
	}
}
