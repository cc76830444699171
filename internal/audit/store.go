package audit

import (
	"context"
	"time"

	"consentry/pkg/requestcontext"
)

// Registry is the slice of the entity access layer the store writes through.
// Audit rows live in the same schema-managed storage as every other entity.
type Registry interface {
	CreateAuditLog(ctx context.Context, data map[string]any) (map[string]any, error)
	FindAuditLogsBySubject(ctx context.Context, subjectID string) ([]map[string]any, error)
}

// RegistryStore persists events as auditLog rows.
type RegistryStore struct {
	registry Registry
}

func NewRegistryStore(registry Registry) *RegistryStore {
	return &RegistryStore{registry: registry}
}

func (s *RegistryStore) Append(ctx context.Context, event Event) error {
	// The row's createdAt comes from the request-scoped clock; pinning it to
	// the event time keeps async persistence from shifting evidence
	// timestamps.
	if !event.Timestamp.IsZero() {
		ctx = requestcontext.WithTime(ctx, event.Timestamp)
	}
	_, err := s.registry.CreateAuditLog(ctx, map[string]any{
		"entityType": event.EntityType,
		"entityId":   event.EntityID,
		"actionType": event.Action,
		"subjectId":  event.SubjectID,
		"ipAddress":  event.IPAddress,
		"userAgent":  event.UserAgent,
		"metadata":   event.Metadata,
	})
	return err
}

func (s *RegistryStore) ListBySubject(ctx context.Context, subjectID string) ([]Event, error) {
	rows, err := s.registry.FindAuditLogsBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, eventFromRow(row))
	}
	return events, nil
}

func eventFromRow(row map[string]any) Event {
	event := Event{
		EntityType: stringAt(row, "entityType"),
		EntityID:   stringAt(row, "entityId"),
		Action:     stringAt(row, "actionType"),
		SubjectID:  stringAt(row, "subjectId"),
	}
	if t, ok := row["createdAt"].(time.Time); ok {
		event.Timestamp = t
	}
	if m, ok := row["metadata"].(map[string]any); ok {
		event.Metadata = m
	}
	return event
}

func stringAt(row map[string]any, key string) string {
	v, _ := row[key].(string)
	return v
}
