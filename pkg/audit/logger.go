// Package audit records an append-only trail of mutating operations
// against UPLs, keyed by the uint32 actor id passed to the domain
// layer rather than a logged-in user identity: this registry has no
// sessions, so "who" means "which caller-supplied actor".
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"uplregistry/pkg/database"
)

// EventType represents the category of a recorded mutation.
type EventType string

const (
	EventTypeDataAccess       EventType = "DATA_ACCESS"
	EventTypeDataModification EventType = "DATA_MODIFICATION"
	EventTypeDataDeletion     EventType = "DATA_DELETION"
	EventTypeConfigChange     EventType = "CONFIG_CHANGE"
)

// Event represents a single audit log entry.
type Event struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	EventType  EventType              `json:"event_type"`
	ActorID    *uint32                `json:"actor_id,omitempty"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Action     string                 `json:"action"`
	Success    bool                   `json:"success"`
	Details    map[string]interface{} `json:"details,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Filter narrows a Query/Count call.
type Filter struct {
	ActorID    *uint32
	EventType  *EventType
	ResourceID *string
	StartTime  *time.Time
	EndTime    *time.Time
	Success    *bool
	Limit      int
	Offset     int
}

// Logger records and retrieves audit events.
type Logger interface {
	LogEvent(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter Filter) ([]*Event, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// PostgresLogger implements Logger against a uplregistry/pkg/database.Database.
type PostgresLogger struct {
	db *database.Database
}

func NewPostgresLogger(db *database.Database) *PostgresLogger {
	return &PostgresLogger{db: db}
}

func (l *PostgresLogger) LogEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("audit event cannot be nil")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.Action == "" {
		return fmt.Errorf("action is required")
	}

	var detailsJSON []byte
	var err error
	if event.Details != nil {
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
	}

	query := `
		INSERT INTO upl_audit_log (
			id, timestamp, event_type, actor_id, resource_id,
			action, success, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = l.db.Exec(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.EventType),
		event.ActorID,
		event.ResourceID,
		event.Action,
		event.Success,
		detailsJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

func (l *PostgresLogger) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	query := `
		SELECT id, timestamp, event_type, actor_id, resource_id, action, success, details, created_at
		FROM upl_audit_log
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if filter.ActorID != nil {
		query += fmt.Sprintf(" AND actor_id = $%d", argPos)
		args = append(args, *filter.ActorID)
		argPos++
	}
	if filter.EventType != nil {
		query += fmt.Sprintf(" AND event_type = $%d", argPos)
		args = append(args, string(*filter.EventType))
		argPos++
	}
	if filter.ResourceID != nil {
		query += fmt.Sprintf(" AND resource_id = $%d", argPos)
		args = append(args, *filter.ResourceID)
		argPos++
	}
	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argPos)
		args = append(args, *filter.StartTime)
		argPos++
	}
	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argPos)
		args = append(args, *filter.EndTime)
		argPos++
	}
	if filter.Success != nil {
		query += fmt.Sprintf(" AND success = $%d", argPos)
		args = append(args, *filter.Success)
		argPos++
	}
	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)
	argPos++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
		argPos++
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		var detailsJSON []byte
		var eventTypeStr string

		if err := rows.Scan(
			&event.ID, &event.Timestamp, &eventTypeStr, &event.ActorID,
			&event.ResourceID, &event.Action, &event.Success, &detailsJSON, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit log row: %w", err)
		}
		event.EventType = EventType(eventTypeStr)
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit log rows: %w", err)
	}
	return events, nil
}

func (l *PostgresLogger) Count(ctx context.Context, filter Filter) (int64, error) {
	query := `SELECT COUNT(*) FROM upl_audit_log WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.ActorID != nil {
		query += fmt.Sprintf(" AND actor_id = $%d", argPos)
		args = append(args, *filter.ActorID)
		argPos++
	}
	if filter.EventType != nil {
		query += fmt.Sprintf(" AND event_type = $%d", argPos)
		args = append(args, string(*filter.EventType))
		argPos++
	}
	if filter.ResourceID != nil {
		query += fmt.Sprintf(" AND resource_id = $%d", argPos)
		args = append(args, *filter.ResourceID)
		argPos++
	}

	var count int64
	if err := l.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting audit log: %w", err)
	}
	return count, nil
}

// NewMutationEvent builds the event recorded for every archiving batch:
// one row per UPL moved out of the active collection.
func NewMutationEvent(actorID uint32, resourceID, action string) *Event {
	return &Event{
		EventType:  EventTypeDataModification,
		ActorID:    &actorID,
		ResourceID: resourceID,
		Action:     action,
		Success:    true,
	}
}

// MockLogger is an in-memory Logger for tests.
type MockLogger struct {
	Events []*Event
}

func NewMockLogger() *MockLogger {
	return &MockLogger{Events: make([]*Event, 0)}
}

func (m *MockLogger) LogEvent(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockLogger) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	result := make([]*Event, 0)
	for _, event := range m.Events {
		if filter.ActorID != nil && (event.ActorID == nil || *event.ActorID != *filter.ActorID) {
			continue
		}
		if filter.EventType != nil && event.EventType != *filter.EventType {
			continue
		}
		if filter.ResourceID != nil && event.ResourceID != *filter.ResourceID {
			continue
		}
		if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
			continue
		}
		if filter.Success != nil && event.Success != *filter.Success {
			continue
		}
		result = append(result, event)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	start := filter.Offset
	if start > len(result) {
		return []*Event{}, nil
	}
	end := start + limit
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (m *MockLogger) Count(ctx context.Context, filter Filter) (int64, error) {
	events, err := m.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}
