// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Ledger events
	EventEnthusiasmAwarded EventType = "ledger.enthusiasm_awarded"
	EventEnthusiasmRevoked EventType = "ledger.enthusiasm_revoked"
	EventLedgerHealed      EventType = "ledger.healed"

	// Ranking events
	EventMonthlyRankingComputed EventType = "ranking.monthly_computed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// LedgerChangedEvent is emitted when attendance reconciliation changed the
// enthusiasm ledger for a (student, date) key.
type LedgerChangedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Inserted  int    `json:"inserted"`
	Deleted   int    `json:"deleted"`
}

// Payload implements Event interface.
func (e LedgerChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"date":       e.Date,
		"status":     e.Status,
		"inserted":   e.Inserted,
		"deleted":    e.Deleted,
	}
}

// NewLedgerChangedEvent creates a ledger event of the given type.
func NewLedgerChangedEvent(eventType EventType, studentID, date, status string, inserted, deleted int) LedgerChangedEvent {
	return LedgerChangedEvent{
		BaseEvent: NewBaseEvent(eventType, studentID),
		StudentID: studentID,
		Date:      date,
		Status:    status,
		Inserted:  inserted,
		Deleted:   deleted,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ranking Events
// ═══════════════════════════════════════════════════════════════════════════

// MonthlyRankingComputedEvent is emitted after a student's monthly breakdown
// has been computed.
type MonthlyRankingComputedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Month     string `json:"month"`
	Total     int    `json:"total"`
}

// Payload implements Event interface.
func (e MonthlyRankingComputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"month":      e.Month,
		"total":      e.Total,
	}
}

// NewMonthlyRankingComputedEvent creates a new MonthlyRankingComputedEvent.
func NewMonthlyRankingComputedEvent(studentID, month string, total int) MonthlyRankingComputedEvent {
	return MonthlyRankingComputedEvent{
		BaseEvent: NewBaseEvent(EventMonthlyRankingComputed, studentID),
		StudentID: studentID,
		Month:     month,
		Total:     total,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Infrastructure
// ═══════════════════════════════════════════════════════════════════════════

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }

// MarshalEvent serializes an event with its envelope for transport.
func MarshalEvent(event Event) ([]byte, error) {
	envelope := struct {
		Type        EventType              `json:"type"`
		AggregateID string                 `json:"aggregate_id"`
		OccurredAt  time.Time              `json:"occurred_at"`
		Payload     map[string]interface{} `json:"payload"`
	}{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}
	return json.Marshal(envelope)
}
