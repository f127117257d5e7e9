package engine

import "time"

// EventType represents the kind of change an event reports
type EventType string

const (
	EventTableCreated   EventType = "table_created"
	EventTableAltered   EventType = "table_altered"
	EventTableDropped   EventType = "table_dropped"
	EventRowInserted    EventType = "row_inserted"
	EventRowDeleted     EventType = "row_deleted"
	EventSchemaRejected EventType = "schema_rejected"
)

// Event represents a completed schema or row change
type Event struct {
	Type      EventType   `json:"type"`
	TableID   string      `json:"table_id,omitempty"`
	RowID     int64       `json:"row_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"` // Event-specific data (field names, rejection details)
}

// Observer interface for event subscribers.
// OnEvent runs synchronously on the goroutine that made the change.
type Observer interface {
	OnEvent(event Event)
}
