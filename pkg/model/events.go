package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event wrapper published to NATS. Consumers key
// off EventType and Version; Payload carries the event body verbatim.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	ProjectID     string          `json:"project_id"`
	RunID         string          `json:"run_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// RunStatusEvent is the body published on run status changes, and the event
// fanned out to websocket subscribers.
type RunStatusEvent struct {
	RunID     string    `json:"run_id"`
	ProjectID string    `json:"project_id"`
	Status    RunStatus `json:"status"`
	Source    string    `json:"source"` // "webhook" | "queue" | "poll"
	Timestamp time.Time `json:"timestamp"`
}
