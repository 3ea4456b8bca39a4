// Package outbox holds the durable-event record used by the transactional
// outbox flow: an event row is written alongside its triggering loan write
// and delivered asynchronously with retries.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one durable intent to notify the catalog service. Rows are never
// deleted by the worker; cleanup is an operational concern.
type Event struct {
	ID          uuid.UUID
	EventType   string
	Payload     json.RawMessage
	Processed   bool
	RetryCount  int
	LastError   *string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func NewEvent(eventType string, payload any, now time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   data,
		CreatedAt: now,
	}, nil
}

// Poisoned reports whether the event has exhausted its retry budget and must
// be left for manual intervention.
func (e *Event) Poisoned(maxRetries int) bool {
	return e.RetryCount >= maxRetries
}
