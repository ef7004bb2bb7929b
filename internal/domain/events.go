package domain

import "time"

// EventKind discriminates lifecycle events delivered to status subscribers.
type EventKind string

const (
	EventStatusChanged EventKind = "status_changed"
	EventQueueOverflow EventKind = "queue_overflow"
	EventTerminalError EventKind = "terminal_error"
)

// Event is a connection lifecycle notification. Status subscribers receive
// every transition of their handle plus overflow and terminal errors.
type Event struct {
	Kind     EventKind
	Endpoint string
	TenantID string
	State    ConnectionState
	// Dropped is set on queue-overflow events to the evicted message.
	Dropped *Message
	// Err is set on terminal-error events.
	Err error
	At  time.Time
}

// EventListener receives lifecycle events for one handle. Implementations
// must not block; events are delivered from the handle's own goroutine.
type EventListener func(Event)
