package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority orders messages by urgency. It is carried opaquely through the
// pipeline; the router does not reorder by priority.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Well-known message types carried over the wire. The router treats them
// like any other type; they exist as constants for callers.
const (
	TypeChatMessage    = "chat.message"
	TypeNotification   = "notification"
	TypePresenceUpdate = "presence.update"
)

// Message is one unit of traffic through the subsystem. Immutable once
// constructed; enrichment produces a shallow copy via WithAnnotations.
type Message struct {
	ID        string
	Type      string
	TenantID  string
	Priority  Priority
	Timestamp time.Time
	Payload   json.RawMessage

	// Annotations are attached by the classifier hook. Nil means the
	// message was delivered unannotated.
	Annotations map[string]string

	// raw holds the original envelope bytes so unrecognized fields pass
	// through untouched when the message is re-encoded.
	raw json.RawMessage
}

// envelope is the wire form. Only the header fields are validated; the
// payload is opaque.
type envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	TenantID  string          `json:"tenant_id,omitempty"`
	Priority  Priority        `json:"priority,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewMessage constructs an outbound message with a fresh unique ID.
func NewMessage(msgType, tenantID string, priority Priority, payload json.RawMessage, now time.Time) *Message {
	if priority == "" {
		priority = PriorityNormal
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		TenantID:  tenantID,
		Priority:  priority,
		Timestamp: now,
		Payload:   payload,
	}
}

// ParseMessage decodes and validates a wire envelope. Only the required
// header fields (id, type, timestamp) are checked; everything else passes
// through opaquely. Failures wrap ErrProtocol.
func ParseMessage(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrProtocol)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrProtocol)
	}
	if env.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing timestamp", ErrProtocol)
	}
	priority := env.Priority
	if priority == "" {
		priority = PriorityNormal
	} else if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrProtocol, env.Priority)
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	return &Message{
		ID:        env.ID,
		Type:      env.Type,
		TenantID:  env.TenantID,
		Priority:  priority,
		Timestamp: env.Timestamp,
		Payload:   env.Payload,
		raw:       raw,
	}, nil
}

// Encode returns the wire form of the message. Messages that arrived off the
// wire are re-emitted byte-for-byte, preserving unrecognized fields.
func (m *Message) Encode() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	data, err := json.Marshal(envelope{
		ID:        m.ID,
		Type:      m.Type,
		TenantID:  m.TenantID,
		Priority:  m.Priority,
		Timestamp: m.Timestamp,
		Payload:   m.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", m.ID, err)
	}
	return data, nil
}

// WithAnnotations returns a copy of the message carrying the given
// annotations. The original message is untouched.
func (m *Message) WithAnnotations(annotations map[string]string) *Message {
	clone := *m
	clone.Annotations = annotations
	return &clone
}
