package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// EventType names a push notification kind.
type EventType string

const (
	EventProjectCreated EventType = "project_created"
	EventProjectUpdated EventType = "project_updated"
	EventTaskCreated    EventType = "task_created"
	EventTaskUpdated    EventType = "task_updated"
	EventBugCreated     EventType = "bug_created"
	EventBugUpdated     EventType = "bug_updated"

	// EventConnectionEstablished is the greeting the backend sends on connect.
	// It carries no entity change and is not republished.
	EventConnectionEstablished EventType = "connection_established"
)

// KnownEventTypes lists the types that are republished to subscribers.
var KnownEventTypes = []EventType{
	EventProjectCreated,
	EventProjectUpdated,
	EventTaskCreated,
	EventTaskUpdated,
	EventBugCreated,
	EventBugUpdated,
}

// Known reports whether t is republished to subscribers.
func (t EventType) Known() bool {
	for _, k := range KnownEventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Resource returns the collection an event type refers to ("projects",
// "tasks" or "bugs"), or "" for unknown types.
func (t EventType) Resource() string {
	switch t {
	case EventProjectCreated, EventProjectUpdated:
		return "projects"
	case EventTaskCreated, EventTaskUpdated:
		return "tasks"
	case EventBugCreated, EventBugUpdated:
		return "bugs"
	}
	return ""
}

// ErrMissingEventType is returned when a frame has no "type" field.
var ErrMissingEventType = errors.New("event frame has no type")

// Envelope is a decoded push frame. Payload is kept raw; views decide
// whether to merge it or refetch.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var jsonNull = []byte("null")

// absent reports whether a raw field was missing or explicitly null.
func absent(m json.RawMessage) bool {
	return len(m) == 0 || bytes.Equal(bytes.TrimSpace(m), jsonNull)
}

// DecodeEnvelope parses an inbound frame. The payload is read from
// "payload", falling back to "data"; a null key counts as missing.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var raw struct {
		Type    EventType       `json:"type"`
		Payload json.RawMessage `json:"payload"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &raw); err != nil {
		return Envelope{}, err
	}
	if raw.Type == "" {
		return Envelope{}, ErrMissingEventType
	}
	env := Envelope{Type: raw.Type}
	switch {
	case !absent(raw.Payload):
		env.Payload = raw.Payload
	case !absent(raw.Data):
		env.Payload = raw.Data
	}
	return env, nil
}
