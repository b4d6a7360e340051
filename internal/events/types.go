// Package events provides real-time event streaming of chat lifecycle events
package events

import (
	"time"

	"github.com/banterlabs/banter/pkg/types"
)

// EventType represents the type of event
type EventType string

const (
	// EventSessionCreated is emitted when a session is created
	EventSessionCreated EventType = "session.created"
	// EventSessionDeleted is emitted when a session and its message log are deleted
	EventSessionDeleted EventType = "session.deleted"
	// EventMessageAppended is emitted for every message added to a session log
	EventMessageAppended EventType = "message.appended"
	// EventTypingStarted is emitted when a persona starts "typing"
	EventTypingStarted EventType = "typing.started"
	// EventTypingStopped is emitted when the typing indicator clears
	EventTypingStopped EventType = "typing.stopped"
)

// Event represents a single chat lifecycle event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	SessionID string    `json:"session_id"`

	// Message is set for message.appended events
	Message *types.Message `json:"message,omitempty"`
	// Typing is set for typing.started events
	Typing *types.TypingState `json:"typing,omitempty"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, sessionID string) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		SessionID: sessionID,
	}
}
