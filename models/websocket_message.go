package models

import (
	"time"

	"github.com/google/uuid"
)

// WebSocketMessageType represents message type constants
type WebSocketMessageType string

const (
	EventMessage     WebSocketMessageType = "event"
	SubscribeMessage WebSocketMessageType = "subscribe"
	SessionMessage   WebSocketMessageType = "session"
	ErrorMessage     WebSocketMessageType = "error"
)

// StandardMessage is the envelope shared by the broker and websocket clients
type StandardMessage struct {
	ID           string                 `json:"id"`
	Type         WebSocketMessageType   `json:"type"`
	Event        string                 `json:"event,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Payload      map[string]interface{} `json:"payload"`
	UserID       string                 `json:"user_id,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	ResourceType string                 `json:"resource_type,omitempty"`
}

// NewStandardMessage creates a new standard message
func NewStandardMessage(msgType WebSocketMessageType, event string, payload map[string]interface{}) *StandardMessage {
	return &StandardMessage{
		ID:        uuid.New().String(),
		Type:      msgType,
		Event:     event,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// WithResource adds resource information to the message
func (m *StandardMessage) WithResource(resourceType string, resourceID string) *StandardMessage {
	m.ResourceType = resourceType
	m.ResourceID = resourceID
	return m
}

// ForUser scopes the message to the user who owns the resource
func (m *StandardMessage) ForUser(userID string) *StandardMessage {
	m.UserID = userID
	return m
}
