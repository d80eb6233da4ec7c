package websocket

import (
	"time"

	"github.com/yigit/slotbook/internal/app/models"
)

// Message types sent to dashboard clients
const (
	// MessageTypeSnapshot carries the whole grid, sent once on connect
	MessageTypeSnapshot = "slots.snapshot"
	// MessageTypeSlotsUpdated carries the slots touched by one committed change
	MessageTypeSlotsUpdated = "slots.updated"
)

// Message represents a message sent over WebSocket
type Message struct {
	// Type of message, one of the MessageType constants
	Type string `json:"type"`

	// Slots with their occupancy after the change
	Slots []*models.Slot `json:"slots"`

	// Timestamp when the message was produced
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message stamped with the current time
func NewMessage(msgType string, slots []*models.Slot) *Message {
	if slots == nil {
		slots = []*models.Slot{}
	}
	return &Message{
		Type:      msgType,
		Slots:     slots,
		Timestamp: time.Now().UTC(),
	}
}
