package chat

import (
	"time"

	"github.com/google/uuid"
)

// Direction tells whether a message was written locally or received from the peer.
type Direction int

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "received"
}

// ChatMessage is one immutable chat entry.
type ChatMessage struct {
	ID        uuid.UUID
	Text      string
	Direction Direction
	Timestamp time.Time
}

// NewMessage stamps text with a fresh identity and the current time.
func NewMessage(text string, dir Direction) ChatMessage {
	return ChatMessage{
		ID:        uuid.New(),
		Text:      text,
		Direction: dir,
		Timestamp: time.Now(),
	}
}

// IsSent reports whether the message originated locally.
func (m ChatMessage) IsSent() bool { return m.Direction == Sent }
