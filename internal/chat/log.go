package chat

import (
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MessageLog is an insertion-ordered, capacity-bounded chat history.
// When an append pushes the length past capacity the oldest entries are
// evicted first. A MessageLog is owned by exactly one session and is not
// safe for concurrent use.
type MessageLog struct {
	capacity int
	entries  *orderedmap.OrderedMap[uuid.UUID, ChatMessage]
}

// NewMessageLog returns an empty log. Non-positive capacities fall back to HistoryCapacity.
func NewMessageLog(capacity int) *MessageLog {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &MessageLog{
		capacity: capacity,
		entries:  orderedmap.New[uuid.UUID, ChatMessage](),
	}
}

// Append adds msg at the tail and returns the number of evicted entries.
func (l *MessageLog) Append(msg ChatMessage) int {
	l.entries.Set(msg.ID, msg)

	evicted := 0
	for l.entries.Len() > l.capacity {
		oldest := l.entries.Oldest()
		l.entries.Delete(oldest.Key)
		evicted++
	}
	return evicted
}

// Clear drops every entry. It reports whether the log was non-empty.
func (l *MessageLog) Clear() bool {
	if l.entries.Len() == 0 {
		return false
	}
	l.entries = orderedmap.New[uuid.UUID, ChatMessage]()
	return true
}

// Len returns the number of stored messages.
func (l *MessageLog) Len() int { return l.entries.Len() }

// Cap returns the capacity bound.
func (l *MessageLog) Cap() int { return l.capacity }

// Messages returns a copy of the history, oldest first.
func (l *MessageLog) Messages() []ChatMessage {
	out := make([]ChatMessage, 0, l.entries.Len())
	for pair := l.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}
