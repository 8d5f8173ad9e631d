package testutils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/chat"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// Texts projects messages to their text, oldest first.
func Texts(msgs []chat.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

// Directions projects messages to their direction, oldest first.
func Directions(msgs []chat.ChatMessage) []chat.Direction {
	out := make([]chat.Direction, len(msgs))
	for i, m := range msgs {
		out[i] = m.Direction
	}
	return out
}
