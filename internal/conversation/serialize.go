package conversation

import (
	"encoding/json"

	"github.com/opencoreai/turnengine/internal/content"
)

// Log is the ordered, append-only message history of a turn.
type Log struct {
	messages []content.Message
}

// NewLog builds a Log seeded with the given messages.
func NewLog(messages ...content.Message) *Log {
	return &Log{messages: append([]content.Message(nil), messages...)}
}

// Append adds a message to the end of the log.
func (l *Log) Append(message content.Message) {
	l.messages = append(l.messages, message)
}

// PopTrailing removes the most recently appended message. Used when a
// guard-block threshold aborts a tool dispatch batch before any
// ToolResults are sent, leaving the just-appended assistant message
// orphaned.
func (l *Log) PopTrailing() {
	if len(l.messages) > 0 {
		l.messages = l.messages[:len(l.messages)-1]
	}
}

// Messages returns the current message slice. Callers must not mutate it.
func (l *Log) Messages() []content.Message {
	return l.messages
}

// ApplyTrim replaces the log's messages with the result of Trim, given
// the input-token count from the previous call.
func (l *Log) ApplyTrim(lastInputTokens int) {
	if !ShouldTrim(lastInputTokens) {
		return
	}
	l.messages = Trim(l.messages)
}

// ApplyRecover replaces the log's messages with the result of Recover.
func (l *Log) ApplyRecover() {
	l.messages = Recover(l.messages)
}

// MarshalJSON serializes the log as a plain message array, the same
// representation sent to the chat service.
func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.messages)
}
