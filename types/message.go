package types

import (
	"time"

	"github.com/google/uuid"
)

// Reserved sender identifiers. Anything else in Message.SenderID is an
// agent id from the conversation roster.
const (
	SenderUser    = "USER"
	SenderSystem  = "SYSTEM"
	SenderSummary = "SUMMARY"
)

// Message is one transcript entry. Messages are append-only: once added to a
// transcript they are never mutated or deleted.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh id and the current time.
func NewMessage(senderID, text string) Message {
	return Message{
		ID:        uuid.New().String(),
		SenderID:  senderID,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a message from the reserved SYSTEM sender.
func NewSystemMessage(text string) Message {
	return NewMessage(SenderSystem, text)
}

// NewUserMessage creates a message from the reserved USER sender.
func NewUserMessage(text string) Message {
	return NewMessage(SenderUser, text)
}

// IsSystem reports whether the message comes from the reserved SYSTEM sender.
// System messages are excluded from prompt derivation and summaries.
func (m Message) IsSystem() bool {
	return m.SenderID == SenderSystem
}

// LastNonSystem returns the most recent non-SYSTEM message in the transcript,
// or false when none exists.
func LastNonSystem(transcript []Message) (Message, bool) {
	for i := len(transcript) - 1; i >= 0; i-- {
		if !transcript[i].IsSystem() {
			return transcript[i], true
		}
	}
	return Message{}, false
}
