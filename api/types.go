package api

import (
	"time"

	"github.com/colloquy-ai/colloquy/conversation"
	"github.com/colloquy-ai/colloquy/types"
)

// AgentSpec describes one participant in a create request.
type AgentSpec struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	Color        string `json:"color,omitempty"`
	AvatarEmoji  string `json:"avatar_emoji,omitempty"`
}

// CreateConversationRequest creates a conversation. Omitted fields fall back
// to the server-wide defaults.
type CreateConversationRequest struct {
	Topic       string      `json:"topic"`
	Agents      []AgentSpec `json:"agents"`
	MaxTurns    int         `json:"max_turns,omitempty"` // per agent
	GlobalRules string      `json:"global_rules,omitempty"`
	Credential  string      `json:"credential,omitempty"`
	Model       string      `json:"model,omitempty"`
	TurnDelayMS int         `json:"turn_delay_ms,omitempty"`
}

// MessageRequest injects a user message into a conversation.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageView is one transcript entry with its resolved display label.
type MessageView struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	SenderLabel string    `json:"sender_label"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// ConversationView is the presentation shape of a conversation snapshot.
type ConversationView struct {
	ID               string        `json:"id"`
	Status           types.Status  `json:"status"`
	Topic            string        `json:"topic"`
	TurnCount        int           `json:"turn_count"`
	CurrentSpeakerID string        `json:"current_speaker_id,omitempty"`
	Summarized       bool          `json:"summarized"`
	Agents           []AgentSpec   `json:"agents"`
	Messages         []MessageView `json:"messages"`
}

// NewConversationView renders a snapshot using the label function for sender
// display names.
func NewConversationView(snap conversation.Snapshot, label func(string) string) ConversationView {
	agents := make([]AgentSpec, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		agents = append(agents, AgentSpec{
			ID:           a.ID,
			Name:         a.Name,
			SystemPrompt: a.SystemPrompt,
			Color:        string(a.Color),
			AvatarEmoji:  a.AvatarEmoji,
		})
	}
	messages := make([]MessageView, 0, len(snap.Transcript))
	for _, m := range snap.Transcript {
		messages = append(messages, MessageView{
			ID:          m.ID,
			SenderID:    m.SenderID,
			SenderLabel: label(m.SenderID),
			Text:        m.Text,
			Timestamp:   m.Timestamp,
		})
	}
	return ConversationView{
		ID:               snap.ID,
		Status:           snap.Status,
		Topic:            snap.Topic,
		TurnCount:        snap.TurnCount,
		CurrentSpeakerID: snap.CurrentSpeakerID,
		Summarized:       snap.Summarized,
		Agents:           agents,
		Messages:         messages,
	}
}

// ConversationSummary is the list-endpoint shape: no transcript.
type ConversationSummary struct {
	ID         string       `json:"id"`
	Status     types.Status `json:"status"`
	Topic      string       `json:"topic"`
	TurnCount  int          `json:"turn_count"`
	AgentCount int          `json:"agent_count"`
	Summarized bool         `json:"summarized"`
}

// NewConversationSummary renders the list shape of a snapshot.
func NewConversationSummary(snap conversation.Snapshot) ConversationSummary {
	return ConversationSummary{
		ID:         snap.ID,
		Status:     snap.Status,
		Topic:      snap.Topic,
		TurnCount:  snap.TurnCount,
		AgentCount: len(snap.Agents),
		Summarized: snap.Summarized,
	}
}

// ArchivedConversation is the archive listing shape.
type ArchivedConversation struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Status     string    `json:"status"`
	TurnCount  int       `json:"turn_count"`
	AgentCount int       `json:"agent_count"`
	Summary    string    `json:"summary,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
}
