package telegram

import (
	"github.com/google/uuid"

	"github.com/ent0n29/claudegram/internal/bot"
)

// Wire types for the subset of the Bot API the relay consumes.

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Text      string `json:"text,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type WebhookInfo struct {
	URL                  string `json:"url"`
	HasCustomCertificate bool   `json:"has_custom_certificate"`
	PendingUpdateCount   int    `json:"pending_update_count"`
	LastErrorMessage     string `json:"last_error_message,omitempty"`
}

// Event normalizes an update into a routable core event. The second return
// is false for updates that carry no routable message (edits, channel posts,
// or messages missing sender or chat).
func (u Update) Event() (bot.Event, bool) {
	if u.Message == nil || u.Message.From == nil || u.Message.Chat == nil {
		return bot.Event{}, false
	}
	return bot.Event{
		ID:        uuid.NewString(),
		UserID:    u.Message.From.ID,
		ChatID:    u.Message.Chat.ID,
		MessageID: u.Message.MessageID,
		Text:      u.Message.Text,
	}, true
}
