// Package bot implements the relay core: routing inbound platform events to
// command, authentication and chat handlers operating on per-user sessions.
package bot

import "context"

// Event is one normalized inbound platform update.
type Event struct {
	// ID correlates log lines for one update; assigned at the transport edge.
	ID        string
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
}

// Valid reports whether the event carries enough to be routed at all.
func (e Event) Valid() bool {
	return e.UserID != 0 && e.ChatID != 0
}

// MessageRef identifies a sent message for later edit or delete.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Messenger is the outbound side of the messaging platform.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, markdown bool) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
	Delete(ctx context.Context, ref MessageRef) error
}
