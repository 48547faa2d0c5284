package session

import (
	"time"
)

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message exchanged with the model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session holds one user's authentication state and bounded conversation
// history. Instances are owned by a Store; callers receive snapshots and
// mutate through Store.Update.
type Session struct {
	UserID         int64     `json:"user_id"`
	Authenticated  bool      `json:"authenticated"`
	Provider       string    `json:"provider,omitempty"`
	Credential     string    `json:"credential,omitempty"`
	History        []Turn    `json:"history"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// New creates a fresh unauthenticated session for the given user.
func New(userID int64) *Session {
	return &Session{UserID: userID, LastActivityAt: time.Now().UTC()}
}

// AddTurn appends a turn and trims history to the most recent max entries.
func (s *Session) AddTurn(role Role, content string, max int) {
	s.History = append(s.History, Turn{Role: role, Content: content})
	if max > 0 && len(s.History) > max {
		trimmed := make([]Turn, max)
		copy(trimmed, s.History[len(s.History)-max:])
		s.History = trimmed
	}
	s.LastActivityAt = time.Now().UTC()
}

// ResetHistory clears conversation history without touching authentication.
func (s *Session) ResetHistory() {
	s.History = nil
	s.LastActivityAt = time.Now().UTC()
}

// Authenticate binds a credential. The transition is one-way for the
// session's lifetime; nothing ever clears the flag.
func (s *Session) Authenticate(provider, credential string) {
	s.Authenticated = true
	s.Provider = provider
	s.Credential = credential
	s.LastActivityAt = time.Now().UTC()
}

func (s *Session) clone() *Session {
	c := *s
	if s.History != nil {
		c.History = make([]Turn, len(s.History))
		copy(c.History, s.History)
	}
	return &c
}
