package models

import "time"

// Conversation groups the ordered messages exchanged in one session.
// Version is bumped by the repository on every successful write and is
// zero for a conversation that has never been stored.
type Conversation struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// IsNew reports whether the conversation holds no history yet.
func (c *Conversation) IsNew() bool {
	return c == nil || len(c.Messages) == 0
}

// Append adds messages and refreshes UpdatedAt.
func (c *Conversation) Append(now time.Time, msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

// Clone returns a deep copy safe to hand out of a cache.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}
