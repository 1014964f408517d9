package types

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession is a persisted assistant conversation, optionally tied to a
// crop season for context.
type ChatSession struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	SeasonID  *uuid.UUID `json:"season_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ChatMessage is one turn in an assistant conversation.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest starts or continues an assistant conversation. SessionID absent
// means start a new session.
type ChatRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	SeasonID  *uuid.UUID `json:"season_id,omitempty"`
	Message   string     `json:"message"`
}

// ChatResponse is the assistant's reply plus the session handle the client
// should reuse for follow-ups.
type ChatResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Reply     string    `json:"reply"`
}
