package session

import (
	"strings"
	"unicode/utf8"

	"github.com/Dhanuzh/ragchat/internal/backend"
)

// PlaceholderTitle is the title of a chat that has no question yet.
const PlaceholderTitle = "Nuevo chat"

// MaxTitleLength is the number of characters kept from the first question.
const MaxTitleLength = 40

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat log. Messages are never edited after
// they are appended.
type Message struct {
	Role       Role                `json:"role"`
	Content    string              `json:"content"`
	UsedChunks []backend.UsedChunk `json:"usedChunks,omitempty"` // assistant only
}

// Chat is one independent conversation with its own pinned model.
type Chat struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Clone returns a copy of the message that shares nothing with m.
func (m Message) Clone() Message {
	if m.UsedChunks != nil {
		chunks := make([]backend.UsedChunk, len(m.UsedChunks))
		copy(chunks, m.UsedChunks)
		m.UsedChunks = chunks
	}
	return m
}

// Clone returns a deep copy of the chat.
func (c *Chat) Clone() Chat {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, msg := range c.Messages {
		out.Messages[i] = msg.Clone()
	}
	return out
}

// LastAssistant returns the index of the most recent assistant message,
// or -1 when the chat has none.
func (c *Chat) LastAssistant() int {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}

// DeriveTitle builds a chat title from its first question.
func DeriveTitle(question string) string {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return PlaceholderTitle
	}
	if utf8.RuneCountInString(trimmed) <= MaxTitleLength {
		return trimmed
	}
	return string([]rune(trimmed)[:MaxTitleLength])
}
