package session

import (
	"sync"

	"github.com/Dhanuzh/ragchat/internal/backend"
)

// Selector decides which message's retrieved chunks are on display for a
// chat. A selection is a plain index into the chat log, checked against
// the log on every read.
type Selector struct {
	store *Store

	mu       sync.Mutex
	selected map[string]*int
}

// NewSelector creates a selector over store. New chats start with no
// selection.
func NewSelector(store *Store) *Selector {
	sel := &Selector{
		store:    store,
		selected: make(map[string]*int),
	}
	store.OnCreate(sel.Reset)
	return sel
}

// RecordSelection makes index the sticky selection of a chat.
func (s *Selector) RecordSelection(chatID string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := index
	s.selected[chatID] = &i
}

// Reset clears the explicit selection of a chat.
func (s *Selector) Reset(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[chatID] = nil
}

// Selected returns the explicit selection of a chat, if any.
func (s *Selector) Selected(chatID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.selected[chatID]
	if idx == nil {
		return 0, false
	}
	return *idx, true
}

// SelectionFor returns the message whose context is on display: the
// explicit selection while it still points into the log, otherwise the
// most recent assistant message.
func (s *Selector) SelectionFor(chatID string) (Message, bool) {
	chat, ok := s.store.Find(chatID)
	if !ok {
		return Message{}, false
	}

	if idx, ok := s.Selected(chatID); ok && idx >= 0 && idx < len(chat.Messages) {
		return chat.Messages[idx], true
	}

	if i := chat.LastAssistant(); i >= 0 {
		return chat.Messages[i], true
	}
	return Message{}, false
}

// ChunksFor returns the chunks of the displayed message, never nil.
func (s *Selector) ChunksFor(chatID string) []backend.UsedChunk {
	msg, ok := s.SelectionFor(chatID)
	if !ok || len(msg.UsedChunks) == 0 {
		return []backend.UsedChunk{}
	}
	return msg.UsedChunks
}
