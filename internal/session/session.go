// Package session owns the chat threads of one user session: the chat store,
// the sticky context selection and the ask state machine.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dhanuzh/ragchat/internal/logging"
)

// Persister writes and reads the full chat list. Implementations must
// replace the previous list atomically.
type Persister interface {
	LoadChats() ([]Chat, error)
	SaveChats(chats []Chat) error
}

// Store manages the chat list. The list is ordered most recently created
// first and every mutation is written through to the Persister.
type Store struct {
	mu       sync.RWMutex
	chats    []*Chat
	activeID string
	persist  Persister
	log      *logrus.Entry

	onCreate []func(chatID string)
}

// NewStore creates an empty store. persist may be nil for a memory-only
// store.
func NewStore(persist Persister, logger *logrus.Logger) *Store {
	return &Store{
		persist: persist,
		log:     logging.Component(logger, "chats"),
	}
}

// OnCreate registers a callback run after a chat is created.
func (s *Store) OnCreate(fn func(chatID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreate = append(s.onCreate, fn)
}

// Load replaces the in-memory list with the persisted one and activates
// the most recent chat. It is meant to run once at startup.
func (s *Store) Load() error {
	if s.persist == nil {
		return nil
	}
	chats, err := s.persist.LoadChats()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats = make([]*Chat, 0, len(chats))
	for i := range chats {
		c := chats[i].Clone()
		s.chats = append(s.chats, &c)
	}
	s.activeID = ""
	if len(s.chats) > 0 {
		s.activeID = s.chats[0].ID
	}
	s.log.WithField("chats", len(s.chats)).Debug("chats loaded")
	return nil
}

// Create allocates a new chat, puts it first and makes it active.
func (s *Store) Create(defaultModel string) Chat {
	chat := &Chat{
		ID:       uuid.New().String(),
		Title:    PlaceholderTitle,
		Model:    defaultModel,
		Messages: []Message{},
	}

	s.mu.Lock()
	s.chats = append([]*Chat{chat}, s.chats...)
	s.activeID = chat.ID
	s.saveLocked()
	out := chat.Clone()
	hooks := append([]func(string){}, s.onCreate...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(out.ID)
	}
	return out
}

// Append adds a message to a chat and returns its index. Unknown chats are
// ignored and reported with ok=false. The first user message names the
// chat.
func (s *Store) Append(chatID string, msg Message) (index int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.findLocked(chatID)
	if chat == nil {
		s.log.WithField("chat", chatID).Debug("append to unknown chat ignored")
		return -1, false
	}

	if len(chat.Messages) == 0 && msg.Role == RoleUser {
		chat.Title = DeriveTitle(msg.Content)
	}
	chat.Messages = append(chat.Messages, msg.Clone())
	s.saveLocked()
	return len(chat.Messages) - 1, true
}

// SetModel pins a model to a chat.
func (s *Store) SetModel(chatID, modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.findLocked(chatID)
	if chat == nil {
		return false
	}
	chat.Model = modelID
	s.saveLocked()
	return true
}

// Find returns a copy of the chat.
func (s *Store) Find(chatID string) (Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat := s.findLocked(chatID)
	if chat == nil {
		return Chat{}, false
	}
	return chat.Clone(), true
}

// Active returns the active chat. A dangling active id counts as none.
func (s *Store) Active() (Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == "" {
		return Chat{}, false
	}
	chat := s.findLocked(s.activeID)
	if chat == nil {
		return Chat{}, false
	}
	return chat.Clone(), true
}

// ActiveID returns the active chat id, or "" when there is none.
func (s *Store) ActiveID() string {
	chat, ok := s.Active()
	if !ok {
		return ""
	}
	return chat.ID
}

// SetActive switches the active chat. Unknown ids leave it unchanged.
func (s *Store) SetActive(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(chatID) == nil {
		return false
	}
	s.activeID = chatID
	return true
}

// List returns copies of all chats, most recently created first.
func (s *Store) List() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Chat, len(s.chats))
	for i, c := range s.chats {
		out[i] = c.Clone()
	}
	return out
}

// Len returns the number of chats.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}

// Internal helpers

func (s *Store) findLocked(chatID string) *Chat {
	for _, c := range s.chats {
		if c.ID == chatID {
			return c
		}
	}
	return nil
}

// saveLocked writes the whole list. Failures are logged, never returned:
// the in-memory state stays authoritative for the session.
func (s *Store) saveLocked() {
	if s.persist == nil {
		return
	}
	snapshot := make([]Chat, len(s.chats))
	for i, c := range s.chats {
		snapshot[i] = c.Clone()
	}
	if err := s.persist.SaveChats(snapshot); err != nil {
		s.log.WithError(err).Warn("failed to persist chats")
	}
}
