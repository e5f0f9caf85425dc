package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Dhanuzh/ragchat/internal/logging"
	"github.com/Dhanuzh/ragchat/internal/session"
)

// Keys used in the KV store.
const (
	ChatsKey = "cs_chats_v1"
	ModelKey = "cs_current_model"
)

// SchemaVersion is the chat list format written by this build.
const SchemaVersion = 1

type chatsEnvelope struct {
	Version int            `json:"version"`
	Chats   []session.Chat `json:"chats"`
}

// Adapter reads and writes typed session state over a KV. It implements
// session.Persister.
type Adapter struct {
	kv  KV
	log *logrus.Entry

	mu      sync.Mutex
	checked bool
	frozen  bool // persisted chats use a newer schema; never overwrite them
}

// NewAdapter wraps kv.
func NewAdapter(kv KV, logger *logrus.Logger) *Adapter {
	return &Adapter{kv: kv, log: logging.Component(logger, "storage")}
}

// LoadChats returns the persisted chat list, or nil when nothing was saved.
// The bare array written by older builds is accepted.
func (a *Adapter) LoadChats() ([]session.Chat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	chats, err := a.loadLocked()
	a.checked = true
	if errors.Is(err, ErrUnsupportedVersion) {
		a.frozen = true
		a.log.WithError(err).Warn("persisted chats are read-only for this version")
	}
	return chats, err
}

func (a *Adapter) loadLocked() ([]session.Chat, error) {
	data, err := a.kv.Get(ChatsKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if data[0] == '[' {
		var chats []session.Chat
		if err := json.Unmarshal(data, &chats); err != nil {
			return nil, fmt.Errorf("failed to decode chats: %w", err)
		}
		return chats, nil
	}

	var env chatsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	if env.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: %d (supported: %d)", ErrUnsupportedVersion, env.Version, SchemaVersion)
	}
	return env.Chats, nil
}

// SaveChats replaces the persisted chat list. It refuses to overwrite a
// list written by a newer schema.
func (a *Adapter) SaveChats(chats []session.Chat) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.checked {
		if _, err := a.loadLocked(); errors.Is(err, ErrUnsupportedVersion) {
			a.frozen = true
		}
		a.checked = true
	}
	if a.frozen {
		return fmt.Errorf("refusing to overwrite chats: %w", ErrUnsupportedVersion)
	}

	if chats == nil {
		chats = []session.Chat{}
	}
	data, err := json.Marshal(chatsEnvelope{Version: SchemaVersion, Chats: chats})
	if err != nil {
		return fmt.Errorf("failed to encode chats: %w", err)
	}
	return a.kv.Set(ChatsKey, data)
}

// LoadModel returns the last model id chosen by the user, or "".
func (a *Adapter) LoadModel() (string, error) {
	data, err := a.kv.Get(ModelKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveModel records the last model id chosen by the user.
func (a *Adapter) SaveModel(modelID string) error {
	return a.kv.Set(ModelKey, []byte(modelID))
}

// Frozen reports whether the persisted chats are read-only for this build.
func (a *Adapter) Frozen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}
