package session

import (
	"sync"
	"time"
)

// StatusType represents whether a chat has an ask in flight
type StatusType string

const (
	StatusIdle    StatusType = "idle"
	StatusSending StatusType = "sending"
)

// Status is the processing state of one chat
type Status struct {
	Type  StatusType `json:"type"`
	Since time.Time  `json:"since,omitempty"`
}

// StatusManager tracks per-chat statuses with thread-safe access
type StatusManager struct {
	mu       sync.RWMutex
	statuses map[string]*Status
	onChange func(chatID string, status *Status)
}

// NewStatusManager creates a new status manager
func NewStatusManager() *StatusManager {
	return &StatusManager{
		statuses: make(map[string]*Status),
	}
}

// OnChange registers a callback for status changes
func (sm *StatusManager) OnChange(callback func(chatID string, status *Status)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onChange = callback
}

// Get returns the current status for a chat
func (sm *StatusManager) Get(chatID string) *Status {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if s, ok := sm.statuses[chatID]; ok {
		copied := *s
		return &copied
	}
	return &Status{Type: StatusIdle}
}

// TryBegin marks a chat as sending. It returns false, changing nothing,
// when the chat already has an ask in flight.
func (sm *StatusManager) TryBegin(chatID string) bool {
	sm.mu.Lock()
	if _, busy := sm.statuses[chatID]; busy {
		sm.mu.Unlock()
		return false
	}
	status := &Status{Type: StatusSending, Since: time.Now()}
	sm.statuses[chatID] = status
	cb := sm.onChange
	sm.mu.Unlock()

	if cb != nil {
		cb(chatID, status)
	}
	return true
}

// End marks a chat as idle
func (sm *StatusManager) End(chatID string) {
	sm.mu.Lock()
	delete(sm.statuses, chatID)
	cb := sm.onChange
	sm.mu.Unlock()

	if cb != nil {
		cb(chatID, &Status{Type: StatusIdle})
	}
}

// IsSending returns true if the chat has an ask in flight
func (sm *StatusManager) IsSending(chatID string) bool {
	return sm.Get(chatID).Type == StatusSending
}

// List returns all non-idle chat statuses
func (sm *StatusManager) List() map[string]*Status {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make(map[string]*Status, len(sm.statuses))
	for k, v := range sm.statuses {
		copied := *v
		result[k] = &copied
	}
	return result
}
