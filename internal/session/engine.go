package session

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Dhanuzh/ragchat/internal/backend"
	"github.com/Dhanuzh/ragchat/internal/logging"
)

// ModelPusher is the part of the provider resolver the engine needs.
type ModelPusher interface {
	PushModel(ctx context.Context, modelID string)
	CurrentModel() string
}

// Asker sends a question to the backend.
type Asker interface {
	Ask(ctx context.Context, question string) (*backend.AskResponse, error)
}

// Event types emitted while an ask is processed
const (
	EventInputConsumed = "input_consumed"
	EventSending       = "sending"
	EventAnswered      = "answered"
	EventFailed        = "failed"
	EventIdle          = "idle"
)

// Event is a progress notification for one ask
type Event struct {
	Type         string `json:"type"`
	ChatID       string `json:"chat_id"`
	MessageIndex int    `json:"message_index,omitempty"`
	Content      string `json:"content,omitempty"`
}

// Outcome is the final state of an ask
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeBusy     Outcome = "busy"
	OutcomeAnswered Outcome = "answered"
	OutcomeFailed   Outcome = "failed"
)

// Result describes what an ask did.
type Result struct {
	Outcome Outcome
	ChatID  string
	// MessageIndex is the index of the appended assistant message, -1 when
	// none was appended.
	MessageIndex int
	Message      Message
}

// Engine runs asks against the backend and records them in the chat store.
type Engine struct {
	store    *Store
	selector *Selector
	status   *StatusManager
	models   ModelPusher
	asker    Asker
	log      *logrus.Entry
	onEvent  func(Event)
}

// NewEngine creates a new ask engine
func NewEngine(store *Store, selector *Selector, models ModelPusher, asker Asker, logger *logrus.Logger) *Engine {
	return &Engine{
		store:    store,
		selector: selector,
		status:   NewStatusManager(),
		models:   models,
		asker:    asker,
		log:      logging.Component(logger, "ask"),
	}
}

// OnEvent sets the progress callback
func (e *Engine) OnEvent(callback func(Event)) {
	e.onEvent = callback
}

// Status returns the per-chat status manager
func (e *Engine) Status() *StatusManager {
	return e.status
}

func (e *Engine) emit(event Event) {
	if e.onEvent != nil {
		e.onEvent(event)
	}
}

// Ask records question in the active chat, creating one if needed, and
// appends the backend's answer or an error message. Only one ask per chat
// may be in flight; a concurrent one returns OutcomeBusy untouched.
func (e *Engine) Ask(ctx context.Context, question string) Result {
	if strings.TrimSpace(question) == "" {
		return Result{Outcome: OutcomeSkipped, MessageIndex: -1}
	}

	chat, ok := e.store.Active()
	if !ok {
		chat = e.store.Create(e.models.CurrentModel())
	}
	log := e.log.WithField("chat", chat.ID)

	if !e.status.TryBegin(chat.ID) {
		log.Debug("ask already in flight")
		return Result{Outcome: OutcomeBusy, ChatID: chat.ID, MessageIndex: -1}
	}
	defer func() {
		e.status.End(chat.ID)
		e.emit(Event{Type: EventIdle, ChatID: chat.ID})
	}()

	e.store.Append(chat.ID, Message{Role: RoleUser, Content: question})
	e.emit(Event{Type: EventInputConsumed, ChatID: chat.ID})
	e.emit(Event{Type: EventSending, ChatID: chat.ID})

	// Re-read the pin: the chat may have been re-pinned while we waited.
	if current, ok := e.store.Find(chat.ID); ok && current.Model != "" {
		e.models.PushModel(ctx, current.Model)
	}

	resp, err := e.asker.Ask(ctx, question)
	if err != nil {
		log.WithError(err).Warn("ask failed")
		msg := Message{Role: RoleAssistant, Content: "Error: " + err.Error()}
		idx, _ := e.store.Append(chat.ID, msg)
		e.emit(Event{Type: EventFailed, ChatID: chat.ID, MessageIndex: idx, Content: msg.Content})
		return Result{Outcome: OutcomeFailed, ChatID: chat.ID, MessageIndex: idx, Message: msg}
	}

	chunks := resp.UsedChunks
	if chunks == nil {
		chunks = []backend.UsedChunk{}
	}
	msg := Message{Role: RoleAssistant, Content: resp.Answer, UsedChunks: chunks}
	idx, _ := e.store.Append(chat.ID, msg)
	e.selector.RecordSelection(chat.ID, idx)
	log.WithField("chunks", len(chunks)).Debug("answer recorded")

	e.emit(Event{Type: EventAnswered, ChatID: chat.ID, MessageIndex: idx, Content: msg.Content})
	return Result{Outcome: OutcomeAnswered, ChatID: chat.ID, MessageIndex: idx, Message: msg}
}
