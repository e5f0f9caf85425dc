// Package app wires the components of one chat session together. An App is
// created at session start, started once and closed at session end.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Dhanuzh/ragchat/internal/backend"
	"github.com/Dhanuzh/ragchat/internal/config"
	"github.com/Dhanuzh/ragchat/internal/logging"
	"github.com/Dhanuzh/ragchat/internal/provider"
	"github.com/Dhanuzh/ragchat/internal/session"
	"github.com/Dhanuzh/ragchat/internal/storage"
)

var (
	// ErrModelsUnavailable is returned by SelectModel when the current
	// provider offers no models.
	ErrModelsUnavailable = errors.New("no models available for the current provider")

	// ErrUnknownModel is returned by SelectModel for ids outside the
	// current model list.
	ErrUnknownModel = errors.New("model not offered by the current provider")
)

// App is the single owner of a session's state.
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	log    *logrus.Entry

	kv       storage.KV
	state    *storage.Adapter
	client   *backend.Client
	chats    *session.Store
	selector *session.Selector
	resolver *provider.Resolver
	engine   *session.Engine

	mu          sync.RWMutex
	storedModel string
}

// New opens the local store and builds every component. Nothing talks to
// the backend until Start.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	client, err := backend.NewClient(cfg.BackendURL, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	kv, err := storage.Open(cfg.Store, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		log:    logging.Component(logger, "app"),
		kv:     kv,
		state:  storage.NewAdapter(kv, logger),
		client: client,
	}
	a.chats = session.NewStore(a.state, logger)
	a.selector = session.NewSelector(a.chats)
	a.resolver = provider.NewResolver(client, cfg.Provider, logger)
	a.engine = session.NewEngine(a.chats, a.selector, sessionModels{a}, client, logger)
	return a, nil
}

// sessionModels lets the engine default new chats to the session model,
// falling back to the last model the user picked.
type sessionModels struct{ a *App }

func (m sessionModels) PushModel(ctx context.Context, modelID string) {
	m.a.resolver.PushModel(ctx, modelID)
}

func (m sessionModels) CurrentModel() string {
	return m.a.DefaultModel()
}

// Start restores local state and synchronizes provider and model with the
// backend. Failures degrade to empty state and are logged.
func (a *App) Start(ctx context.Context) {
	a.Restore()
	a.sync(ctx)
}

// Restore loads persisted chats and the remembered model without
// contacting the backend.
func (a *App) Restore() {
	if err := a.chats.Load(); err != nil {
		a.log.WithError(err).Warn("could not restore chats")
	}

	stored, err := a.state.LoadModel()
	if err != nil {
		a.log.WithError(err).Warn("could not read last model")
	}
	if a.cfg.Model != "" {
		stored = a.cfg.Model
	}
	a.mu.Lock()
	a.storedModel = stored
	a.mu.Unlock()
}

// sync runs the resolver startup sequence for the active chat.
func (a *App) sync(ctx context.Context) {
	chatModel := ""
	if chat, ok := a.chats.Active(); ok {
		chatModel = chat.Model
	}
	a.resolver.Start(ctx, a.StoredModel(), chatModel)
}

// Close releases the local store.
func (a *App) Close() error {
	return a.kv.Close()
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// NewChat creates an empty chat pinned to the session model and makes it
// active.
func (a *App) NewChat() session.Chat {
	return a.chats.Create(a.DefaultModel())
}

// SwitchChat activates a chat and re-synchronizes provider and model so
// the chat's pinned model becomes current.
func (a *App) SwitchChat(ctx context.Context, chatID string) bool {
	if !a.chats.SetActive(chatID) {
		return false
	}
	a.sync(ctx)
	return true
}

// SwitchProvider makes providerID current and loads its models. It reports
// whether the fetched model list was applied.
func (a *App) SwitchProvider(ctx context.Context, providerID string) bool {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return false
	}
	return a.resolver.SetActiveProvider(ctx, providerID)
}

// SelectModel pins modelID to the active chat, makes it the session model
// and pushes it to the backend. The id is remembered for the next session
// only when the backend acknowledged it.
func (a *App) SelectModel(ctx context.Context, modelID string) (bool, error) {
	modelID = strings.TrimSpace(modelID)
	if len(a.resolver.Models()) == 0 {
		return false, ErrModelsUnavailable
	}
	if !a.resolver.HasModel(modelID) {
		return false, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}

	if id := a.chats.ActiveID(); id != "" {
		a.chats.SetModel(id, modelID)
	}

	if !a.resolver.SelectModel(ctx, modelID) {
		return false, nil
	}

	if err := a.state.SaveModel(modelID); err != nil {
		a.log.WithError(err).Warn("could not remember model")
	} else {
		a.mu.Lock()
		a.storedModel = modelID
		a.mu.Unlock()
	}
	return true, nil
}

// SaveProviderKey stores a provider credential on the backend. Blank keys
// are ignored.
func (a *App) SaveProviderKey(ctx context.Context, providerID, apiKey string) bool {
	return a.resolver.SaveProviderKey(ctx, providerID, apiKey)
}

// InitKnowledgeBase asks the backend to (re)build its embeddings and
// returns the number of chunks indexed.
func (a *App) InitKnowledgeBase(ctx context.Context) (int, bool) {
	count, err := a.client.InitEmbeddings(ctx)
	if err != nil {
		a.log.WithError(err).Warn("failed to initialize knowledge base")
		return 0, false
	}
	a.log.WithField("chunks", count).Info("knowledge base initialized")
	return count, true
}

// Ask sends a question in the active chat.
func (a *App) Ask(ctx context.Context, question string) session.Result {
	return a.engine.Ask(ctx, question)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Config returns the session configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Chats returns the chat store.
func (a *App) Chats() *session.Store { return a.chats }

// Selector returns the context selector.
func (a *App) Selector() *session.Selector { return a.selector }

// Resolver returns the provider/model resolver.
func (a *App) Resolver() *provider.Resolver { return a.resolver }

// Engine returns the ask engine.
func (a *App) Engine() *session.Engine { return a.engine }

// StoredModel returns the model remembered from the last session.
func (a *App) StoredModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.storedModel
}

// DefaultModel is the model new chats are pinned to: the session model,
// else the remembered one.
func (a *App) DefaultModel() string {
	if m := a.resolver.CurrentModel(); m != "" {
		return m
	}
	return a.StoredModel()
}
