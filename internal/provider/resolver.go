// Package provider tracks which provider and model the session talks to and
// keeps that choice in sync with the backend.
package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Dhanuzh/ragchat/internal/backend"
	"github.com/Dhanuzh/ragchat/internal/logging"
)

// Backend is the part of the backend API the resolver uses.
type Backend interface {
	ListProviders(ctx context.Context) (*backend.ProvidersResponse, error)
	SaveProviderKey(ctx context.Context, provider, apiKey string) error
	ListModels(ctx context.Context, provider string) (*backend.ModelsResponse, error)
	SetModel(ctx context.Context, model string) error
}

// Resolver holds the session-wide current provider and model. Network
// failures never surface to callers: they are logged and turn into empty
// lists.
type Resolver struct {
	client          Backend
	defaultProvider string
	log             *logrus.Entry

	mu              sync.RWMutex
	providers       []backend.ProviderInfo
	providersLoaded bool
	models          []backend.ModelInfo
	currentProvider string
	currentModel    string
	generation      uint64
}

// NewResolver creates a resolver. defaultProvider is used when the backend
// does not report a current provider; empty means DefaultProvider.
func NewResolver(client Backend, defaultProvider string, logger *logrus.Logger) *Resolver {
	if defaultProvider == "" {
		defaultProvider = DefaultProvider
	}
	return &Resolver{
		client:          client,
		defaultProvider: defaultProvider,
		log:             logging.Component(logger, "provider"),
		providers:       []backend.ProviderInfo{},
		models:          []backend.ModelInfo{},
	}
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

// ListProviders fetches the providers from the backend. On failure it
// returns an empty slice.
func (r *Resolver) ListProviders(ctx context.Context) []backend.ProviderInfo {
	providers, _ := r.fetchProviders(ctx)
	return providers
}

func (r *Resolver) fetchProviders(ctx context.Context) ([]backend.ProviderInfo, string) {
	resp, err := r.client.ListProviders(ctx)
	if err != nil {
		r.log.WithError(err).Warn("failed to load providers")
		r.mu.Lock()
		r.providers = []backend.ProviderInfo{}
		r.providersLoaded = false
		r.mu.Unlock()
		return []backend.ProviderInfo{}, ""
	}

	providers := resp.Providers
	if providers == nil {
		providers = []backend.ProviderInfo{}
	}

	r.mu.Lock()
	r.providers = providers
	r.providersLoaded = true
	r.mu.Unlock()

	return append([]backend.ProviderInfo(nil), providers...), resp.CurrentProvider
}

// Providers returns the last fetched provider list.
func (r *Resolver) Providers() []backend.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]backend.ProviderInfo{}, r.providers...)
}

// DisplayProviders returns the fetched providers, or the fallback list
// when the backend returned none.
func (r *Resolver) DisplayProviders() []backend.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.providersLoaded || len(r.providers) == 0 {
		return FallbackProviders()
	}
	return append([]backend.ProviderInfo{}, r.providers...)
}

// SaveProviderKey stores a credential on the backend and refreshes the
// provider list. A blank key is ignored. It reports whether the backend
// accepted the key.
func (r *Resolver) SaveProviderKey(ctx context.Context, providerID, apiKey string) bool {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" || providerID == "" {
		return false
	}

	err := r.client.SaveProviderKey(ctx, providerID, apiKey)
	if err != nil {
		r.log.WithError(err).WithField("provider", providerID).Warn("failed to save provider key")
	}
	r.fetchProviders(ctx)
	return err == nil
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

// ListModels fetches the models of a provider. On failure it returns an
// empty slice. It does not change the resolver state.
func (r *Resolver) ListModels(ctx context.Context, providerID string) []backend.ModelInfo {
	models, _ := r.fetchModels(ctx, providerID)
	return models
}

func (r *Resolver) fetchModels(ctx context.Context, providerID string) ([]backend.ModelInfo, string) {
	resp, err := r.client.ListModels(ctx, providerID)
	if err != nil {
		r.log.WithError(err).WithField("provider", providerID).Warn("failed to load models")
		return []backend.ModelInfo{}, ""
	}
	if resp.Models == nil {
		return []backend.ModelInfo{}, resp.CurrentModel
	}
	return resp.Models, resp.CurrentModel
}

// SetActiveProvider makes providerID current and loads its models. The
// fetched list is applied only if no other switch started meanwhile; the
// return value reports whether it was.
func (r *Resolver) SetActiveProvider(ctx context.Context, providerID string) bool {
	gen := r.beginSwitch(providerID)
	models, current := r.fetchModels(ctx, providerID)
	return r.applyModels(gen, providerID, models, current)
}

func (r *Resolver) beginSwitch(providerID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.currentProvider = providerID
	r.currentModel = ""
	r.models = []backend.ModelInfo{}
	return r.generation
}

func (r *Resolver) applyModels(gen uint64, providerID string, models []backend.ModelInfo, current string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation || providerID != r.currentProvider {
		r.log.WithField("provider", providerID).Debug("discarding stale model list")
		return false
	}
	r.models = models
	r.currentModel = current
	return true
}

// PushModel tells the backend which model to answer with. Failures are
// logged and ignored.
func (r *Resolver) PushModel(ctx context.Context, modelID string) {
	if modelID == "" {
		return
	}
	if err := r.client.SetModel(ctx, modelID); err != nil {
		r.log.WithError(err).WithField("model", modelID).Warn("failed to push model")
	}
}

// SelectModel makes modelID current and pushes it. It reports whether the
// backend acknowledged the push.
func (r *Resolver) SelectModel(ctx context.Context, modelID string) bool {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return false
	}
	r.SetCurrentModel(modelID)

	if err := r.client.SetModel(ctx, modelID); err != nil {
		r.log.WithError(err).WithField("model", modelID).Warn("failed to select model")
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Startup
// ---------------------------------------------------------------------------

// Start resolves the initial provider and model. A stored model is pushed
// before the model list is fetched so the reported current model reflects
// it. The chat's own model wins over both.
func (r *Resolver) Start(ctx context.Context, storedModel, chatModel string) {
	_, reported := r.fetchProviders(ctx)

	r.mu.RLock()
	providerID := r.currentProvider
	r.mu.RUnlock()
	if reported != "" {
		providerID = reported
	}
	if providerID == "" {
		providerID = r.defaultProvider
	}

	gen := r.beginSwitch(providerID)

	if storedModel != "" {
		r.PushModel(ctx, storedModel)
	}

	models, current := r.fetchModels(ctx, providerID)
	if !r.applyModels(gen, providerID, models, current) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case chatModel != "":
		r.currentModel = chatModel
	case current != "":
		r.currentModel = current
	default:
		r.currentModel = storedModel
	}
	r.log.WithFields(logrus.Fields{
		"provider": r.currentProvider,
		"model":    r.currentModel,
		"models":   len(r.models),
	}).Debug("resolver started")
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// CurrentProvider returns the session's provider id.
func (r *Resolver) CurrentProvider() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentProvider
}

// CurrentModel returns the session's model id.
func (r *Resolver) CurrentModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentModel
}

// SetCurrentModel changes the session's model without contacting the
// backend.
func (r *Resolver) SetCurrentModel(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentModel = modelID
}

// Models returns the model list of the current provider. An empty list
// means model selection is unavailable.
func (r *Resolver) Models() []backend.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]backend.ModelInfo{}, r.models...)
}

// HasModel reports whether modelID is in the current model list.
func (r *Resolver) HasModel(modelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.models {
		if m.ID == modelID {
			return true
		}
	}
	return false
}
