package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanuzh/ragchat/internal/backend"
	"github.com/Dhanuzh/ragchat/internal/logging"
)

// fakeBackend serves the settings endpoints from in-memory state.
type fakeBackend struct {
	mu              sync.Mutex
	providers       []backend.ProviderInfo
	currentProvider string
	models          map[string][]backend.ModelInfo
	currentModel    string
	failProviders   bool
	failModels      bool
	failSetModel    bool
	failKey         bool
	block           map[string]chan struct{} // provider -> gate for /api/models
	requested       map[string]chan struct{} // provider -> closed when /api/models arrives
	calls           []string
	keys            map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		providers: []backend.ProviderInfo{
			{ID: "openai", DisplayName: "OpenAI", Configured: true},
			{ID: "anthropic", DisplayName: "Anthropic", Configured: true},
		},
		currentProvider: "openai",
		models: map[string][]backend.ModelInfo{
			"openai":    {{ID: "gpt-x", OwnedBy: "openai"}, {ID: "gpt-y"}},
			"anthropic": {{ID: "claude-x"}},
		},
		block:     make(map[string]chan struct{}),
		requested: make(map[string]chan struct{}),
		keys:      make(map[string]string),
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case backend.PathProviders:
		f.record("providers")
		f.mu.Lock()
		fail := f.failProviders
		body := backend.ProvidersResponse{Providers: f.providers, CurrentProvider: f.currentProvider}
		f.mu.Unlock()
		if fail {
			http.Error(w, "providers unavailable", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(body)

	case backend.PathModels:
		p := r.URL.Query().Get("provider")
		f.record("models:" + p)
		f.mu.Lock()
		gate := f.block[p]
		seen := f.requested[p]
		f.mu.Unlock()
		if seen != nil {
			close(seen)
		}
		if gate != nil {
			<-gate
		}
		f.mu.Lock()
		fail := f.failModels
		body := backend.ModelsResponse{Models: f.models[p], CurrentModel: f.currentModel}
		f.mu.Unlock()
		if fail {
			http.Error(w, "models unavailable", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(body)

	case backend.PathSetModel:
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		f.record("set-model:" + req["model"])
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failSetModel {
			http.Error(w, "cannot set model", http.StatusInternalServerError)
			return
		}
		f.currentModel = req["model"]
		w.Write([]byte(`{"status":"ok"}`))

	case backend.PathProviderKey:
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		f.record("key:" + req["provider"])
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failKey {
			http.Error(w, "bad key", http.StatusBadRequest)
			return
		}
		f.keys[req["provider"]] = req["api_key"]
		for i := range f.providers {
			if f.providers[i].ID == req["provider"] {
				f.providers[i].Configured = true
			}
		}
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func newTestResolver(t *testing.T, fake *fakeBackend) *Resolver {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL, 0)
	require.NoError(t, err)
	return NewResolver(client, "", logging.Discard())
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

func TestListProviders(t *testing.T) {
	fake := newFakeBackend()
	r := newTestResolver(t, fake)

	got := r.ListProviders(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "OpenAI", got[0].DisplayName)
	assert.Equal(t, got, r.DisplayProviders())
}

func TestListProvidersFailureFallsBack(t *testing.T) {
	fake := newFakeBackend()
	fake.failProviders = true
	r := newTestResolver(t, fake)

	got := r.ListProviders(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)

	display := r.DisplayProviders()
	assert.Equal(t, FallbackProviders(), display)
}

func TestFallbackProviders(t *testing.T) {
	got := FallbackProviders()
	require.Len(t, got, 5)

	ids := make([]string, len(got))
	for i, p := range got {
		ids[i] = p.ID
		assert.False(t, p.Configured)
		assert.Equal(t, MissingKeyMessage, p.Message)
	}
	assert.Equal(t, []string{"openai", "anthropic", "google", "xai", "minimax"}, ids)
	assert.Equal(t, "Google (Gemini)", got[2].DisplayName)
}

func TestKeyFromEnv(t *testing.T) {
	t.Setenv("XAI_API_KEY", "  xai-secret \n")

	assert.Equal(t, "XAI_API_KEY", KeyEnvVar("xai"))
	assert.Equal(t, "xai-secret", KeyFromEnv("xai"))
	assert.Equal(t, "https://console.x.ai/", KeyURL("xai"))

	assert.Empty(t, KeyEnvVar("unknown"))
	assert.Empty(t, KeyFromEnv("unknown"))
	assert.Empty(t, KeyURL("unknown"))
}

func TestSaveProviderKey(t *testing.T) {
	fake := newFakeBackend()
	fake.providers[1].Configured = false
	r := newTestResolver(t, fake)

	assert.True(t, r.SaveProviderKey(context.Background(), "anthropic", "  sk-123  "))
	fake.set(func(f *fakeBackend) { assert.Equal(t, "sk-123", f.keys["anthropic"]) })
	assert.Equal(t, []string{"key:anthropic", "providers"}, fake.callList())
	assert.True(t, r.Providers()[1].Configured, "providers are refreshed")
}

func TestSaveProviderKeyBlankIsNoop(t *testing.T) {
	fake := newFakeBackend()
	r := newTestResolver(t, fake)

	assert.False(t, r.SaveProviderKey(context.Background(), "openai", "   "))
	assert.Empty(t, fake.callList())
}

func TestSaveProviderKeyFailureStillRefreshes(t *testing.T) {
	fake := newFakeBackend()
	fake.failKey = true
	r := newTestResolver(t, fake)

	assert.False(t, r.SaveProviderKey(context.Background(), "openai", "sk"))
	assert.Equal(t, []string{"key:openai", "providers"}, fake.callList())
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

func TestSetActiveProviderLoadsModels(t *testing.T) {
	fake := newFakeBackend()
	fake.currentModel = "claude-x"
	r := newTestResolver(t, fake)

	assert.True(t, r.SetActiveProvider(context.Background(), "anthropic"))
	assert.Equal(t, "anthropic", r.CurrentProvider())
	assert.Equal(t, "claude-x", r.CurrentModel())
	assert.Equal(t, []backend.ModelInfo{{ID: "claude-x"}}, r.Models())
	assert.True(t, r.HasModel("claude-x"))
	assert.False(t, r.HasModel("gpt-x"))
}

func TestSetActiveProviderFailureLeavesEmptyModels(t *testing.T) {
	fake := newFakeBackend()
	r := newTestResolver(t, fake)
	r.SetCurrentModel("gpt-x")
	fake.set(func(f *fakeBackend) { f.failModels = true })

	assert.True(t, r.SetActiveProvider(context.Background(), "anthropic"))
	assert.Equal(t, "", r.CurrentModel())
	assert.Empty(t, r.Models())
	assert.NotNil(t, r.Models())
}

func TestListModelsFailure(t *testing.T) {
	fake := newFakeBackend()
	fake.failModels = true
	r := newTestResolver(t, fake)

	got := r.ListModels(context.Background(), "openai")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStaleModelListIsDiscarded(t *testing.T) {
	fake := newFakeBackend()
	gate := make(chan struct{})
	seen := make(chan struct{})
	fake.block["openai"] = gate
	fake.requested["openai"] = seen
	r := newTestResolver(t, fake)

	applied := make(chan bool)
	go func() { applied <- r.SetActiveProvider(context.Background(), "openai") }()

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("openai model fetch never started")
	}

	assert.True(t, r.SetActiveProvider(context.Background(), "anthropic"))
	close(gate)

	assert.False(t, <-applied, "openai result must be discarded")
	assert.Equal(t, "anthropic", r.CurrentProvider())
	assert.Equal(t, []backend.ModelInfo{{ID: "claude-x"}}, r.Models())
}

func TestPushModel(t *testing.T) {
	fake := newFakeBackend()
	r := newTestResolver(t, fake)

	r.PushModel(context.Background(), "")
	assert.Empty(t, fake.callList())

	r.PushModel(context.Background(), "gpt-y")
	assert.Equal(t, []string{"set-model:gpt-y"}, fake.callList())

	fake.set(func(f *fakeBackend) { f.failSetModel = true })
	r.PushModel(context.Background(), "gpt-x") // logged, not fatal
}

func TestSelectModel(t *testing.T) {
	fake := newFakeBackend()
	r := newTestResolver(t, fake)

	assert.True(t, r.SelectModel(context.Background(), "gpt-y"))
	assert.Equal(t, "gpt-y", r.CurrentModel())

	fake.set(func(f *fakeBackend) { f.failSetModel = true })

	assert.False(t, r.SelectModel(context.Background(), "gpt-x"))
	assert.Equal(t, "gpt-x", r.CurrentModel(), "local choice is kept")

	assert.False(t, r.SelectModel(context.Background(), " "))
}

// ---------------------------------------------------------------------------
// Startup
// ---------------------------------------------------------------------------

func TestStartPushesStoredModelBeforeFetchingModels(t *testing.T) {
	fake := newFakeBackend()
	r := newTestResolver(t, fake)

	r.Start(context.Background(), "gpt-y", "")

	assert.Equal(t, []string{"providers", "set-model:gpt-y", "models:openai"}, fake.callList())
	assert.Equal(t, "openai", r.CurrentProvider())
	assert.Equal(t, "gpt-y", r.CurrentModel(), "reported current model reflects the push")
	assert.Len(t, r.Models(), 2)
}

func TestStartChatModelWins(t *testing.T) {
	fake := newFakeBackend()
	fake.currentModel = "gpt-x"
	r := newTestResolver(t, fake)

	r.Start(context.Background(), "", "gpt-y")
	assert.Equal(t, "gpt-y", r.CurrentModel())
	assert.Equal(t, []string{"providers", "models:openai"}, fake.callList())
}

func TestStartFallsBackToStoredModel(t *testing.T) {
	fake := newFakeBackend()
	fake.failSetModel = true
	r := newTestResolver(t, fake)

	r.Start(context.Background(), "gpt-y", "")
	assert.Equal(t, "gpt-y", r.CurrentModel())
}

func TestStartBackendDown(t *testing.T) {
	fake := newFakeBackend()
	fake.failProviders = true
	fake.failModels = true
	r := newTestResolver(t, fake)

	r.Start(context.Background(), "", "")
	assert.Equal(t, DefaultProvider, r.CurrentProvider())
	assert.Equal(t, "", r.CurrentModel())
	assert.Empty(t, r.Models())
	assert.Len(t, r.DisplayProviders(), 5)
}

func TestStartUsesConfiguredDefaultProvider(t *testing.T) {
	fake := newFakeBackend()
	fake.currentProvider = ""
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client, err := backend.NewClient(srv.URL, 0)
	require.NoError(t, err)

	r := NewResolver(client, "anthropic", logging.Discard())
	r.Start(context.Background(), "", "")
	assert.Equal(t, "anthropic", r.CurrentProvider())
	assert.Equal(t, []backend.ModelInfo{{ID: "claude-x"}}, r.Models())
}
