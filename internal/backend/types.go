package backend

// ProviderInfo describes a language-model vendor as reported by the backend.
type ProviderInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Configured  bool   `json:"configured"`
	Message     string `json:"message,omitempty"` // why the provider is not usable yet
}

// ModelInfo is one model offered by a provider.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// UsedChunk is a knowledge-base passage cited by an answer.
type UsedChunk struct {
	ID             string `json:"id"`
	ContentPreview string `json:"content_preview"`
}

// ProvidersResponse is the body of GET /api/providers.
type ProvidersResponse struct {
	Providers       []ProviderInfo `json:"providers"`
	CurrentProvider string         `json:"current_provider,omitempty"`
}

// ModelsResponse is the body of GET /api/models.
type ModelsResponse struct {
	Models       []ModelInfo `json:"models"`
	CurrentModel string      `json:"current_model,omitempty"`
}

// AskResponse is the body of a successful POST /api/ask.
type AskResponse struct {
	Answer     string      `json:"answer"`
	UsedChunks []UsedChunk `json:"used_chunks"`
}

// InitEmbeddingsResponse is the body of POST /api/init_embeddings.
type InitEmbeddingsResponse struct {
	Status      string `json:"status,omitempty"`
	ChunksCount int    `json:"chunks_count"`
}

type askRequest struct {
	Question string `json:"question"`
}

type setModelRequest struct {
	Model string `json:"model"`
}

type providerKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}
