package provider

import (
	"os"
	"strings"

	"github.com/Dhanuzh/ragchat/internal/backend"
)

// DefaultProvider is used when neither the backend nor the configuration
// names a current provider.
const DefaultProvider = "openai"

// MissingKeyMessage explains why a fallback provider is unusable.
const MissingKeyMessage = "Falta API key"

// knownProvider describes a provider for display and key entry.
type knownProvider struct {
	ID     string
	Name   string
	KeyURL string // API key page
	EnvVar string // conventional env var holding the key
}

// fallbackRegistry is the ordered list of well-known providers shown when
// the backend cannot be reached.
var fallbackRegistry = []knownProvider{
	{"openai", "OpenAI", "https://platform.openai.com/api-keys", "OPENAI_API_KEY"},
	{"anthropic", "Anthropic", "https://console.anthropic.com/", "ANTHROPIC_API_KEY"},
	{"google", "Google (Gemini)", "https://aistudio.google.com/apikey", "GOOGLE_API_KEY"},
	{"xai", "xAI (Grok)", "https://console.x.ai/", "XAI_API_KEY"},
	{"minimax", "MiniMax", "https://www.minimax.io/platform", "MINIMAX_API_KEY"},
}

func lookupKnown(id string) (knownProvider, bool) {
	for _, p := range fallbackRegistry {
		if p.ID == id {
			return p, true
		}
	}
	return knownProvider{}, false
}

// KeyEnvVar returns the env var conventionally holding the provider's API
// key, or "" for unknown providers.
func KeyEnvVar(id string) string {
	p, _ := lookupKnown(id)
	return p.EnvVar
}

// KeyURL returns where an API key for the provider can be created.
func KeyURL(id string) string {
	p, _ := lookupKnown(id)
	return p.KeyURL
}

// KeyFromEnv returns the provider's API key from its conventional env var.
func KeyFromEnv(id string) string {
	if env := KeyEnvVar(id); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// FallbackProviders returns the well-known providers, all unconfigured.
func FallbackProviders() []backend.ProviderInfo {
	out := make([]backend.ProviderInfo, 0, len(fallbackRegistry))
	for _, p := range fallbackRegistry {
		out = append(out, backend.ProviderInfo{
			ID:          p.ID,
			DisplayName: p.Name,
			Configured:  false,
			Message:     MissingKeyMessage,
		})
	}
	return out
}
