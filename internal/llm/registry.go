package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/logging"
)

// ProviderError is a failure reported by a model provider. Code is the
// HTTP status when there was one.
type ProviderError struct {
	Provider string
	Message  string
	Code     int
}

func (e *ProviderError) Error() string {
	if e.Code == 0 {
		return e.Provider + ": " + e.Message
	}
	return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
}

// Registry maps provider names and model names to clients. Lookups fall
// back to a default provider so a stale model name in config still gets
// an answer.
type Registry struct {
	mu          sync.RWMutex
	clients     map[string]Client
	models      map[string]string // model → provider
	fallback    string
	transcriber Transcriber
	log         *logging.Logger
}

func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		models:  make(map[string]string),
		log:     log.Sub("llm"),
	}
}

func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	r.clients[name] = client
	r.mu.Unlock()
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias routes requests for model to provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[model] = provider
}

// SetFallback names the provider used for anything unmatched.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

func (r *Registry) SetTranscriber(t Transcriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber = t
}

// Transcriber is nil when no speech-to-text provider is configured.
func (r *Registry) Transcriber() Transcriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transcriber
}

// Resolve finds the client for a provider or model name, trying the name
// as a provider, then as a model alias, then the fallback.
func (r *Registry) Resolve(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, provider := range []string{name, r.models[name], r.fallback} {
		if c, ok := r.clients[provider]; ok && provider != "" {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no LLM provider for model %q", name)
}

// List returns the registered provider names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig registers OpenAI when it has a key (it also
// transcribes) and Ollama when a model is set. A registered primary
// becomes the fallback.
func NewRegistryFromConfig(cfg *config.Config, log *logging.Logger) *Registry {
	reg := NewRegistry(log)
	if cfg.OpenAI.APIKey != "" {
		oa := NewOpenAIClient(cfg.OpenAI)
		reg.Register("openai", oa)
		reg.SetTranscriber(oa)
		if cfg.OpenAI.ChatModel != "" {
			reg.Alias(cfg.OpenAI.ChatModel, "openai")
		}
	}
	if o := cfg.Ollama; o != nil && o.Model != "" {
		reg.Register("ollama", NewOllamaClient(o.Endpoint, o.Model))
		reg.Alias(o.Model, "ollama")
	}
	if _, ok := reg.clients[cfg.LLM.Primary]; ok {
		reg.SetFallback(cfg.LLM.Primary)
	}
	return reg
}
