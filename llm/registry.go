package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Registry hands out provider clients, initialized lazily and cached for
// reuse across requests. It replaces module-level singletons: construct one
// registry and pass it into the workflow controller. Initialization failure
// for one provider does not prevent use of another.
type Registry struct {
	openaiAPIKey string
	geminiAPIKey string

	mu        sync.Mutex
	providers map[string]Provider
}

// NewRegistry creates a provider registry for the configured API keys.
func NewRegistry(openaiAPIKey, geminiAPIKey string) *Registry {
	return &Registry{
		openaiAPIKey: openaiAPIKey,
		geminiAPIKey: geminiAPIKey,
		providers:    make(map[string]Provider),
	}
}

// Available reports whether at least one backend has credentials.
func (r *Registry) Available() bool {
	return r.openaiAPIKey != "" || r.geminiAPIKey != ""
}

// Get returns the provider for the given name or model. An explicit
// provider name wins; otherwise the provider is inferred from the model
// prefix, defaulting to OpenAI.
func (r *Registry) Get(ctx context.Context, providerName, model string) (Provider, error) {
	name := strings.ToLower(providerName)
	if name == "" {
		name = inferProvider(model)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}

	p, err := r.build(ctx, name)
	if err != nil {
		return nil, err
	}
	r.providers[name] = p
	log.Printf("✅ Provider initialized: %s", name)
	return p, nil
}

// Alternate returns a provider other than the given one, for same-
// conversation fallback on persistent overload. Returns nil when no
// alternate backend has credentials or can be initialized.
func (r *Registry) Alternate(ctx context.Context, current string) Provider {
	for _, name := range []string{ProviderOpenAI, ProviderGemini} {
		if name == current {
			continue
		}
		p, err := r.Get(ctx, name, "")
		if err != nil {
			continue
		}
		return p
	}
	return nil
}

// ImageBackend returns the OpenAI provider for image generation, which is
// provider-specific: no other configured backend renders album art.
func (r *Registry) ImageBackend(ctx context.Context) (*OpenAIProvider, error) {
	p, err := r.Get(ctx, ProviderOpenAI, "")
	if err != nil {
		return nil, err
	}
	openaiProvider, ok := p.(*OpenAIProvider)
	if !ok {
		return nil, fmt.Errorf("image backend is not an OpenAI provider")
	}
	return openaiProvider, nil
}

func (r *Registry) build(ctx context.Context, name string) (Provider, error) {
	switch name {
	case ProviderOpenAI:
		if r.openaiAPIKey == "" {
			return nil, fmt.Errorf("openai API key not configured: %w", ErrNoProvider)
		}
		return NewOpenAIProvider(r.openaiAPIKey), nil

	case ProviderGemini:
		if r.geminiAPIKey == "" {
			return nil, fmt.Errorf("gemini API key not configured: %w", ErrNoProvider)
		}
		return NewGeminiProvider(ctx, r.geminiAPIKey)

	default:
		return nil, fmt.Errorf("unknown provider: %s (allowed: %s, %s)", name, ProviderOpenAI, ProviderGemini)
	}
}

// inferProvider maps a model name to a provider name.
func inferProvider(model string) string {
	if strings.HasPrefix(strings.ToLower(model), "gemini-") {
		return ProviderGemini
	}
	return ProviderOpenAI
}
