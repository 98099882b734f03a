package llm

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"agentjungle/internal/domain"
	"agentjungle/internal/infra/config"
)

// Registry holds named LLM providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
	}
}

// Register adds a provider. Returns error if name already registered.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrNotFound, "provider "+name)
	}
	return p, nil
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewProvider constructs the bare provider for cfg.Type.
func NewProvider(cfg config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	switch cfg.Type {
	case "gemini":
		return NewGeminiProvider(cfg, logger), nil
	case "openai":
		return NewOpenAIProvider(cfg, logger), nil
	default:
		return nil, domain.NewDomainError("llm.NewProvider", domain.ErrInvalidInput, "unknown provider type "+cfg.Type)
	}
}

// Build creates every configured provider, wraps each in the rate limiter
// and circuit breaker when enabled, and returns the provider requests should
// use: the default one, behind failover when fallbacks are configured.
func Build(cfg config.LLMConfig, logger *slog.Logger) (domain.LLMProvider, *Registry, error) {
	reg := NewRegistry()
	for _, pc := range cfg.Providers {
		p, err := NewProvider(pc, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.RateLimit.Enabled {
			p = NewRateLimitedProvider(p, cfg.RateLimit)
		}
		if cfg.CircuitBreaker.Enabled {
			p = NewCircuitBreakerProvider(p, cfg.CircuitBreaker, logger)
		}
		if err := reg.Register(p); err != nil {
			return nil, nil, err
		}
	}

	primary, err := reg.Get(cfg.DefaultProvider)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Failover.Enabled || len(cfg.Failover.Fallbacks) == 0 {
		return primary, reg, nil
	}

	fallbacks := make([]domain.LLMProvider, 0, len(cfg.Failover.Fallbacks))
	for _, name := range cfg.Failover.Fallbacks {
		fb, err := reg.Get(name)
		if err != nil {
			return nil, nil, err
		}
		fallbacks = append(fallbacks, fb)
	}
	return NewFailoverProvider(primary, fallbacks, logger), reg, nil
}
