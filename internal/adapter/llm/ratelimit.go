package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"agentjungle/internal/domain"
	"agentjungle/internal/infra/config"
)

// RateLimitedProvider paces calls to inner with a token bucket. Callers block
// until a token is available or their context ends.
type RateLimitedProvider struct {
	inner   domain.LLMProvider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with a limiter of cfg.RequestsPerSecond
// and cfg.Burst.
func NewRateLimitedProvider(inner domain.LLMProvider, cfg config.RateLimitConfig) *RateLimitedProvider {
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1)),
	}
}

// Chat implements domain.LLMProvider.
func (p *RateLimitedProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: provider %q: %w", domain.ErrRateLimit, p.inner.Name(), err)
	}
	return p.inner.Chat(ctx, req)
}

// Name implements domain.LLMProvider.
func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

var _ domain.LLMProvider = (*RateLimitedProvider)(nil)
