package service

import (
	"context"
	"sync"

	"github.com/plannivo/finance/internal/settings/domain"
)

// CachedResolver memoizes resolutions by context key. It is meant to live for
// a single report or batch call, never across requests.
type CachedResolver struct {
	inner domain.Resolver

	mu      sync.Mutex
	cash    map[string]*domain.EffectiveSettings
	accrual map[string]*domain.EffectiveSettings
}

func NewCachedResolver(inner domain.Resolver) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		cash:    map[string]*domain.EffectiveSettings{},
		accrual: map[string]*domain.EffectiveSettings{},
	}
}

func (c *CachedResolver) Resolve(ctx context.Context, rc domain.ResolveContext) *domain.EffectiveSettings {
	return c.lookup(ctx, rc, c.cash, c.inner.Resolve)
}

func (c *CachedResolver) ResolveAccrual(ctx context.Context, rc domain.ResolveContext) *domain.EffectiveSettings {
	return c.lookup(ctx, rc, c.accrual, c.inner.ResolveAccrual)
}

func (c *CachedResolver) lookup(
	ctx context.Context,
	rc domain.ResolveContext,
	store map[string]*domain.EffectiveSettings,
	resolve func(context.Context, domain.ResolveContext) *domain.EffectiveSettings,
) *domain.EffectiveSettings {
	key := rc.Key()

	c.mu.Lock()
	cached, ok := store[key]
	c.mu.Unlock()
	if ok {
		return cached
	}

	resolved := resolve(ctx, rc)

	c.mu.Lock()
	store[key] = resolved
	c.mu.Unlock()
	return resolved
}
