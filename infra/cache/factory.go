package cache

import (
	"context"
	"fmt"

	"github.com/kilianp07/recsizing/config"
	corecache "github.com/kilianp07/recsizing/core/cache"
)

// New returns the cache selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig) (corecache.ResultCache, error) {
	switch cfg.Backend {
	case "", "none":
		return corecache.Nop{}, nil
	case "memory":
		return NewMemoryCache(cfg.TTL(), cfg.MaxEntries), nil
	case "redis":
		return NewRedisCache(ctx, cfg.Addr, cfg.Password, cfg.DB, cfg.KeyPrefix, cfg.TTL())
	default:
		return nil, fmt.Errorf("unknown cache backend %s", cfg.Backend)
	}
}
