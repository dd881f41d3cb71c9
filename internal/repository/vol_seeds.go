package repository

import (
	"context"
	"time"

	"GexFlow/internal/gex"
	"GexFlow/pkg/cache"
)

// CachedVolSeeds backs the aggregator's Newton warm starts with the TTL
// memory cache: the volatility solved for a contract on one run seeds the
// next, which usually converges in a couple of iterations.
type CachedVolSeeds struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCachedVolSeeds(c cache.Service, ttl time.Duration) gex.VolSeeds {
	return &CachedVolSeeds{cache: c, ttl: ttl}
}

func (v *CachedVolSeeds) Seed(symbol string) (float64, bool) {
	var vol float64
	if err := v.cache.Get(context.Background(), "iv:"+symbol, &vol); err != nil {
		return 0, false
	}
	return vol, vol > 0
}

func (v *CachedVolSeeds) Store(symbol string, vol float64) {
	_ = v.cache.Set(context.Background(), "iv:"+symbol, vol, v.ttl)
}
