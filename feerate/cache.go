package feerate

import (
	"context"
	"sync"
	"time"
)

type cachedRate struct {
	rate  uint64
	stamp time.Time
}

// Cache remembers each tier's rate for a TTL. Errors are not cached.
type Cache struct {
	p   Provider
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	rates map[Tier]cachedRate
}

// NewCache wraps p.
func NewCache(p Provider, ttl time.Duration) *Cache {
	return &Cache{
		p:     p,
		ttl:   ttl,
		now:   time.Now,
		rates: make(map[Tier]cachedRate),
	}
}

// CurrentRate implements Provider.
func (c *Cache) CurrentRate(ctx context.Context, tier Tier) (uint64, error) {
	c.mu.Lock()
	cr, ok := c.rates[tier]
	c.mu.Unlock()
	if ok && c.now().Sub(cr.stamp) < c.ttl {
		return cr.rate, nil
	}

	r, err := c.p.CurrentRate(ctx, tier)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.rates[tier] = cachedRate{rate: r, stamp: c.now()}
	c.mu.Unlock()
	return r, nil
}
