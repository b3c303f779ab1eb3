package cache

import (
	"context"
	"log"
	"time"

	"mitienda/client/internal/domain"
)

type productLister interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
}

// CachedCatalog serves product listings from the cache when a fresh snapshot
// exists and falls through to the data port otherwise. Cache failures are
// logged and ignored: the catalog read must not become less reliable than the
// port behind it.
type CachedCatalog struct {
	lister productLister
	cache  ProductCache
	ttl    time.Duration
}

func NewCachedCatalog(lister productLister, cache ProductCache, ttl time.Duration) *CachedCatalog {
	if cache == nil {
		cache = NoopProductCache{}
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CachedCatalog{lister: lister, cache: cache, ttl: ttl}
}

func (c *CachedCatalog) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	key := "products:all"
	if activeOnly {
		key = "products:active"
	}

	if cached, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Printf("[cache] product lookup failed: %v", err)
	} else if ok {
		return cached, nil
	}

	products, err := c.lister.ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, products, c.ttl); err != nil {
		log.Printf("[cache] product store failed: %v", err)
	}
	return products, nil
}
