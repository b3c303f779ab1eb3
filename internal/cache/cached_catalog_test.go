package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mitienda/client/internal/domain"
)

type countingLister struct {
	mu    sync.Mutex
	calls int
	out   []domain.Product
	err   error
}

func (l *countingLister) ListProducts(_ context.Context, _ bool) ([]domain.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.out, nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]domain.Product
	getErr  error
	setErr  error
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]domain.Product)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	out, ok := c.entries[key]
	return out, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []domain.Product, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	return nil
}

func TestCachedCatalogServesSecondReadFromCache(t *testing.T) {
	lister := &countingLister{out: []domain.Product{{ID: 1, Name: "Café"}}}
	catalog := NewCachedCatalog(lister, newMapCache(), time.Minute)
	ctx := context.Background()

	first, err := catalog.ListProducts(ctx, true)
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	second, err := catalog.ListProducts(ctx, true)
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("unexpected results: %d, %d", len(first), len(second))
	}
	if lister.calls != 1 {
		t.Fatalf("expected 1 port call, got %d", lister.calls)
	}
}

func TestCachedCatalogKeysActiveAndFullSeparately(t *testing.T) {
	lister := &countingLister{out: []domain.Product{{ID: 1}}}
	catalog := NewCachedCatalog(lister, newMapCache(), time.Minute)
	ctx := context.Background()

	if _, err := catalog.ListProducts(ctx, true); err != nil {
		t.Fatalf("active read failed: %v", err)
	}
	if _, err := catalog.ListProducts(ctx, false); err != nil {
		t.Fatalf("full read failed: %v", err)
	}
	if lister.calls != 2 {
		t.Fatalf("expected separate cache keys, got %d port calls", lister.calls)
	}
}

func TestCachedCatalogFailsOpenOnCacheErrors(t *testing.T) {
	lister := &countingLister{out: []domain.Product{{ID: 1}}}
	broken := newMapCache()
	broken.getErr = errors.New("redis down")
	broken.setErr = errors.New("redis down")
	catalog := NewCachedCatalog(lister, broken, time.Minute)

	out, err := catalog.ListProducts(context.Background(), true)
	if err != nil {
		t.Fatalf("expected cache failure to be swallowed, got %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected port result, got %d products", len(out))
	}
}

func TestCachedCatalogPropagatesPortErrors(t *testing.T) {
	lister := &countingLister{err: errors.New("backend down")}
	catalog := NewCachedCatalog(lister, newMapCache(), time.Minute)

	if _, err := catalog.ListProducts(context.Background(), true); err == nil {
		t.Fatalf("expected port error to propagate")
	}
}

func TestNilCacheDefaultsToNoop(t *testing.T) {
	lister := &countingLister{out: []domain.Product{{ID: 1}}}
	catalog := NewCachedCatalog(lister, nil, 0)

	if _, err := catalog.ListProducts(context.Background(), true); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if lister.calls != 1 {
		t.Fatalf("expected port call with noop cache, got %d", lister.calls)
	}
}
