package cache

import (
	"context"
	"time"

	"mitienda/client/internal/domain"
)

// ProductCache holds short-lived product catalog snapshots so the sale form
// can open without a round-trip on every visit.
type ProductCache interface {
	Get(ctx context.Context, key string) ([]domain.Product, bool, error)
	Set(ctx context.Context, key string, value []domain.Product, ttl time.Duration) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context, _ string) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ string, _ []domain.Product, _ time.Duration) error {
	return nil
}
