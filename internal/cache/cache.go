package cache

import (
	"context"
	"time"

	"dapurstok/backend/internal/domain"
)

// SummaryCache holds computed daily summaries keyed by calendar date.
// Entries are invalidated when a sale commits for that date.
type SummaryCache interface {
	Get(ctx context.Context, date string) (*domain.DailySummary, bool, error)
	Set(ctx context.Context, date string, value *domain.DailySummary, ttl time.Duration) error
	Del(ctx context.Context, date string) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.DailySummary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.DailySummary, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) Del(_ context.Context, _ string) error {
	return nil
}
