package cache

import (
	"context"
	"time"

	"flowershop/backend/internal/domain"
)

// ReportCache holds rendered sales dashboards keyed by anchor date.
// Invalidate drops every cached report and is called after any sale change.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.SalesReport, bool, error)
	Set(ctx context.Context, key string, value *domain.SalesReport, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.SalesReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.SalesReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context) error {
	return nil
}
