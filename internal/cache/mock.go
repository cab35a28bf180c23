package cache

import (
	"context"
	"sync"
	"time"

	"github.com/RixGem/progresspath/internal/models"
)

// MockRunSummaryCache provides an in-memory implementation for tests
// and for running without Redis.
type MockRunSummaryCache struct {
	mu   sync.Mutex
	last *models.RunSummary
}

func NewMockRunSummaryCache() *MockRunSummaryCache {
	return &MockRunSummaryCache{}
}

func (m *MockRunSummaryCache) Close() error {
	return nil
}

func (m *MockRunSummaryCache) RecordRun(ctx context.Context, summary models.RunSummary, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &summary
	return nil
}

func (m *MockRunSummaryCache) LastRun(ctx context.Context) (*models.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil, ErrNoRun
	}
	s := *m.last
	return &s, nil
}
