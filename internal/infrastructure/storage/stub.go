package storage

import (
	"context"
	"time"

	appsync "github.com/oms/backend/internal/application/sync"
)

// StubIngestionSource is the ingestion source wired when object storage is
// disabled. It never produces orders, so ingestion runs complete empty
// instead of failing against a backend that isn't there.
type StubIngestionSource struct{}

// NewStubIngestionSource creates a new StubIngestionSource
func NewStubIngestionSource() *StubIngestionSource {
	return &StubIngestionSource{}
}

// Ensure StubIngestionSource implements the ingestion port
var _ appsync.IngestionSource = (*StubIngestionSource)(nil)

// FetchNew always returns no orders
func (s *StubIngestionSource) FetchNew(ctx context.Context, since time.Time, limit int) ([]appsync.IncomingOrder, error) {
	return nil, nil
}
