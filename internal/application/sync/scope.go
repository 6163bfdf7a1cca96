package sync

import (
	"context"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/order"
)

// TransactionScope provides transactional access to the repositories the
// upload and status-sync flows mutate together. When a function executes
// within a scope, all repository operations share one database transaction
// and commit or roll back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the order and tracking
// repositories within one transaction. The order status flip and the
// tracking row inserts belong together: an order must never be uploaded
// without its tracking rows or vice versa.
type TransactionalRepositories interface {
	// OrderRepo returns the order repository scoped to the current
	// transaction
	OrderRepo() order.Repository
	// TrackingRepo returns the item tracking repository scoped to the
	// current transaction
	TrackingRepo() fulfillment.TrackingRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for tests and for stores without transaction
// support.
type NoOpTransactionScope struct {
	orders    order.Repository
	trackings fulfillment.TrackingRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given
// repositories.
func NewNoOpTransactionScope(orders order.Repository, trackings fulfillment.TrackingRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		orders:    orders,
		trackings: trackings,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// OrderRepo returns the order repository.
func (s *NoOpTransactionScope) OrderRepo() order.Repository {
	return s.orders
}

// TrackingRepo returns the item tracking repository.
func (s *NoOpTransactionScope) TrackingRepo() fulfillment.TrackingRepository {
	return s.trackings
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
