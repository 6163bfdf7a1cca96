package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/shared"
)

// Repository defines the interface for order persistence. Implementations
// load lines together with their order.
type Repository interface {
	// Save creates or updates an order and its lines
	Save(ctx context.Context, o *Order) error

	// FindByID returns an order by id
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByNumber returns the order with the number, or nil when none
	// exists
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// ExistsByNumber reports whether an order with the number exists.
	// Ingestion uses it to keep re-reads of the same source idempotent.
	ExistsByNumber(ctx context.Context, orderNumber string) (bool, error)

	// NextPendingBatch returns up to limit pending orders, oldest first.
	// This is the upload task's work queue.
	NextPendingBatch(ctx context.Context, limit int) ([]Order, error)

	// FindByStatus returns orders in a status, newest first
	FindByStatus(ctx context.Context, status fulfillment.ShipmentStatus, filter shared.Filter) ([]Order, int64, error)

	// FindByRemoteID returns the order holding the provider id, or nil
	FindByRemoteID(ctx context.Context, remoteID string) (*Order, error)
}
