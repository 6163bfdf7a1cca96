package inventory

import (
	"context"
	"time"

	"github.com/oms/backend/internal/domain/shared"
)

// TransactionRepository defines the interface for ledger transaction
// persistence. Transactions are append-only: there is no update or delete.
type TransactionRepository interface {
	// Save appends a new transaction
	Save(ctx context.Context, tx *InventoryTransaction) error

	// FindBySKU returns all transactions for a base SKU with OccurredAt
	// in (after, until], ordered chronologically
	FindBySKU(ctx context.Context, baseSKU string, after, until time.Time) ([]InventoryTransaction, error)

	// FindByOrderNumber returns all transactions tagged with an order number
	FindByOrderNumber(ctx context.Context, orderNumber string) ([]InventoryTransaction, error)

	// HasManualShipment reports whether a manual_shipment transaction
	// exists for the order. Status-sync consults this before recording a
	// remote-reported ship deduction.
	HasManualShipment(ctx context.Context, orderNumber string) (bool, error)

	// FindAll returns transactions matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]InventoryTransaction, error)

	// DistinctSKUs returns the base SKUs that have at least one transaction
	DistinctSKUs(ctx context.Context) ([]string, error)
}

// BaselineRepository defines the interface for stock baseline persistence.
// Baselines are write-once: no update or delete exists.
type BaselineRepository interface {
	// Save writes a new baseline snapshot
	Save(ctx context.Context, baseline *StockBaseline) error

	// FindLatest returns the most recent baseline for a SKU taken at or
	// before asOf, or nil when none exists
	FindLatest(ctx context.Context, baseSKU string, asOf time.Time) (*StockBaseline, error)
}

// LotRepository defines the interface for lot persistence
type LotRepository interface {
	// FindActive returns the active lot for a SKU, or nil when none is
	// active
	FindActive(ctx context.Context, baseSKU string) (*Lot, error)

	// FindAllActive returns the active lot of every SKU that has one.
	// The periodic lot-sync sweep iterates this set.
	FindAllActive(ctx context.Context) ([]Lot, error)

	// FindBySKUAndLot returns a specific lot
	FindBySKUAndLot(ctx context.Context, baseSKU, lotNumber string) (*Lot, error)

	// FindBySKU returns all lots for a SKU, newest first
	FindBySKU(ctx context.Context, baseSKU string) ([]Lot, error)

	// Save creates or updates a lot
	Save(ctx context.Context, lot *Lot) error

	// Activate atomically deactivates the prior active lot for the SKU and
	// activates the named one inside a single transaction. The lot row is
	// created when it does not exist yet. Returns the activated lot and
	// the previously active lot number (empty when none).
	Activate(ctx context.Context, baseSKU, lotNumber string) (*Lot, string, error)
}
