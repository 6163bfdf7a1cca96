package fulfillment

import (
	"time"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Shipment Status
// ---------------------------------------------------------------------------

// ShipmentStatus represents the local lifecycle status of an order
type ShipmentStatus string

const (
	// StatusPending indicates the order has not been uploaded yet
	StatusPending ShipmentStatus = "PENDING"
	// StatusUploaded indicates the order exists on the provider and is live
	StatusUploaded ShipmentStatus = "UPLOADED"
	// StatusShipped indicates the provider reported shipment
	StatusShipped ShipmentStatus = "SHIPPED"
	// StatusCancelled indicates the provider reported cancellation
	StatusCancelled ShipmentStatus = "CANCELLED"
	// StatusFailed indicates upload failed permanently; the recorded reason
	// must be cleared before another attempt
	StatusFailed ShipmentStatus = "FAILED"
	// StatusOnHold indicates the order is paused, reported by the provider
	// or placed by an operator
	StatusOnHold ShipmentStatus = "ON_HOLD"
)

// IsValid returns true if the status is valid
func (s ShipmentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusUploaded, StatusShipped,
		StatusCancelled, StatusFailed, StatusOnHold:
		return true
	default:
		return false
	}
}

// String returns the string representation of ShipmentStatus
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsFinal returns true if the status is a final (terminal) state
func (s ShipmentStatus) IsFinal() bool {
	return s == StatusShipped || s == StatusCancelled
}

// Rank returns the position of the status in the upload lifecycle. Inbound
// sync compares ranks to discard stale remote reads: a transition that would
// lower the rank of a shipped or cancelled order never applies.
func (s ShipmentStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusFailed:
		return 1
	case StatusOnHold:
		return 2
	case StatusUploaded:
		return 3
	case StatusShipped, StatusCancelled:
		return 4
	default:
		return -1
	}
}

// CanTransitionTo returns true if the transition is allowed by the order
// state machine. Transitions are monotonic: shipped and cancelled accept
// only the hold arc, and nothing ever moves back to uploaded.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	if s == next || !next.IsValid() {
		return false
	}
	// The provider may report a hold at any point in the lifecycle.
	if next == StatusOnHold {
		return true
	}
	switch s {
	case StatusPending:
		// Direct pending->shipped is the self-healing arc: the existence
		// check found an already-shipped remote record, so the order is
		// reclassified without a re-upload.
		return next == StatusUploaded || next == StatusShipped ||
			next == StatusCancelled || next == StatusFailed
	case StatusUploaded:
		return next == StatusShipped || next == StatusCancelled
	case StatusOnHold:
		// Release returns the order to the sync flow; remote shipment and
		// cancellation events still land while held.
		return next == StatusPending || next == StatusUploaded ||
			next == StatusShipped || next == StatusCancelled
	case StatusFailed:
		// Re-attempt is allowed only after the failure reason is cleared.
		return next == StatusPending
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// ItemTracking Entity
// ---------------------------------------------------------------------------

// ItemTracking maps one uploaded (order number, base SKU) pair to the
// provider's line-item record. The unique index over the pair is what
// arbitrates concurrent upload attempts: the loser of the insert race sees
// a constraint violation and treats it as already uploaded.
type ItemTracking struct {
	shared.BaseEntity
	OrderNumber  string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_item_tracking_order_sku,priority:1"`
	BaseSKU      string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_item_tracking_order_sku,priority:2;index:idx_item_tracking_sku_status,priority:1"`
	RemoteItemID string          `gorm:"type:varchar(64);not null;index:idx_item_tracking_remote"`
	LotNumber    string          `gorm:"type:varchar(32)"` // Lot as uploaded; rewritten by lot-sync
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status       ShipmentStatus  `gorm:"type:varchar(20);not null;index:idx_item_tracking_sku_status,priority:2"`
	ShippedAt    *time.Time
}

// TableName returns the table name for GORM
func (ItemTracking) TableName() string {
	return "item_trackings"
}

// NewItemTracking creates a tracking row for a freshly uploaded line
func NewItemTracking(orderNumber, baseSKU, remoteItemID, lotNumber string, quantity decimal.Decimal) (*ItemTracking, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if baseSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Base SKU cannot be empty")
	}
	if remoteItemID == "" {
		return nil, shared.NewDomainError("INVALID_REMOTE_ITEM", "Remote item ID cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	return &ItemTracking{
		BaseEntity:   shared.NewBaseEntity(),
		OrderNumber:  orderNumber,
		BaseSKU:      baseSKU,
		RemoteItemID: remoteItemID,
		LotNumber:    lotNumber,
		Quantity:     quantity,
		Status:       StatusUploaded,
	}, nil
}

// RewriteLot records that lot-sync re-targeted the remote line. Only rows
// still in uploaded status may be rewritten.
func (t *ItemTracking) RewriteLot(lotNumber string) error {
	if t.Status != StatusUploaded {
		return shared.ErrInvalidState
	}
	t.LotNumber = lotNumber
	t.Touch()
	return nil
}

// MarkShipped records the provider's shipment report for this line
func (t *ItemTracking) MarkShipped(at time.Time) error {
	if !t.Status.CanTransitionTo(StatusShipped) {
		return shared.ErrInvalidState
	}
	t.Status = StatusShipped
	t.ShippedAt = &at
	t.Touch()
	return nil
}

// MarkCancelled records the provider's cancellation report for this line
func (t *ItemTracking) MarkCancelled() error {
	if !t.Status.CanTransitionTo(StatusCancelled) {
		return shared.ErrInvalidState
	}
	t.Status = StatusCancelled
	t.Touch()
	return nil
}
