package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/sku"
)

// OrderLine represents a line item in a local order. The raw token is the
// SKU exactly as the upstream source wrote it; base SKU and lot number are
// its decomposition and are what the rest of the system keys on.
type OrderLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_order_lines_order"`
	RawToken  string          `gorm:"type:varchar(96);not null"`
	BaseSKU   string          `gorm:"type:varchar(64);not null;index:idx_order_lines_sku"`
	LotNumber string          `gorm:"type:varchar(32)"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (OrderLine) TableName() string {
	return "order_lines"
}

// NewOrderLine creates a line from a raw SKU token. The token is decomposed
// here so every consumer sees the same base SKU and lot number.
func NewOrderLine(orderID uuid.UUID, rawToken string, quantity decimal.Decimal) (*OrderLine, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	token, err := sku.Parse(rawToken)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_SKU_TOKEN", err.Error())
	}

	now := time.Now()
	return &OrderLine{
		ID:        uuid.New(),
		OrderID:   orderID,
		RawToken:  token.Raw,
		BaseSKU:   token.BaseSKU,
		LotNumber: token.LotNumber,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Order represents a local order moving through the upload lifecycle.
// It is owned by the local system; only the upload engine and inbound
// status-sync mutate its status and remote id.
type Order struct {
	shared.BaseEntity
	OrderNumber string                     `gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_number"`
	Status      fulfillment.ShipmentStatus `gorm:"type:varchar(20);not null;index:idx_orders_status"`
	// RemoteID is the provider's order identifier. Empty until upload
	// succeeds; never empty while the order is uploaded or shipped.
	RemoteID      string `gorm:"type:varchar(64)"`
	FailureReason string `gorm:"type:varchar(500)"`
	HoldReason    string `gorm:"type:varchar(255)"`
	// HeldFrom remembers the status a hold interrupted so release can
	// restore it
	HeldFrom    fulfillment.ShipmentStatus `gorm:"type:varchar(20)"`
	Lines       []OrderLine                `gorm:"foreignKey:OrderID;references:ID"`
	UploadedAt  *time.Time
	ShippedAt   *time.Time
	CancelledAt *time.Time
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// NewOrder creates a pending order with no lines yet
func NewOrder(orderNumber string) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if len(orderNumber) > 64 {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot exceed 64 characters")
	}

	return &Order{
		BaseEntity:  shared.NewBaseEntity(),
		OrderNumber: orderNumber,
		Status:      fulfillment.StatusPending,
		Lines:       make([]OrderLine, 0),
	}, nil
}

// AddLine adds a line from a raw SKU token. Only pending orders accept
// lines, and one order carries at most one line per base SKU because
// (order number, base SKU) is the dedup key everywhere downstream.
func (o *Order) AddLine(rawToken string, quantity decimal.Decimal) (*OrderLine, error) {
	if o.Status != fulfillment.StatusPending {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add lines to a non-pending order")
	}

	line, err := NewOrderLine(o.ID, rawToken, quantity)
	if err != nil {
		return nil, err
	}
	for _, existing := range o.Lines {
		if existing.BaseSKU == line.BaseSKU {
			return nil, shared.NewDomainError("DUPLICATE_SKU", "Order already carries this base SKU")
		}
	}

	o.Lines = append(o.Lines, *line)
	o.Touch()
	return line, nil
}

// LineForSKU returns the line carrying the base SKU, or nil
func (o *Order) LineForSKU(baseSKU string) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].BaseSKU == baseSKU {
			return &o.Lines[i]
		}
	}
	return nil
}

// AdoptRemote records the provider's order identifier without changing
// status. The upload engine uses it when the existence check finds records
// the provider already holds for this order number.
func (o *Order) AdoptRemote(remoteID string) error {
	if remoteID == "" {
		return shared.NewDomainError("INVALID_REMOTE_ID", "Remote ID cannot be empty")
	}
	o.RemoteID = remoteID
	o.Touch()
	return nil
}

// MarkUploaded flips the order to uploaded. The remote id is mandatory
// here: an uploaded order without one would break reconciliation.
func (o *Order) MarkUploaded(remoteID string) error {
	if remoteID == "" {
		return shared.NewDomainError("INVALID_REMOTE_ID", "Remote ID cannot be empty")
	}
	if !o.Status.CanTransitionTo(fulfillment.StatusUploaded) {
		return shared.ErrInvalidState
	}
	now := time.Now()
	o.Status = fulfillment.StatusUploaded
	o.RemoteID = remoteID
	o.UploadedAt = &now
	o.HeldFrom = ""
	o.HoldReason = ""
	o.UpdatedAt = now
	return nil
}

// MarkShipped records the provider's shipment report. Reachable from
// uploaded, from pending via the self-healing reclassification, and from
// on_hold; a remote id must already be adopted.
func (o *Order) MarkShipped(at time.Time) error {
	if o.RemoteID == "" {
		return shared.NewDomainError("INVALID_STATE", "Cannot ship an order without a remote ID")
	}
	if !o.Status.CanTransitionTo(fulfillment.StatusShipped) {
		return shared.ErrInvalidState
	}
	o.Status = fulfillment.StatusShipped
	o.ShippedAt = &at
	o.HeldFrom = ""
	o.HoldReason = ""
	o.Touch()
	return nil
}

// MarkCancelled records the provider's cancellation report
func (o *Order) MarkCancelled() error {
	if !o.Status.CanTransitionTo(fulfillment.StatusCancelled) {
		return shared.ErrInvalidState
	}
	now := time.Now()
	o.Status = fulfillment.StatusCancelled
	o.CancelledAt = &now
	o.HeldFrom = ""
	o.HoldReason = ""
	o.UpdatedAt = now
	return nil
}

// MarkFailed records a permanent upload failure. The reason stays on the
// order and must be cleared before another attempt is made.
func (o *Order) MarkFailed(reason string) error {
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "A failure needs a reason")
	}
	if !o.Status.CanTransitionTo(fulfillment.StatusFailed) {
		return shared.ErrInvalidState
	}
	o.Status = fulfillment.StatusFailed
	o.FailureReason = reason
	o.Touch()
	return nil
}

// ClearFailure returns a failed order to the upload queue
func (o *Order) ClearFailure() error {
	if !o.Status.CanTransitionTo(fulfillment.StatusPending) {
		return shared.ErrInvalidState
	}
	o.Status = fulfillment.StatusPending
	o.FailureReason = ""
	o.Touch()
	return nil
}

// Hold pauses the order, remembering where it was
func (o *Order) Hold(reason string) error {
	if !o.Status.CanTransitionTo(fulfillment.StatusOnHold) {
		return shared.ErrInvalidState
	}
	o.HeldFrom = o.Status
	o.Status = fulfillment.StatusOnHold
	o.HoldReason = reason
	o.Touch()
	return nil
}

// Release returns a held order to the status the hold interrupted
func (o *Order) Release() error {
	if o.Status != fulfillment.StatusOnHold {
		return shared.ErrInvalidState
	}
	restored := o.HeldFrom
	if restored == "" || !restored.IsValid() {
		restored = fulfillment.StatusPending
	}
	o.Status = restored
	o.HeldFrom = ""
	o.HoldReason = ""
	o.Touch()
	return nil
}
