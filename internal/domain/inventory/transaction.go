package inventory

import (
	"time"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the kind of inventory transaction
type TransactionKind string

const (
	// KindReceive represents stock received into inventory
	KindReceive TransactionKind = "RECEIVE"
	// KindShip represents stock shipped against an order, reported by the
	// fulfillment provider
	KindShip TransactionKind = "SHIP"
	// KindAdjustUp represents a positive stock correction
	KindAdjustUp TransactionKind = "ADJUST_UP"
	// KindAdjustDown represents a negative stock correction
	KindAdjustDown TransactionKind = "ADJUST_DOWN"
	// KindManualShipment represents a shipment recorded by hand before the
	// provider reported it, or one the provider will never report
	KindManualShipment TransactionKind = "MANUAL_SHIPMENT"
)

// String returns the string representation of TransactionKind
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid returns true if the transaction kind is valid
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindReceive, KindShip, KindAdjustUp, KindAdjustDown, KindManualShipment:
		return true
	}
	return false
}

// IsIncrease returns true if this kind increases stock on hand
func (k TransactionKind) IsIncrease() bool {
	switch k {
	case KindReceive, KindAdjustUp:
		return true
	}
	return false
}

// IsDecrease returns true if this kind decreases stock on hand
func (k TransactionKind) IsDecrease() bool {
	switch k {
	case KindShip, KindAdjustDown, KindManualShipment:
		return true
	}
	return false
}

// IsShipment returns true for the kinds that record a physical shipment
// event. These are the kinds subject to the one-deduction-per-order rule.
func (k TransactionKind) IsShipment() bool {
	return k == KindShip || k == KindManualShipment
}

// TransactionSource identifies what recorded a transaction
type TransactionSource string

const (
	// SourceRemoteSync is the provider status-sync task
	SourceRemoteSync TransactionSource = "REMOTE_SYNC"
	// SourceManual is an operator entry through the API
	SourceManual TransactionSource = "MANUAL"
	// SourceImport is a bulk load performed outside the sync engine
	SourceImport TransactionSource = "IMPORT"
)

// String returns the string representation of TransactionSource
func (s TransactionSource) String() string {
	return string(s)
}

// IsValid returns true if the source is valid
func (s TransactionSource) IsValid() bool {
	switch s {
	case SourceRemoteSync, SourceManual, SourceImport:
		return true
	}
	return false
}

// InventoryTransaction is an immutable record of a stock movement. Once
// created, transactions are never updated or deleted - corrections are new
// offsetting transactions.
type InventoryTransaction struct {
	shared.BaseEntity
	BaseSKU     string            `gorm:"type:varchar(64);not null;index:idx_inv_tx_sku_time,priority:1"`
	Kind        TransactionKind   `gorm:"type:varchar(20);not null;index:idx_inv_tx_kind"`
	Quantity    decimal.Decimal   `gorm:"type:decimal(18,4);not null"` // Always positive, direction determined by kind
	OrderNumber string            `gorm:"type:varchar(64);index:idx_inv_tx_order"`
	Source      TransactionSource `gorm:"type:varchar(20);not null"`
	Note        string            `gorm:"type:varchar(255)"`
	OccurredAt  time.Time         `gorm:"not null;index:idx_inv_tx_sku_time,priority:2"`
}

// TableName returns the table name for GORM
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// NewInventoryTransaction creates a new inventory transaction
func NewInventoryTransaction(
	baseSKU string,
	kind TransactionKind,
	quantity decimal.Decimal,
	source TransactionSource,
) (*InventoryTransaction, error) {
	if baseSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Base SKU cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_KIND", "Invalid transaction kind")
	}
	if quantity.IsNegative() || quantity.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Invalid transaction source")
	}

	return &InventoryTransaction{
		BaseEntity: shared.NewBaseEntity(),
		BaseSKU:    baseSKU,
		Kind:       kind,
		Quantity:   quantity,
		Source:     source,
		OccurredAt: time.Now(),
	}, nil
}

// WithOrderNumber tags the transaction with the order it belongs to.
// Shipment-kind transactions must carry an order number so the ledger can
// deduplicate deductions per order.
func (t *InventoryTransaction) WithOrderNumber(orderNumber string) *InventoryTransaction {
	t.OrderNumber = orderNumber
	return t
}

// WithNote sets a free-form note on the transaction
func (t *InventoryTransaction) WithNote(note string) *InventoryTransaction {
	t.Note = note
	return t
}

// WithOccurredAt sets when the movement physically happened
func (t *InventoryTransaction) WithOccurredAt(at time.Time) *InventoryTransaction {
	t.OccurredAt = at
	return t
}

// SignedQuantity returns the quantity with sign based on transaction kind.
// Positive for increases, negative for decreases.
func (t *InventoryTransaction) SignedQuantity() decimal.Decimal {
	if t.Kind.IsDecrease() {
		return t.Quantity.Neg()
	}
	return t.Quantity
}
