package inventory

import (
	"time"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Lot represents an inventory batch for a base SKU. At most one lot per SKU
// is active at any instant; the active lot is what new uploads reference.
// Changing the active lot is a two-step deactivate/activate transition
// executed inside one repository transaction.
type Lot struct {
	shared.BaseEntity
	BaseSKU          string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_lots_sku_lot,priority:1"`
	LotNumber        string          `gorm:"type:varchar(32);not null;uniqueIndex:ux_lots_sku_lot,priority:2"`
	Active           bool            `gorm:"not null;default:false;index:idx_lots_active"`
	Version          int             `gorm:"not null;default:0"` // Bumped on every activation
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ConsumedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ActivatedAt      *time.Time
}

// TableName returns the table name for GORM
func (Lot) TableName() string {
	return "lots"
}

// NewLot creates a new inactive lot
func NewLot(baseSKU, lotNumber string, receivedQuantity decimal.Decimal) (*Lot, error) {
	if baseSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Base SKU cannot be empty")
	}
	if lotNumber == "" {
		return nil, shared.NewDomainError("INVALID_LOT", "Lot number cannot be empty")
	}
	if receivedQuantity.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Received quantity cannot be negative")
	}

	return &Lot{
		BaseEntity:       shared.NewBaseEntity(),
		BaseSKU:          baseSKU,
		LotNumber:        lotNumber,
		ReceivedQuantity: receivedQuantity,
		ConsumedQuantity: decimal.Zero,
	}, nil
}

// Activate marks the lot active and bumps its version
func (l *Lot) Activate() {
	now := time.Now()
	l.Active = true
	l.Version++
	l.ActivatedAt = &now
	l.UpdatedAt = now
}

// Deactivate marks the lot inactive
func (l *Lot) Deactivate() {
	l.Active = false
	l.UpdatedAt = time.Now()
}

// Consume records quantity taken from this lot.
// Returns the actual quantity consumed, capped at what remains.
func (l *Lot) Consume(quantity decimal.Decimal) decimal.Decimal {
	remaining := l.Remaining()
	if quantity.GreaterThan(remaining) {
		l.ConsumedQuantity = l.ReceivedQuantity
		l.UpdatedAt = time.Now()
		return remaining
	}
	l.ConsumedQuantity = l.ConsumedQuantity.Add(quantity)
	l.UpdatedAt = time.Now()
	return quantity
}

// Receive adds quantity to this lot
func (l *Lot) Receive(quantity decimal.Decimal) {
	l.ReceivedQuantity = l.ReceivedQuantity.Add(quantity)
	l.UpdatedAt = time.Now()
}

// Remaining returns the quantity not yet consumed
func (l *Lot) Remaining() decimal.Decimal {
	return l.ReceivedQuantity.Sub(l.ConsumedQuantity)
}

// HasStock returns true if the lot has unconsumed quantity
func (l *Lot) HasStock() bool {
	return l.Remaining().GreaterThan(decimal.Zero)
}
