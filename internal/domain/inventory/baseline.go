package inventory

import (
	"time"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockBaseline is a protected point-in-time stock snapshot for a base SKU.
// Replay starts from the latest baseline at or before the requested as-of
// date. Baselines are never mutated once written; a fresh count produces a
// new baseline row.
type StockBaseline struct {
	shared.BaseEntity
	BaseSKU  string          `gorm:"type:varchar(64);not null;index:idx_baselines_sku_time,priority:1"`
	Quantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TakenAt  time.Time       `gorm:"not null;index:idx_baselines_sku_time,priority:2"`
	Note     string          `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (StockBaseline) TableName() string {
	return "stock_baselines"
}

// NewStockBaseline creates a new baseline snapshot
func NewStockBaseline(baseSKU string, quantity decimal.Decimal, takenAt time.Time) (*StockBaseline, error) {
	if baseSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Base SKU cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Baseline quantity cannot be negative")
	}
	if takenAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_TIMESTAMP", "Baseline timestamp cannot be zero")
	}

	return &StockBaseline{
		BaseEntity: shared.NewBaseEntity(),
		BaseSKU:    baseSKU,
		Quantity:   quantity,
		TakenAt:    takenAt,
	}, nil
}

// WithNote sets a free-form note on the baseline
func (b *StockBaseline) WithNote(note string) *StockBaseline {
	b.Note = note
	return b
}
