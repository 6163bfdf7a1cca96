package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/inventory"
)

// StockResponse represents the replayed stock position of a SKU
type StockResponse struct {
	BaseSKU          string             `json:"base_sku"`
	StockOnHand      decimal.Decimal    `json:"stock_on_hand"`
	BaselineQuantity decimal.Decimal    `json:"baseline_quantity"`
	BaselineTakenAt  *time.Time         `json:"baseline_taken_at,omitempty"`
	AsOf             time.Time          `json:"as_of"`
	Applied          int                `json:"applied"`
	Conflicts        []ConflictResponse `json:"conflicts,omitempty"`
}

// ConflictResponse represents a double-deduction conflict found on replay
type ConflictResponse struct {
	OrderNumber     string          `json:"order_number"`
	AppliedKind     string          `json:"applied_kind"`
	AppliedQuantity decimal.Decimal `json:"applied_quantity"`
	IgnoredQuantity decimal.Decimal `json:"ignored_quantity"`
}

// TransactionResponse represents one ledger transaction
type TransactionResponse struct {
	ID          uuid.UUID       `json:"id"`
	BaseSKU     string          `json:"base_sku"`
	Kind        string          `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"`
	Signed      decimal.Decimal `json:"signed_quantity"`
	OrderNumber string          `json:"order_number,omitempty"`
	Source      string          `json:"source"`
	Note        string          `json:"note,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// ToTransactionResponse maps a ledger transaction to its response form
func ToTransactionResponse(tx *inventory.InventoryTransaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		BaseSKU:     tx.BaseSKU,
		Kind:        tx.Kind.String(),
		Quantity:    tx.Quantity,
		Signed:      tx.SignedQuantity(),
		OrderNumber: tx.OrderNumber,
		Source:      tx.Source.String(),
		Note:        tx.Note,
		OccurredAt:  tx.OccurredAt,
	}
}

// WeeklyAverageResponse represents the rolling weekly shipment average
type WeeklyAverageResponse struct {
	BaseSKU string              `json:"base_sku"`
	Weeks   int                 `json:"weeks"`
	Average decimal.Decimal     `json:"average"`
	Totals  []WeekTotalResponse `json:"totals"`
}

// WeekTotalResponse represents one week's shipped total
type WeekTotalResponse struct {
	WeekStart time.Time       `json:"week_start"`
	Total     decimal.Decimal `json:"total"`
}

// AdjustmentRequest represents a manual ledger entry
type AdjustmentRequest struct {
	BaseSKU     string          `json:"base_sku" binding:"required"`
	Kind        string          `json:"kind" binding:"required,oneof=ADJUST_UP ADJUST_DOWN MANUAL_SHIPMENT"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	OrderNumber string          `json:"order_number"`
	Note        string          `json:"note"`
	OccurredAt  *time.Time      `json:"occurred_at"`
}

// BaselineRequest represents a new protected stock snapshot
type BaselineRequest struct {
	BaseSKU  string          `json:"base_sku" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	TakenAt  *time.Time      `json:"taken_at"`
	Note     string          `json:"note"`
}

// LotResponse represents a lot in API responses
type LotResponse struct {
	ID          uuid.UUID       `json:"id"`
	BaseSKU     string          `json:"base_sku"`
	LotNumber   string          `json:"lot_number"`
	Active      bool            `json:"active"`
	Version     int             `json:"version"`
	Remaining   decimal.Decimal `json:"remaining"`
	ActivatedAt *time.Time      `json:"activated_at,omitempty"`
}

// ToLotResponse maps a lot to its response form
func ToLotResponse(lot *inventory.Lot) LotResponse {
	return LotResponse{
		ID:          lot.ID,
		BaseSKU:     lot.BaseSKU,
		LotNumber:   lot.LotNumber,
		Active:      lot.Active,
		Version:     lot.Version,
		Remaining:   lot.Remaining(),
		ActivatedAt: lot.ActivatedAt,
	}
}
