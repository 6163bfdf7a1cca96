package persistence

import (
	"context"
	"time"

	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormInventoryTransactionRepository implements inventory.TransactionRepository using GORM
type GormInventoryTransactionRepository struct {
	db *gorm.DB
}

// NewGormInventoryTransactionRepository creates a new GormInventoryTransactionRepository
func NewGormInventoryTransactionRepository(db *gorm.DB) *GormInventoryTransactionRepository {
	return &GormInventoryTransactionRepository{db: db}
}

// Save appends a new transaction. The ledger is append-only, so this is
// always an insert.
func (r *GormInventoryTransactionRepository) Save(ctx context.Context, tx *inventory.InventoryTransaction) error {
	err := r.db.WithContext(ctx).Create(tx).Error
	return translateError(err)
}

// FindBySKU returns all transactions for a base SKU with OccurredAt in
// (after, until], ordered chronologically
func (r *GormInventoryTransactionRepository) FindBySKU(ctx context.Context, baseSKU string, after, until time.Time) ([]inventory.InventoryTransaction, error) {
	var txs []inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("base_sku = ? AND occurred_at > ? AND occurred_at <= ?", baseSKU, after, until).
		Order("occurred_at ASC, created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// FindByOrderNumber returns all transactions tagged with an order number
func (r *GormInventoryTransactionRepository) FindByOrderNumber(ctx context.Context, orderNumber string) ([]inventory.InventoryTransaction, error) {
	var txs []inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Order("occurred_at ASC, created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// HasManualShipment reports whether a manual shipment transaction exists
// for the order
func (r *GormInventoryTransactionRepository) HasManualShipment(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.InventoryTransaction{}).
		Where("order_number = ? AND kind = ?", orderNumber, inventory.KindManualShipment).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll returns transactions matching the filter
func (r *GormInventoryTransactionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.InventoryTransaction, error) {
	var txs []inventory.InventoryTransaction
	query := r.applyFilter(r.db.WithContext(ctx).Model(&inventory.InventoryTransaction{}), filter)
	if err := query.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// DistinctSKUs returns the base SKUs that have at least one transaction
func (r *GormInventoryTransactionRepository) DistinctSKUs(ctx context.Context) ([]string, error) {
	var skus []string
	if err := r.db.WithContext(ctx).
		Model(&inventory.InventoryTransaction{}).
		Distinct("base_sku").
		Order("base_sku ASC").
		Pluck("base_sku", &skus).Error; err != nil {
		return nil, err
	}
	return skus, nil
}

// applyFilter applies filter options to the query
func (r *GormInventoryTransactionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	field := ValidateSortField(filter.OrderBy, InventoryTransactionSortFields, "occurred_at")
	dir := ValidateSortOrder(filter.OrderDir)
	return query.Order(field + " " + dir)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormInventoryTransactionRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "base_sku":
			query = query.Where("base_sku = ?", value)
		case "kind":
			query = query.Where("kind = ?", value)
		case "order_number":
			query = query.Where("order_number = ?", value)
		case "source":
			query = query.Where("source = ?", value)
		case "occurred_from":
			query = query.Where("occurred_at >= ?", value)
		case "occurred_to":
			query = query.Where("occurred_at <= ?", value)
		}
	}

	return query
}

// Ensure GormInventoryTransactionRepository implements inventory.TransactionRepository
var _ inventory.TransactionRepository = (*GormInventoryTransactionRepository)(nil)
