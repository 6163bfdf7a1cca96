package persistence

import (
	"context"
	"errors"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormExclusionRepository implements fulfillment.ExclusionRepository using GORM
type GormExclusionRepository struct {
	db *gorm.DB
}

// NewGormExclusionRepository creates a new GormExclusionRepository
func NewGormExclusionRepository(db *gorm.DB) *GormExclusionRepository {
	return &GormExclusionRepository{db: db}
}

// Save writes a new exclusion. A second exclusion for the same pair
// surfaces shared.ErrAlreadyExists.
func (r *GormExclusionRepository) Save(ctx context.Context, record *fulfillment.ExclusionRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	return translateError(err)
}

// Exists reports whether the pair is excluded
func (r *GormExclusionRepository) Exists(ctx context.Context, orderNumber, baseSKU string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&fulfillment.ExclusionRecord{}).
		Where("order_number = ? AND base_sku = ?", orderNumber, baseSKU).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByPair returns the exclusion for a pair, or nil when none exists
func (r *GormExclusionRepository) FindByPair(ctx context.Context, orderNumber, baseSKU string) (*fulfillment.ExclusionRecord, error) {
	var record fulfillment.ExclusionRecord
	if err := r.db.WithContext(ctx).
		Where("order_number = ? AND base_sku = ?", orderNumber, baseSKU).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// FindAll returns exclusions, newest first
func (r *GormExclusionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]fulfillment.ExclusionRecord, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&fulfillment.ExclusionRecord{}).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []fulfillment.ExclusionRecord
	query := r.applyFilter(r.db.WithContext(ctx), filter)
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// applyFilter applies pagination and ordering to the query
func (r *GormExclusionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	field := ValidateSortField(filter.OrderBy, ExclusionSortFields, "created_at")
	dir := ValidateSortOrder(filter.OrderDir)
	return query.Order(field + " " + dir)
}

// Ensure GormExclusionRepository implements fulfillment.ExclusionRepository
var _ fulfillment.ExclusionRepository = (*GormExclusionRepository)(nil)
