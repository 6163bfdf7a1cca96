package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/oms/backend/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormBaselineRepository implements inventory.BaselineRepository using GORM
type GormBaselineRepository struct {
	db *gorm.DB
}

// NewGormBaselineRepository creates a new GormBaselineRepository
func NewGormBaselineRepository(db *gorm.DB) *GormBaselineRepository {
	return &GormBaselineRepository{db: db}
}

// Save writes a new baseline snapshot. Baselines are write-once, so this
// is always an insert.
func (r *GormBaselineRepository) Save(ctx context.Context, baseline *inventory.StockBaseline) error {
	err := r.db.WithContext(ctx).Create(baseline).Error
	return translateError(err)
}

// FindLatest returns the most recent baseline for a SKU taken at or
// before asOf, or nil when none exists
func (r *GormBaselineRepository) FindLatest(ctx context.Context, baseSKU string, asOf time.Time) (*inventory.StockBaseline, error) {
	var baseline inventory.StockBaseline
	if err := r.db.WithContext(ctx).
		Where("base_sku = ? AND taken_at <= ?", baseSKU, asOf).
		Order("taken_at DESC").
		First(&baseline).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &baseline, nil
}

// Ensure GormBaselineRepository implements inventory.BaselineRepository
var _ inventory.BaselineRepository = (*GormBaselineRepository)(nil)
