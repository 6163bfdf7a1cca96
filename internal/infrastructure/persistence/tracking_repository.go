package persistence

import (
	"context"
	"errors"

	"github.com/oms/backend/internal/domain/fulfillment"
	"gorm.io/gorm"
)

// GormTrackingRepository implements fulfillment.TrackingRepository using GORM
type GormTrackingRepository struct {
	db *gorm.DB
}

// NewGormTrackingRepository creates a new GormTrackingRepository
func NewGormTrackingRepository(db *gorm.DB) *GormTrackingRepository {
	return &GormTrackingRepository{db: db}
}

// Save creates or updates a tracking row. A lost insert race on the
// (order number, base SKU) pair surfaces shared.ErrAlreadyExists.
func (r *GormTrackingRepository) Save(ctx context.Context, tracking *fulfillment.ItemTracking) error {
	err := r.db.WithContext(ctx).Save(tracking).Error
	return translateError(err)
}

// FindByOrderNumber returns all tracking rows for an order
func (r *GormTrackingRepository) FindByOrderNumber(ctx context.Context, orderNumber string) ([]fulfillment.ItemTracking, error) {
	var rows []fulfillment.ItemTracking
	if err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Order("base_sku ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByPair returns the tracking row for one (order number, base SKU)
// pair, or nil when none exists
func (r *GormTrackingRepository) FindByPair(ctx context.Context, orderNumber, baseSKU string) (*fulfillment.ItemTracking, error) {
	var row fulfillment.ItemTracking
	if err := r.db.WithContext(ctx).
		Where("order_number = ? AND base_sku = ?", orderNumber, baseSKU).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// FindByRemoteItemID returns the tracking row for a provider item id, or
// nil when none exists
func (r *GormTrackingRepository) FindByRemoteItemID(ctx context.Context, remoteItemID string) (*fulfillment.ItemTracking, error) {
	if remoteItemID == "" {
		return nil, nil
	}
	var row fulfillment.ItemTracking
	if err := r.db.WithContext(ctx).
		Where("remote_item_id = ?", remoteItemID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// FindUploadedBySKU returns rows still in uploaded status carrying the
// base SKU. Shipped rows never come back from here.
func (r *GormTrackingRepository) FindUploadedBySKU(ctx context.Context, baseSKU string) ([]fulfillment.ItemTracking, error) {
	var rows []fulfillment.ItemTracking
	if err := r.db.WithContext(ctx).
		Where("base_sku = ? AND status = ?", baseSKU, fulfillment.StatusUploaded).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Ensure GormTrackingRepository implements fulfillment.TrackingRepository
var _ fulfillment.TrackingRepository = (*GormTrackingRepository)(nil)
