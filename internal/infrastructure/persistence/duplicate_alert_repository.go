package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormDuplicateAlertRepository implements fulfillment.DuplicateAlertRepository using GORM
type GormDuplicateAlertRepository struct {
	db *gorm.DB
}

// NewGormDuplicateAlertRepository creates a new GormDuplicateAlertRepository
func NewGormDuplicateAlertRepository(db *gorm.DB) *GormDuplicateAlertRepository {
	return &GormDuplicateAlertRepository{db: db}
}

// Save creates or updates an alert
func (r *GormDuplicateAlertRepository) Save(ctx context.Context, alert *fulfillment.DuplicateAlert) error {
	err := r.db.WithContext(ctx).Save(alert).Error
	return translateError(err)
}

// FindByID finds an alert by its ID
func (r *GormDuplicateAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.DuplicateAlert, error) {
	var alert fulfillment.DuplicateAlert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// FindOpenByPair returns the open alert for a pair, or nil when none
// exists
func (r *GormDuplicateAlertRepository) FindOpenByPair(ctx context.Context, orderNumber, baseSKU string) (*fulfillment.DuplicateAlert, error) {
	var alert fulfillment.DuplicateAlert
	if err := r.db.WithContext(ctx).
		Where("order_number = ? AND base_sku = ? AND status = ?",
			orderNumber, baseSKU, fulfillment.AlertStatusOpen).
		First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// FindByStatus returns alerts in the given status, newest first
func (r *GormDuplicateAlertRepository) FindByStatus(ctx context.Context, status fulfillment.DuplicateAlertStatus, filter shared.Filter) ([]fulfillment.DuplicateAlert, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&fulfillment.DuplicateAlert{}).
		Where("status = ?", status).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []fulfillment.DuplicateAlert
	query := r.applyFilter(
		r.db.WithContext(ctx).Where("status = ?", status),
		filter,
	)
	if err := query.Find(&alerts).Error; err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// applyFilter applies pagination and ordering to the query
func (r *GormDuplicateAlertRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	field := ValidateSortField(filter.OrderBy, DuplicateAlertSortFields, "created_at")
	dir := ValidateSortOrder(filter.OrderDir)
	return query.Order(field + " " + dir)
}

// Ensure GormDuplicateAlertRepository implements fulfillment.DuplicateAlertRepository
var _ fulfillment.DuplicateAlertRepository = (*GormDuplicateAlertRepository)(nil)
