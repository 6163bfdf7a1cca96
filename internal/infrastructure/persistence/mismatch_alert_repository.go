package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormMismatchAlertRepository implements fulfillment.MismatchAlertRepository using GORM
type GormMismatchAlertRepository struct {
	db *gorm.DB
}

// NewGormMismatchAlertRepository creates a new GormMismatchAlertRepository
func NewGormMismatchAlertRepository(db *gorm.DB) *GormMismatchAlertRepository {
	return &GormMismatchAlertRepository{db: db}
}

// Save creates or updates an alert
func (r *GormMismatchAlertRepository) Save(ctx context.Context, alert *fulfillment.MismatchAlert) error {
	err := r.db.WithContext(ctx).Save(alert).Error
	return translateError(err)
}

// FindByID finds an alert by its ID
func (r *GormMismatchAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.MismatchAlert, error) {
	var alert fulfillment.MismatchAlert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// FindUnacknowledged returns alerts not yet reviewed, newest first
func (r *GormMismatchAlertRepository) FindUnacknowledged(ctx context.Context, filter shared.Filter) ([]fulfillment.MismatchAlert, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&fulfillment.MismatchAlert{}).
		Where("acknowledged = ?", false).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []fulfillment.MismatchAlert
	query := r.applyFilter(
		r.db.WithContext(ctx).Where("acknowledged = ?", false),
		filter,
	)
	if err := query.Find(&alerts).Error; err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// ExistsOpen reports whether an unacknowledged alert of the given kind
// exists for the pair
func (r *GormMismatchAlertRepository) ExistsOpen(ctx context.Context, kind fulfillment.MismatchKind, orderNumber, baseSKU string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&fulfillment.MismatchAlert{}).
		Where("kind = ? AND order_number = ? AND base_sku = ? AND acknowledged = ?",
			kind, orderNumber, baseSKU, false).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies pagination and ordering to the query
func (r *GormMismatchAlertRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	field := ValidateSortField(filter.OrderBy, MismatchAlertSortFields, "created_at")
	dir := ValidateSortOrder(filter.OrderDir)
	return query.Order(field + " " + dir)
}

// Ensure GormMismatchAlertRepository implements fulfillment.MismatchAlertRepository
var _ fulfillment.MismatchAlertRepository = (*GormMismatchAlertRepository)(nil)
