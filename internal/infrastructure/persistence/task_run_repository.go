package persistence

import (
	"context"

	"github.com/oms/backend/internal/domain/fulfillment"
	"gorm.io/gorm"
)

// GormTaskRunRepository implements fulfillment.TaskRunRepository using GORM
type GormTaskRunRepository struct {
	db *gorm.DB
}

// NewGormTaskRunRepository creates a new GormTaskRunRepository
func NewGormTaskRunRepository(db *gorm.DB) *GormTaskRunRepository {
	return &GormTaskRunRepository{db: db}
}

// Save creates or updates a run record
func (r *GormTaskRunRepository) Save(ctx context.Context, run *fulfillment.TaskRun) error {
	err := r.db.WithContext(ctx).Save(run).Error
	return translateError(err)
}

// FindRecentByKind returns the latest runs for a task kind, newest first
func (r *GormTaskRunRepository) FindRecentByKind(ctx context.Context, kind fulfillment.TaskKind, limit int) ([]fulfillment.TaskRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []fulfillment.TaskRun
	if err := r.db.WithContext(ctx).
		Where("task = ?", kind).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Ensure GormTaskRunRepository implements fulfillment.TaskRunRepository
var _ fulfillment.TaskRunRepository = (*GormTaskRunRepository)(nil)
