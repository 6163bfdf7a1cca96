package persistence

import (
	"context"
	"errors"

	"github.com/oms/backend/internal/domain/fulfillment"
	"gorm.io/gorm"
)

// GormTaskStateRepository implements fulfillment.TaskStateRepository using GORM
type GormTaskStateRepository struct {
	db *gorm.DB
}

// NewGormTaskStateRepository creates a new GormTaskStateRepository
func NewGormTaskStateRepository(db *gorm.DB) *GormTaskStateRepository {
	return &GormTaskStateRepository{db: db}
}

// Save creates or updates a task state
func (r *GormTaskStateRepository) Save(ctx context.Context, state *fulfillment.TaskState) error {
	err := r.db.WithContext(ctx).Save(state).Error
	return translateError(err)
}

// FindByKind returns the state row for a task kind, or nil when none
// exists yet
func (r *GormTaskStateRepository) FindByKind(ctx context.Context, kind fulfillment.TaskKind) (*fulfillment.TaskState, error) {
	var state fulfillment.TaskState
	if err := r.db.WithContext(ctx).
		Where("task = ?", kind).
		First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// FindAll returns the state rows for every known task kind
func (r *GormTaskStateRepository) FindAll(ctx context.Context) ([]fulfillment.TaskState, error) {
	var states []fulfillment.TaskState
	if err := r.db.WithContext(ctx).
		Order("task ASC").
		Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

// Ensure GormTaskStateRepository implements fulfillment.TaskStateRepository
var _ fulfillment.TaskStateRepository = (*GormTaskStateRepository)(nil)
