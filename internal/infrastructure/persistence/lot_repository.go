package persistence

import (
	"context"
	"errors"

	"github.com/oms/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLotRepository implements inventory.LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

// FindActive returns the active lot for a SKU, or nil when none is active
func (r *GormLotRepository) FindActive(ctx context.Context, baseSKU string) (*inventory.Lot, error) {
	var lot inventory.Lot
	if err := r.db.WithContext(ctx).
		Where("base_sku = ? AND active = ?", baseSKU, true).
		First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lot, nil
}

// FindAllActive returns the active lot of every SKU that has one
func (r *GormLotRepository) FindAllActive(ctx context.Context) ([]inventory.Lot, error) {
	var lots []inventory.Lot
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("base_sku ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// FindBySKUAndLot returns a specific lot, or nil when it does not exist
func (r *GormLotRepository) FindBySKUAndLot(ctx context.Context, baseSKU, lotNumber string) (*inventory.Lot, error) {
	var lot inventory.Lot
	if err := r.db.WithContext(ctx).
		Where("base_sku = ? AND lot_number = ?", baseSKU, lotNumber).
		First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lot, nil
}

// FindBySKU returns all lots for a SKU, newest first
func (r *GormLotRepository) FindBySKU(ctx context.Context, baseSKU string) ([]inventory.Lot, error) {
	var lots []inventory.Lot
	if err := r.db.WithContext(ctx).
		Where("base_sku = ?", baseSKU).
		Order("created_at DESC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// Save creates or updates a lot
func (r *GormLotRepository) Save(ctx context.Context, lot *inventory.Lot) error {
	err := r.db.WithContext(ctx).Save(lot).Error
	return translateError(err)
}

// Activate atomically switches the active lot for a SKU. The previously
// active lot is deactivated and the named one activated inside a single
// transaction; the lot row is created when it does not exist yet.
// Returns the activated lot and the previously active lot number.
func (r *GormLotRepository) Activate(ctx context.Context, baseSKU, lotNumber string) (*inventory.Lot, string, error) {
	var activated *inventory.Lot
	var previous string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current inventory.Lot
		err := tx.Where("base_sku = ? AND active = ?", baseSKU, true).
			First(&current).Error
		switch {
		case err == nil:
			if current.LotNumber == lotNumber {
				// Already active; nothing to switch.
				activated = &current
				previous = current.LotNumber
				return nil
			}
			previous = current.LotNumber
			current.Deactivate()
			if err := tx.Save(&current).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No active lot yet for this SKU.
		default:
			return err
		}

		var target inventory.Lot
		err = tx.Where("base_sku = ? AND lot_number = ?", baseSKU, lotNumber).
			First(&target).Error
		switch {
		case err == nil:
			target.Activate()
			if err := tx.Save(&target).Error; err != nil {
				return err
			}
			activated = &target
		case errors.Is(err, gorm.ErrRecordNotFound):
			lot, lotErr := inventory.NewLot(baseSKU, lotNumber, decimal.Zero)
			if lotErr != nil {
				return lotErr
			}
			lot.Activate()
			if err := tx.Create(lot).Error; err != nil {
				return translateError(err)
			}
			activated = lot
		default:
			return err
		}

		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return activated, previous, nil
}

// Ensure GormLotRepository implements inventory.LotRepository
var _ inventory.LotRepository = (*GormLotRepository)(nil)
