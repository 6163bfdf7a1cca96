package persistence

import (
	"errors"

	"github.com/oms/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps GORM's translated driver errors onto the shared
// domain errors. Requires TranslateError enabled on the connection so
// unique violations arrive as gorm.ErrDuplicatedKey on every driver.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	default:
		return err
	}
}
