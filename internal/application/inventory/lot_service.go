package inventory

import (
	"context"

	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
)

// LotService manages the active-lot registry. Activation is a two-step
// deactivate/activate transition the repository executes atomically; a
// successful activation publishes a LotActivatedEvent so lot-sync can
// re-target uploaded lines without waiting for its next tick.
type LotService struct {
	lots      inventory.LotRepository
	publisher shared.EventPublisher
}

// NewLotService creates a new LotService
func NewLotService(lots inventory.LotRepository, publisher shared.EventPublisher) *LotService {
	return &LotService{
		lots:      lots,
		publisher: publisher,
	}
}

// ActiveLot returns the active lot for a SKU
func (s *LotService) ActiveLot(ctx context.Context, baseSKU string) (*LotResponse, error) {
	if baseSKU == "" {
		return nil, shared.ErrInvalidInput
	}
	lot, err := s.lots.FindActive(ctx, baseSKU)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, shared.ErrNotFound
	}
	resp := ToLotResponse(lot)
	return &resp, nil
}

// Activate makes the named lot the active one for its SKU and announces
// the change. The event is in-process only: if it is lost, the periodic
// lot-sync sweep covers the change on its next tick.
func (s *LotService) Activate(ctx context.Context, baseSKU, lotNumber string) (*LotResponse, error) {
	if baseSKU == "" || lotNumber == "" {
		return nil, shared.ErrInvalidInput
	}

	lot, previous, err := s.lots.Activate(ctx, baseSKU, lotNumber)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil && previous != lot.LotNumber {
		// Publish failures are the bus's problem; activation already
		// committed.
		_ = s.publisher.Publish(ctx, inventory.NewLotActivatedEvent(lot, previous))
	}

	resp := ToLotResponse(lot)
	return &resp, nil
}

// IsStale reports whether the lot differs from the SKU's active lot.
// With no active lot there is nothing to be stale against.
func (s *LotService) IsStale(ctx context.Context, baseSKU, lotNumber string) (bool, error) {
	if baseSKU == "" {
		return false, shared.ErrInvalidInput
	}
	active, err := s.lots.FindActive(ctx, baseSKU)
	if err != nil {
		return false, err
	}
	if active == nil {
		return false, nil
	}
	return active.LotNumber != lotNumber, nil
}

// Lots returns every lot recorded for a SKU, newest first
func (s *LotService) Lots(ctx context.Context, baseSKU string) ([]LotResponse, error) {
	if baseSKU == "" {
		return nil, shared.ErrInvalidInput
	}
	lots, err := s.lots.FindBySKU(ctx, baseSKU)
	if err != nil {
		return nil, err
	}
	responses := make([]LotResponse, 0, len(lots))
	for i := range lots {
		responses = append(responses, ToLotResponse(&lots[i]))
	}
	return responses, nil
}
