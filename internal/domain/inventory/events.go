package inventory

import (
	"github.com/oms/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeLot = "Lot"

// Event type constants
const (
	EventTypeLotActivated = "LotActivated"
)

// LotActivatedEvent is published when the active lot for a SKU changes.
// It is an in-process notification only: the lot-sync pass it triggers also
// runs on its own schedule, so a lost event delays re-targeting by at most
// one tick.
type LotActivatedEvent struct {
	shared.BaseDomainEvent
	BaseSKU     string `json:"base_sku"`
	PreviousLot string `json:"previous_lot,omitempty"`
	NewLot      string `json:"new_lot"`
	Version     int    `json:"version"`
}

// NewLotActivatedEvent creates a new LotActivatedEvent
func NewLotActivatedEvent(lot *Lot, previousLot string) *LotActivatedEvent {
	return &LotActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLotActivated, AggregateTypeLot, lot.ID),
		BaseSKU:         lot.BaseSKU,
		PreviousLot:     previousLot,
		NewLot:          lot.LotNumber,
		Version:         lot.Version,
	}
}
