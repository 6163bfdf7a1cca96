package sync

import (
	"context"
	"fmt"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/sku"
)

// LotSyncService re-targets uploaded lines at the active lot after an
// activation. It runs two ways: as an event handler fired directly by a
// lot activation, and as a periodic sweep over every active lot. The sweep
// makes the event loss-tolerant; the event makes the sweep latency-
// tolerant.
//
// Only uploaded rows are touched. A shipped line already left the
// warehouse under its lot and rewriting it would falsify history.
type LotSyncService struct {
	provider   fulfillment.Provider
	trackings  fulfillment.TrackingRepository
	lots       inventory.LotRepository
	mismatches fulfillment.MismatchAlertRepository
}

// NewLotSyncService creates a new LotSyncService
func NewLotSyncService(
	provider fulfillment.Provider,
	trackings fulfillment.TrackingRepository,
	lots inventory.LotRepository,
	mismatches fulfillment.MismatchAlertRepository,
) *LotSyncService {
	return &LotSyncService{
		provider:   provider,
		trackings:  trackings,
		lots:       lots,
		mismatches: mismatches,
	}
}

// ---------------------------------------------------------------------------
// Event Handling
// ---------------------------------------------------------------------------

// Handle reacts to a lot activation by resyncing the SKU immediately
func (s *LotSyncService) Handle(ctx context.Context, event shared.DomainEvent) error {
	activated, ok := event.(*inventory.LotActivatedEvent)
	if !ok {
		return nil
	}
	_, err := s.ResyncSKU(ctx, activated.BaseSKU)
	return err
}

// EventTypes returns the event types this handler is interested in
func (s *LotSyncService) EventTypes() []string {
	return []string{inventory.EventTypeLotActivated}
}

var _ shared.EventHandler = (*LotSyncService)(nil)

// ---------------------------------------------------------------------------
// Resync
// ---------------------------------------------------------------------------

// ResyncSKU rewrites the remote SKU token of every uploaded line whose lot
// differs from the SKU's active lot. Transient remote failures leave the
// row for the next sweep; permanent ones raise a lot mismatch alert, since
// the remote line now disagrees with what will physically ship.
func (s *LotSyncService) ResyncSKU(ctx context.Context, baseSKU string) (*RunSummary, error) {
	summary := NewRunSummary()
	if baseSKU == "" {
		return summary.Finish(), shared.ErrInvalidInput
	}

	active, err := s.lots.FindActive(ctx, baseSKU)
	if err != nil {
		return summary.Finish(), err
	}
	if active == nil {
		// Nothing to be stale against.
		return summary.Finish(), nil
	}

	rows, err := s.trackings.FindUploadedBySKU(ctx, baseSKU)
	if err != nil {
		return summary.Finish(), err
	}

	for i := range rows {
		if ctx.Err() != nil {
			return summary.Finish(), ctx.Err()
		}
		row := &rows[i]
		if row.LotNumber == active.LotNumber {
			continue
		}
		s.rewriteRow(ctx, row, active.LotNumber, summary)
	}
	return summary.Finish(), nil
}

// Sweep resyncs every SKU that has an active lot. This is the periodic
// backstop for lost activation events.
func (s *LotSyncService) Sweep(ctx context.Context) (*RunSummary, error) {
	summary := NewRunSummary()

	actives, err := s.lots.FindAllActive(ctx)
	if err != nil {
		return summary.Finish(), err
	}

	for i := range actives {
		if ctx.Err() != nil {
			return summary.Finish(), ctx.Err()
		}
		part, err := s.ResyncSKU(ctx, actives[i].BaseSKU)
		summary.Merge(part)
		if err != nil {
			summary.Fail(actives[i].BaseSKU, err)
		}
	}
	return summary.Finish(), nil
}

// rewriteRow pushes the new token to the provider first, then updates the
// local row. The order matters: a local-first update would hide a remote
// line still pointing at the old lot.
func (s *LotSyncService) rewriteRow(ctx context.Context, row *fulfillment.ItemTracking, activeLot string, summary *RunSummary) {
	token := sku.Compose(row.BaseSKU, activeLot)

	if err := s.provider.UpdateOrderItemSKU(ctx, row.RemoteItemID, token); err != nil {
		if fulfillment.IsTransient(err) {
			summary.Skip()
			return
		}
		s.flagLotDrift(ctx, row, activeLot, err)
		summary.Fail(row.RemoteItemID, err)
		return
	}

	if err := row.RewriteLot(activeLot); err != nil {
		summary.Fail(row.RemoteItemID, err)
		return
	}
	if err := s.trackings.Save(ctx, row); err != nil {
		summary.Fail(row.RemoteItemID, err)
		return
	}
	summary.Success()
}

// flagLotDrift raises a lot mismatch alert, at most one open per pair
func (s *LotSyncService) flagLotDrift(ctx context.Context, row *fulfillment.ItemTracking, activeLot string, cause error) {
	if s.mismatches == nil {
		return
	}
	open, err := s.mismatches.ExistsOpen(ctx, fulfillment.MismatchKindLot, row.OrderNumber, row.BaseSKU)
	if err != nil || open {
		return
	}
	detail := fmt.Sprintf("remote line %s still carries lot %s after rewrite to %s failed: %v",
		row.RemoteItemID, row.LotNumber, activeLot, cause)
	alert, err := fulfillment.NewMismatchAlert(
		fulfillment.MismatchKindLot,
		row.OrderNumber,
		row.BaseSKU,
		activeLot,
		row.LotNumber,
		detail,
	)
	if err != nil {
		return
	}
	_ = s.mismatches.Save(ctx, alert)
}
