package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/order"
	"github.com/oms/backend/internal/domain/shared"
)

const (
	// DefaultSyncPageSize is the page size for range queries against the
	// provider
	DefaultSyncPageSize = 50
	// statusEventTTL bounds how long a processed status event stays
	// remembered. Polling windows overlap by minutes, not days.
	statusEventTTL = 48 * time.Hour
)

// StatusSyncService pulls status changes from the provider and applies
// them to local orders and tracking rows. Transitions are monotonic:
// a report that would move an order backwards is a stale read and is
// discarded.
type StatusSyncService struct {
	provider    fulfillment.Provider
	orders      order.Repository
	scope       TransactionScope
	ledger      ShipmentRecorder
	idempotency shared.IdempotencyStore
}

// NewStatusSyncService creates a new StatusSyncService
func NewStatusSyncService(
	provider fulfillment.Provider,
	orders order.Repository,
	scope TransactionScope,
	ledger ShipmentRecorder,
	idempotency shared.IdempotencyStore,
) *StatusSyncService {
	return &StatusSyncService{
		provider:    provider,
		orders:      orders,
		scope:       scope,
		ledger:      ledger,
		idempotency: idempotency,
	}
}

// SyncWindow pages through every record the provider changed inside the
// window and applies each one. A page fetch failure ends the run with
// whatever was applied so far; the next tick's window overlaps and covers
// the gap.
func (s *StatusSyncService) SyncWindow(ctx context.Context, from, to time.Time) (*RunSummary, error) {
	summary := NewRunSummary()

	page := 1
	for {
		if ctx.Err() != nil {
			return summary.Finish(), ctx.Err()
		}
		req := &fulfillment.ListOrdersRequest{
			UpdatedFrom: from,
			UpdatedTo:   to,
			Page:        page,
			PageSize:    DefaultSyncPageSize,
		}
		resp, err := s.provider.ListOrders(ctx, req)
		if err != nil {
			return summary.Finish(), err
		}

		for i := range resp.Orders {
			s.applyRemote(ctx, &resp.Orders[i], summary)
		}

		if !resp.HasMore {
			break
		}
		page = resp.NextPage
	}
	return summary.Finish(), nil
}

// applyRemote applies one remote record to local state
func (s *StatusSyncService) applyRemote(ctx context.Context, remote *fulfillment.RemoteOrder, summary *RunSummary) {
	target, ok := localStatusFor(remote.Status)
	if !ok {
		summary.Skip()
		return
	}

	eventKey := statusEventKey(remote)
	if s.seen(ctx, eventKey) {
		summary.Skip()
		return
	}

	local, err := s.orders.FindByNumber(ctx, remote.OrderNumber)
	if err != nil {
		summary.Fail(remote.OrderNumber, err)
		return
	}
	if local == nil {
		// Not an order of ours. Remote numbers are not exclusively ours
		// to begin with.
		summary.Skip()
		return
	}

	if local.Status == target {
		s.remember(ctx, eventKey)
		summary.Skip()
		return
	}
	if !local.Status.CanTransitionTo(target) {
		// Stale read: the provider's window handed us an event older
		// than local state. Rank never goes backwards.
		s.remember(ctx, eventKey)
		summary.Skip()
		return
	}

	if err := s.applyTransition(ctx, local, remote, target); err != nil {
		summary.Fail(remote.OrderNumber, err)
		return
	}

	s.remember(ctx, eventKey)
	summary.Success()
}

// applyTransition executes one status transition atomically with its
// tracking row updates
func (s *StatusSyncService) applyTransition(
	ctx context.Context,
	local *order.Order,
	remote *fulfillment.RemoteOrder,
	target fulfillment.ShipmentStatus,
) error {
	reportedAt := remote.UpdatedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now()
	}

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		switch target {
		case fulfillment.StatusUploaded:
			if err := local.MarkUploaded(remote.RemoteID); err != nil {
				return err
			}

		case fulfillment.StatusShipped:
			if local.RemoteID == "" {
				if err := local.AdoptRemote(remote.RemoteID); err != nil {
					return err
				}
			}
			if err := local.MarkShipped(reportedAt); err != nil {
				return err
			}
			if err := markTrackingShipped(ctx, repos.TrackingRepo(), local.OrderNumber, reportedAt); err != nil {
				return err
			}

		case fulfillment.StatusCancelled:
			if err := local.MarkCancelled(); err != nil {
				return err
			}
			if err := markTrackingCancelled(ctx, repos.TrackingRepo(), local.OrderNumber); err != nil {
				return err
			}

		case fulfillment.StatusOnHold:
			if err := local.Hold("reported held by provider"); err != nil {
				return err
			}

		default:
			return fmt.Errorf("no inbound transition to %s", target)
		}
		return repos.OrderRepo().Save(ctx, local)
	})
	if err != nil {
		return err
	}

	if target == fulfillment.StatusShipped {
		s.recordShipment(ctx, local, reportedAt)
	}
	return nil
}

// recordShipment writes the ledger deduction for each line of the shipped
// order. The ledger decides whether a manual shipment already covers it.
func (s *StatusSyncService) recordShipment(ctx context.Context, o *order.Order, shippedAt time.Time) {
	if s.ledger == nil {
		return
	}
	for _, line := range o.Lines {
		_, _ = s.ledger.RecordRemoteShipment(ctx, o.OrderNumber, line.BaseSKU, line.Quantity, shippedAt)
	}
}

// seen reports whether the event was already applied in an earlier poll
func (s *StatusSyncService) seen(ctx context.Context, key string) bool {
	if s.idempotency == nil {
		return false
	}
	processed, err := s.idempotency.IsProcessed(ctx, key)
	if err != nil {
		// A broken store degrades to re-checking against local state,
		// which the rank comparison makes safe.
		return false
	}
	return processed
}

// remember marks the event processed after it was applied
func (s *StatusSyncService) remember(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	_, _ = s.idempotency.MarkProcessed(ctx, key, statusEventTTL)
}

// markTrackingShipped flips the order's live tracking rows to shipped
func markTrackingShipped(ctx context.Context, trackings fulfillment.TrackingRepository, orderNumber string, at time.Time) error {
	rows, err := trackings.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].Status.IsFinal() {
			continue
		}
		if err := rows[i].MarkShipped(at); err != nil {
			return err
		}
		if err := trackings.Save(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// markTrackingCancelled flips the order's live tracking rows to cancelled
func markTrackingCancelled(ctx context.Context, trackings fulfillment.TrackingRepository, orderNumber string) error {
	rows, err := trackings.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].Status.IsFinal() {
			continue
		}
		if err := rows[i].MarkCancelled(); err != nil {
			return err
		}
		if err := trackings.Save(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// localStatusFor maps a provider status to the local status it implies.
// Unknown provider statuses are skipped rather than failed: a new provider
// status must never wedge the poll loop.
func localStatusFor(remote fulfillment.RemoteOrderStatus) (fulfillment.ShipmentStatus, bool) {
	switch remote {
	case fulfillment.RemoteStatusSubmitted, fulfillment.RemoteStatusProcessing:
		return fulfillment.StatusUploaded, true
	case fulfillment.RemoteStatusHeld:
		return fulfillment.StatusOnHold, true
	case fulfillment.RemoteStatusShipped:
		return fulfillment.StatusShipped, true
	case fulfillment.RemoteStatusCancelled:
		return fulfillment.StatusCancelled, true
	default:
		return "", false
	}
}

// statusEventKey builds the idempotency key for one remote status event
func statusEventKey(remote *fulfillment.RemoteOrder) string {
	return fmt.Sprintf("status-sync:%s:%s", remote.RemoteID, remote.Status)
}
