package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/order"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/sku"
	"github.com/oms/backend/internal/infrastructure/telemetry"
)

const (
	// DefaultUploadBatchSize is how many pending orders one upload tick
	// takes from the queue
	DefaultUploadBatchSize = 20
)

// ShipmentRecorder records remote-reported ledger deductions. The ledger
// applies the one-deduction-per-order rule: when a manual shipment already
// covers the order, the entry is skipped and the drift is raised as an
// alert instead. The bool reports whether a row was actually written.
type ShipmentRecorder interface {
	RecordRemoteShipment(ctx context.Context, orderNumber, baseSKU string, quantity decimal.Decimal, occurredAt time.Time) (bool, error)
}

// UploadService pushes pending orders to the provider. Upload is
// reconciliation, not blind creation: every attempt starts with an exact
// existence check so re-runs, crashes mid-batch and concurrent workers all
// converge on one remote record per order.
type UploadService struct {
	provider fulfillment.Provider
	orders   order.Repository
	lots     inventory.LotRepository
	scope    TransactionScope
	ledger   ShipmentRecorder
	metrics  *telemetry.SyncMetrics
}

// NewUploadService creates a new UploadService
func NewUploadService(
	provider fulfillment.Provider,
	orders order.Repository,
	lots inventory.LotRepository,
	scope TransactionScope,
	ledger ShipmentRecorder,
) *UploadService {
	return &UploadService{
		provider: provider,
		orders:   orders,
		lots:     lots,
		scope:    scope,
		ledger:   ledger,
	}
}

// SetMetrics attaches upload outcome metrics
func (s *UploadService) SetMetrics(metrics *telemetry.SyncMetrics) {
	s.metrics = metrics
}

func (s *UploadService) recordUpload(ctx context.Context, result telemetry.UploadResult) {
	if s.metrics != nil {
		s.metrics.RecordUpload(ctx, result)
	}
}

// ProcessPending takes one batch from the pending queue, oldest first, and
// uploads each order. Transient remote failures leave the order pending
// for the next tick; permanent ones mark it failed with the reason.
func (s *UploadService) ProcessPending(ctx context.Context, batchSize int) (*RunSummary, error) {
	if batchSize <= 0 {
		batchSize = DefaultUploadBatchSize
	}
	summary := NewRunSummary()

	batch, err := s.orders.NextPendingBatch(ctx, batchSize)
	if err != nil {
		return summary.Finish(), err
	}

	for i := range batch {
		if ctx.Err() != nil {
			return summary.Finish(), ctx.Err()
		}
		o := &batch[i]
		err := s.UploadOrder(ctx, o)
		switch {
		case err == nil:
			summary.Success()
		case fulfillment.IsTransient(err):
			// Stays pending, the next tick retries.
			s.recordUpload(ctx, telemetry.UploadResultDeferred)
			summary.Skip()
		default:
			if markErr := s.markFailed(ctx, o, err); markErr != nil {
				err = errors.Join(err, markErr)
			}
			s.recordUpload(ctx, telemetry.UploadResultFailed)
			summary.Fail(o.OrderNumber, err)
		}
	}
	return summary.Finish(), nil
}

// UploadOrder reconciles one order against the provider and uploads it if
// no record exists yet. It is safe to call concurrently for the same
// order: the tracking pair constraint arbitrates the race and the loser
// treats it as success.
func (s *UploadService) UploadOrder(ctx context.Context, o *order.Order) error {
	if o.Status != fulfillment.StatusPending {
		return nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "upload", "reconcile_order")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, o.ID.String(),
		telemetry.SpanAttrOrderNumber, o.OrderNumber,
		telemetry.SpanAttrOrderStatus, string(o.Status),
	)

	// Wrap in profiling labels for performance analysis
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationUploadOrder, nil), func(c context.Context) {
		if len(o.Lines) == 0 {
			err := fmt.Errorf("order %s has no lines: %w", o.OrderNumber, fulfillment.ErrProviderRejected)
			telemetry.RecordError(span, err)
			operationErr = err
			return
		}

		// Exact existence check. Never a range scan: a miss here must
		// mean the provider truly has no record for the number.
		remotes, err := s.provider.GetOrdersByNumber(c, o.OrderNumber)
		if err != nil {
			telemetry.RecordError(span, err)
			operationErr = err
			return
		}

		if len(remotes) > 0 {
			if shipped := firstShipped(remotes); shipped != nil {
				if err := s.healShipped(c, o, shipped); err != nil {
					telemetry.RecordError(span, err)
					operationErr = err
					return
				}
				telemetry.AddEvent(span, "shipped_remote_healed",
					telemetry.SpanAttrRemoteID, shipped.RemoteID,
				)
				telemetry.SetAttribute(span, "status_after", string(o.Status))
				s.recordUpload(c, telemetry.UploadResultSelfHealed)
				return
			}
			if err := s.adoptExisting(c, o, remotes); err != nil {
				telemetry.RecordError(span, err)
				operationErr = err
				return
			}
			telemetry.AddEvent(span, "existing_remote_adopted",
				telemetry.SpanAttrRemoteID, o.RemoteID,
				"remote_count", len(remotes),
			)
			telemetry.SetAttribute(span, "status_after", string(o.Status))
			s.recordUpload(c, telemetry.UploadResultAdopted)
			return
		}

		if err := s.createRemote(c, o); err != nil {
			telemetry.RecordError(span, err)
			operationErr = err
			return
		}
		telemetry.AddEvent(span, "remote_order_created",
			telemetry.SpanAttrRemoteID, o.RemoteID,
		)
		telemetry.SetAttribute(span, "status_after", string(o.Status))
		s.recordUpload(c, telemetry.UploadResultCreated)
	})

	return operationErr
}

// ---------------------------------------------------------------------------
// Reconciliation paths
// ---------------------------------------------------------------------------

// healShipped handles the self-healing arc: the provider already shipped a
// record for this order number, so the local order is reclassified to
// shipped directly and the ledger is informed through the usual
// no-double-deduction path. Nothing is re-uploaded.
func (s *UploadService) healShipped(ctx context.Context, o *order.Order, remote *fulfillment.RemoteOrder) error {
	shippedAt := remote.UpdatedAt
	if shippedAt.IsZero() {
		shippedAt = time.Now()
	}

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := o.AdoptRemote(remote.RemoteID); err != nil {
			return err
		}
		if err := o.MarkShipped(shippedAt); err != nil {
			return err
		}
		if err := s.writeTrackingRows(ctx, repos.TrackingRepo(), o, remote.Items, shippedAt); err != nil {
			return err
		}
		return repos.OrderRepo().Save(ctx, o)
	})
	if err != nil {
		return err
	}

	s.recordShipment(ctx, o, shippedAt)
	return nil
}

// adoptExisting handles live remote records created by an earlier attempt
// that crashed before the local flip, or by a concurrent worker. The order
// adopts the earliest record; extra records are the duplicate scan's job.
func (s *UploadService) adoptExisting(ctx context.Context, o *order.Order, remotes []fulfillment.RemoteOrder) error {
	oldest := remotes[0]
	for _, r := range remotes[1:] {
		if r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := o.MarkUploaded(oldest.RemoteID); err != nil {
			return err
		}
		if err := s.writeTrackingRows(ctx, repos.TrackingRepo(), o, oldest.Items, time.Time{}); err != nil {
			return err
		}
		return repos.OrderRepo().Save(ctx, o)
	})
}

// createRemote is the normal path: no remote record exists, so one is
// created with the active lot's SKU tokens, then the local flip and the
// tracking inserts commit together.
func (s *UploadService) createRemote(ctx context.Context, o *order.Order) error {
	req, err := s.buildCreateRequest(ctx, o)
	if err != nil {
		return err
	}

	resp, err := s.provider.CreateOrder(ctx, req)
	if err != nil {
		return err
	}
	if resp.RemoteID == "" {
		return fmt.Errorf("create for order %s returned no remote id: %w", o.OrderNumber, fulfillment.ErrProviderInvalidResponse)
	}

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := o.MarkUploaded(resp.RemoteID); err != nil {
			return err
		}
		if err := s.writeTrackingRows(ctx, repos.TrackingRepo(), o, resp.Items, time.Time{}); err != nil {
			return err
		}
		return repos.OrderRepo().Save(ctx, o)
	})
}

// buildCreateRequest composes one line per order line, tokenized with the
// SKU's currently active lot. A SKU with no active lot uploads bare.
func (s *UploadService) buildCreateRequest(ctx context.Context, o *order.Order) (*fulfillment.CreateOrderRequest, error) {
	req := &fulfillment.CreateOrderRequest{
		OrderNumber: o.OrderNumber,
		Lines:       make([]fulfillment.CreateOrderLine, 0, len(o.Lines)),
	}
	for _, line := range o.Lines {
		token := line.BaseSKU
		active, err := s.lots.FindActive(ctx, line.BaseSKU)
		if err != nil {
			return nil, err
		}
		if active != nil {
			token = sku.Compose(line.BaseSKU, active.LotNumber)
		}
		req.Lines = append(req.Lines, fulfillment.CreateOrderLine{
			SKUToken: token,
			Quantity: line.Quantity,
		})
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// writeTrackingRows inserts one tracking row per remote item. A unique-pair
// constraint violation means another worker won the insert race; that is
// already-uploaded success, not an error. A non-zero shippedAt marks the
// rows shipped immediately (self-healing path).
func (s *UploadService) writeTrackingRows(
	ctx context.Context,
	trackings fulfillment.TrackingRepository,
	o *order.Order,
	items []fulfillment.RemoteOrderItem,
	shippedAt time.Time,
) error {
	for _, item := range items {
		token, err := sku.Parse(item.SKUToken)
		if err != nil {
			return fmt.Errorf("remote item %s: %w", item.RemoteItemID, fulfillment.ErrProviderInvalidResponse)
		}

		quantity := item.Quantity
		if line := o.LineForSKU(token.BaseSKU); line != nil && quantity.IsZero() {
			quantity = line.Quantity
		}

		row, err := fulfillment.NewItemTracking(o.OrderNumber, token.BaseSKU, item.RemoteItemID, token.LotNumber, quantity)
		if err != nil {
			return err
		}
		if !shippedAt.IsZero() {
			if err := row.MarkShipped(shippedAt); err != nil {
				return err
			}
		}

		if err := trackings.Save(ctx, row); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				continue
			}
			return err
		}
	}
	return nil
}

// recordShipment writes the ledger deduction for every line of a shipped
// order. The ledger itself decides per order whether a manual shipment
// already covers it. Ledger write failures do not undo the status flip;
// the ledger refresh task reports any residue.
func (s *UploadService) recordShipment(ctx context.Context, o *order.Order, shippedAt time.Time) {
	if s.ledger == nil {
		return
	}
	lines := make([]order.OrderLine, len(o.Lines))
	copy(lines, o.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].BaseSKU < lines[j].BaseSKU })
	for _, line := range lines {
		_, _ = s.ledger.RecordRemoteShipment(ctx, o.OrderNumber, line.BaseSKU, line.Quantity, shippedAt)
	}
}

// markFailed records a permanent upload failure on the order
func (s *UploadService) markFailed(ctx context.Context, o *order.Order, cause error) error {
	if err := o.MarkFailed(cause.Error()); err != nil {
		return err
	}
	return s.orders.Save(ctx, o)
}

// firstShipped returns the first shipped record among the remotes, or nil
func firstShipped(remotes []fulfillment.RemoteOrder) *fulfillment.RemoteOrder {
	for i := range remotes {
		if remotes[i].Status == fulfillment.RemoteStatusShipped {
			return &remotes[i]
		}
	}
	return nil
}
