package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
)

const (
	// DefaultAverageWeeks is the default window for rolling weekly averages
	DefaultAverageWeeks = 4
)

// LedgerService answers stock questions by replaying the transaction ledger
// and records new ledger entries. It owns the one-deduction-per-order rule:
// a remote-reported shipment is only recorded when no manual shipment exists
// for the order, and a superseded deduction is surfaced as a mismatch alert
// instead of being silently merged.
type LedgerService struct {
	transactions inventory.TransactionRepository
	baselines    inventory.BaselineRepository
	mismatches   fulfillment.MismatchAlertRepository
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	transactions inventory.TransactionRepository,
	baselines inventory.BaselineRepository,
	mismatches fulfillment.MismatchAlertRepository,
) *LedgerService {
	return &LedgerService{
		transactions: transactions,
		baselines:    baselines,
		mismatches:   mismatches,
	}
}

// StockOnHand replays the ledger for a SKU and returns its position as of
// the given instant. Replay starts from the latest protected baseline at or
// before asOf; the baseline itself is never modified.
func (s *LedgerService) StockOnHand(ctx context.Context, baseSKU string, asOf time.Time) (*StockResponse, error) {
	if baseSKU == "" {
		return nil, shared.ErrInvalidInput
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	baseline, err := s.baselines.FindLatest(ctx, baseSKU, asOf)
	if err != nil {
		return nil, err
	}

	var after time.Time
	if baseline != nil {
		after = baseline.TakenAt
	}
	txs, err := s.transactions.FindBySKU(ctx, baseSKU, after, asOf)
	if err != nil {
		return nil, err
	}

	result := inventory.Replay(baseSKU, baseline, txs, asOf)

	resp := &StockResponse{
		BaseSKU:          result.BaseSKU,
		StockOnHand:      result.StockOnHand,
		BaselineQuantity: result.BaselineQuantity,
		AsOf:             asOf,
		Applied:          result.Applied,
	}
	if baseline != nil {
		takenAt := result.BaselineTakenAt
		resp.BaselineTakenAt = &takenAt
	}
	for _, c := range result.Conflicts {
		resp.Conflicts = append(resp.Conflicts, ConflictResponse{
			OrderNumber:     c.OrderNumber,
			AppliedKind:     c.AppliedKind.String(),
			AppliedQuantity: c.AppliedQuantity,
			IgnoredQuantity: c.IgnoredQuantity,
		})
	}
	return resp, nil
}

// ListTransactions returns the ledger rows for a SKU inside a window,
// chronological. A zero until means now.
func (s *LedgerService) ListTransactions(ctx context.Context, baseSKU string, after, until time.Time) ([]TransactionResponse, error) {
	if baseSKU == "" {
		return nil, shared.ErrInvalidInput
	}
	if until.IsZero() {
		until = time.Now()
	}
	txs, err := s.transactions.FindBySKU(ctx, baseSKU, after, until)
	if err != nil {
		return nil, err
	}
	responses := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		responses = append(responses, ToTransactionResponse(&txs[i]))
	}
	return responses, nil
}

// WeeklyAverage returns the rolling weekly average of shipped quantity for
// a SKU. Only ship-kind rows count: manual shipments and adjustments move
// stock but are excluded from shipping statistics.
func (s *LedgerService) WeeklyAverage(ctx context.Context, baseSKU string, weeks int) (*WeeklyAverageResponse, error) {
	if baseSKU == "" {
		return nil, shared.ErrInvalidInput
	}
	if weeks <= 0 {
		weeks = DefaultAverageWeeks
	}
	asOf := time.Now()
	windowStart := asOf.Add(-time.Duration(weeks) * 7 * 24 * time.Hour)

	txs, err := s.transactions.FindBySKU(ctx, baseSKU, windowStart, asOf)
	if err != nil {
		return nil, err
	}

	totals := inventory.WeeklyShipTotals(txs, weeks, asOf)
	resp := &WeeklyAverageResponse{
		BaseSKU: baseSKU,
		Weeks:   weeks,
		Average: inventory.WeeklyShipAverage(txs, weeks, asOf),
	}
	for _, wt := range totals {
		resp.Totals = append(resp.Totals, WeekTotalResponse{WeekStart: wt.WeekStart, Total: wt.Quantity})
	}
	return resp, nil
}

// RecordAdjustment appends a manual ledger entry. Only the manual kinds are
// accepted here; receive and ship rows come from their own flows. A manual
// shipment must name the order it deducts for, because that tag is what the
// one-deduction-per-order rule keys on.
func (s *LedgerService) RecordAdjustment(ctx context.Context, req AdjustmentRequest) (*TransactionResponse, error) {
	kind := inventory.TransactionKind(req.Kind)
	switch kind {
	case inventory.KindAdjustUp, inventory.KindAdjustDown, inventory.KindManualShipment:
	default:
		return nil, shared.NewDomainError("INVALID_KIND", "Kind must be a manual adjustment kind")
	}
	if kind == inventory.KindManualShipment && req.OrderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "A manual shipment must name its order")
	}

	tx, err := inventory.NewInventoryTransaction(req.BaseSKU, kind, req.Quantity, inventory.SourceManual)
	if err != nil {
		return nil, err
	}
	if req.OrderNumber != "" {
		tx.WithOrderNumber(req.OrderNumber)
	}
	if req.Note != "" {
		tx.WithNote(req.Note)
	}
	if req.OccurredAt != nil {
		tx.WithOccurredAt(*req.OccurredAt)
	}

	if err := s.transactions.Save(ctx, tx); err != nil {
		return nil, err
	}
	resp := ToTransactionResponse(tx)
	return &resp, nil
}

// RecordBaseline writes a new protected stock snapshot. Baselines are
// write-once; replay never reaches past the latest one.
func (s *LedgerService) RecordBaseline(ctx context.Context, req BaselineRequest) error {
	takenAt := time.Now()
	if req.TakenAt != nil {
		takenAt = *req.TakenAt
	}
	baseline, err := inventory.NewStockBaseline(req.BaseSKU, req.Quantity, takenAt)
	if err != nil {
		return err
	}
	if req.Note != "" {
		baseline.WithNote(req.Note)
	}
	return s.baselines.Save(ctx, baseline)
}

// HasManualAdjustment reports whether a manual shipment was recorded for
// the order
func (s *LedgerService) HasManualAdjustment(ctx context.Context, orderNumber string) (bool, error) {
	if orderNumber == "" {
		return false, shared.ErrInvalidInput
	}
	return s.transactions.HasManualShipment(ctx, orderNumber)
}

// RecordRemoteShipment records the ledger deduction for a remote-reported
// shipment, unless a manual shipment already covers the order. In that case
// nothing is recorded, the drift is surfaced as a deduction mismatch alert,
// and the caller learns the entry was skipped from the return value.
func (s *LedgerService) RecordRemoteShipment(ctx context.Context, orderNumber, baseSKU string, quantity decimal.Decimal, occurredAt time.Time) (bool, error) {
	manual, err := s.transactions.HasManualShipment(ctx, orderNumber)
	if err != nil {
		return false, err
	}
	if manual {
		s.flagDeductionDrift(ctx, orderNumber, baseSKU, quantity)
		return false, nil
	}

	tx, err := inventory.NewInventoryTransaction(baseSKU, inventory.KindShip, quantity, inventory.SourceRemoteSync)
	if err != nil {
		return false, err
	}
	tx.WithOrderNumber(orderNumber)
	if !occurredAt.IsZero() {
		tx.WithOccurredAt(occurredAt)
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		return false, err
	}
	return true, nil
}

// flagDeductionDrift opens a deduction mismatch alert, at most one per pair
func (s *LedgerService) flagDeductionDrift(ctx context.Context, orderNumber, baseSKU string, remoteQty decimal.Decimal) {
	if s.mismatches == nil {
		return
	}
	open, err := s.mismatches.ExistsOpen(ctx, fulfillment.MismatchKindDeduction, orderNumber, baseSKU)
	if err != nil || open {
		return
	}
	detail := fmt.Sprintf("remote ship of %s for order %s skipped: a manual shipment is already recorded", remoteQty, orderNumber)
	alert, err := fulfillment.NewMismatchAlert(
		fulfillment.MismatchKindDeduction,
		orderNumber,
		baseSKU,
		inventory.KindManualShipment.String(),
		inventory.KindShip.String(),
		detail,
	)
	if err != nil {
		return
	}
	_ = s.mismatches.Save(ctx, alert)
}
