package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/infrastructure/telemetry"
)

const (
	// DefaultRefreshWeeks is the trailing window for weekly ship averages
	DefaultRefreshWeeks = 4
)

// LedgerSnapshot is one full recomputation of every SKU's position,
// archived for audit and trend analysis
type LedgerSnapshot struct {
	// AsOf is the instant the snapshot describes
	AsOf time.Time `json:"as_of"`
	// Entries holds one row per SKU with ledger activity
	Entries []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is one SKU's recomputed position
type SnapshotEntry struct {
	BaseSKU       string          `json:"base_sku"`
	StockOnHand   decimal.Decimal `json:"stock_on_hand"`
	WeeklyAverage decimal.Decimal `json:"weekly_average"`
	Applied       int             `json:"applied"`
	Conflicts     int             `json:"conflicts"`
}

// SnapshotArchiver persists ledger snapshots outside the database.
// Archival is best effort: a failed archive degrades the run to partial
// but never blocks conflict detection.
type SnapshotArchiver interface {
	Archive(ctx context.Context, snapshot *LedgerSnapshot) error
}

// LedgerRefreshService replays the full ledger on a schedule. Replay is
// read-only for the ledger itself; the observable outputs are deduction
// mismatch alerts for conflicts the replay uncovered and an archived
// snapshot of every SKU's position.
type LedgerRefreshService struct {
	transactions inventory.TransactionRepository
	baselines    inventory.BaselineRepository
	mismatches   fulfillment.MismatchAlertRepository
	archiver     SnapshotArchiver
	metrics      *telemetry.SyncMetrics
}

// NewLedgerRefreshService creates a new LedgerRefreshService
func NewLedgerRefreshService(
	transactions inventory.TransactionRepository,
	baselines inventory.BaselineRepository,
	mismatches fulfillment.MismatchAlertRepository,
	archiver SnapshotArchiver,
) *LedgerRefreshService {
	return &LedgerRefreshService{
		transactions: transactions,
		baselines:    baselines,
		mismatches:   mismatches,
		archiver:     archiver,
	}
}

// SetMetrics attaches replay duration metrics
func (s *LedgerRefreshService) SetMetrics(metrics *telemetry.SyncMetrics) {
	s.metrics = metrics
}

// Refresh replays every SKU with ledger activity, raises alerts for
// deduction conflicts and archives the snapshot
func (s *LedgerRefreshService) Refresh(ctx context.Context) (*RunSummary, error) {
	summary := NewRunSummary()
	asOf := time.Now()

	skus, err := s.transactions.DistinctSKUs(ctx)
	if err != nil {
		return summary.Finish(), err
	}

	snapshot := &LedgerSnapshot{
		AsOf:    asOf,
		Entries: make([]SnapshotEntry, 0, len(skus)),
	}

	for _, baseSKU := range skus {
		if ctx.Err() != nil {
			return summary.Finish(), ctx.Err()
		}
		entry, err := s.refreshSKU(ctx, baseSKU, asOf)
		if err != nil {
			summary.Fail(baseSKU, err)
			continue
		}
		snapshot.Entries = append(snapshot.Entries, *entry)
		summary.Success()
	}

	if s.archiver != nil && len(snapshot.Entries) > 0 {
		if err := s.archiver.Archive(ctx, snapshot); err != nil {
			summary.Fail("snapshot", err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordLedgerReplay(ctx, time.Since(asOf))
	}
	return summary.Finish(), nil
}

// refreshSKU replays one SKU and raises alerts for its conflicts
func (s *LedgerRefreshService) refreshSKU(ctx context.Context, baseSKU string, asOf time.Time) (*SnapshotEntry, error) {
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
	for _, conflict := range result.Conflicts {
		s.flagConflict(ctx, baseSKU, conflict)
	}

	return &SnapshotEntry{
		BaseSKU:       baseSKU,
		StockOnHand:   result.StockOnHand,
		WeeklyAverage: inventory.WeeklyShipAverage(txs, DefaultRefreshWeeks, asOf),
		Applied:       result.Applied,
		Conflicts:     len(result.Conflicts),
	}, nil
}

// flagConflict raises a deduction mismatch alert for a replay conflict,
// at most one open per pair
func (s *LedgerRefreshService) flagConflict(ctx context.Context, baseSKU string, conflict inventory.DeductionConflict) {
	if s.mismatches == nil {
		return
	}
	open, err := s.mismatches.ExistsOpen(ctx, fulfillment.MismatchKindDeduction, conflict.OrderNumber, baseSKU)
	if err != nil || open {
		return
	}
	detail := fmt.Sprintf("order %s carries %d superseded deduction(s) totalling %s; applied %s of %s",
		conflict.OrderNumber, len(conflict.IgnoredIDs), conflict.IgnoredQuantity,
		conflict.AppliedKind, conflict.AppliedQuantity)
	alert, err := fulfillment.NewMismatchAlert(
		fulfillment.MismatchKindDeduction,
		conflict.OrderNumber,
		baseSKU,
		conflict.AppliedKind.String(),
		"superseded deduction",
		detail,
	)
	if err != nil {
		return
	}
	_ = s.mismatches.Save(ctx, alert)
}
