package scheduler

import (
	"context"
	"time"

	appsync "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/domain/fulfillment"
)

// ---------------------------------------------------------------------------
// TaskExecutor
// ---------------------------------------------------------------------------

const (
	// DefaultIngestionLookback bounds how far back one ingestion tick asks
	// the source for new orders. Re-reads are safe; ingestion dedupes by
	// order number.
	DefaultIngestionLookback = 24 * time.Hour

	// DefaultStatusSyncLookback is the provider change window one
	// status-sync tick polls. Windows overlap on purpose; the event-level
	// idempotency key absorbs re-applied events.
	DefaultStatusSyncLookback = 24 * time.Hour

	// DefaultDuplicateScanLookback is the provider change window one
	// duplicate-scan tick groups over.
	DefaultDuplicateScanLookback = 72 * time.Hour
)

// TaskExecutor runs one task kind's work for a single scheduled run. The
// deadline for the run is carried by ctx; an executor that overruns it
// reports the context error.
type TaskExecutor interface {
	// Kind identifies the task this executor serves
	Kind() fulfillment.TaskKind

	// Execute performs one run and reports per-item counts
	Execute(ctx context.Context) (*appsync.RunSummary, error)
}

// ---------------------------------------------------------------------------
// Ingestion
// ---------------------------------------------------------------------------

// IngestionExecutor pulls one batch of new orders from the upstream source
type IngestionExecutor struct {
	service  *appsync.IngestionService
	lookback time.Duration
	limit    int
}

// NewIngestionExecutor creates the executor for the ingestion task. A
// non-positive lookback or limit falls back to the defaults.
func NewIngestionExecutor(service *appsync.IngestionService, lookback time.Duration, limit int) *IngestionExecutor {
	if lookback <= 0 {
		lookback = DefaultIngestionLookback
	}
	return &IngestionExecutor{service: service, lookback: lookback, limit: limit}
}

// Kind identifies the ingestion task
func (e *IngestionExecutor) Kind() fulfillment.TaskKind {
	return fulfillment.TaskIngestion
}

// Execute fetches orders produced inside the lookback window
func (e *IngestionExecutor) Execute(ctx context.Context) (*appsync.RunSummary, error) {
	since := time.Now().Add(-e.lookback)
	return e.service.Ingest(ctx, since, e.limit)
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

// UploadExecutor drains one batch from the pending order queue
type UploadExecutor struct {
	service   *appsync.UploadService
	batchSize int
}

// NewUploadExecutor creates the executor for the upload task
func NewUploadExecutor(service *appsync.UploadService, batchSize int) *UploadExecutor {
	return &UploadExecutor{service: service, batchSize: batchSize}
}

// Kind identifies the upload task
func (e *UploadExecutor) Kind() fulfillment.TaskKind {
	return fulfillment.TaskUpload
}

// Execute uploads one batch of pending orders, oldest first
func (e *UploadExecutor) Execute(ctx context.Context) (*appsync.RunSummary, error) {
	return e.service.ProcessPending(ctx, e.batchSize)
}

// ---------------------------------------------------------------------------
// Status Sync
// ---------------------------------------------------------------------------

// StatusSyncExecutor polls the provider for shipment and cancellation
// events inside a sliding window
type StatusSyncExecutor struct {
	service  *appsync.StatusSyncService
	lookback time.Duration
}

// NewStatusSyncExecutor creates the executor for the status-sync task
func NewStatusSyncExecutor(service *appsync.StatusSyncService, lookback time.Duration) *StatusSyncExecutor {
	if lookback <= 0 {
		lookback = DefaultStatusSyncLookback
	}
	return &StatusSyncExecutor{service: service, lookback: lookback}
}

// Kind identifies the status-sync task
func (e *StatusSyncExecutor) Kind() fulfillment.TaskKind {
	return fulfillment.TaskStatusSync
}

// Execute applies every provider change inside the lookback window
func (e *StatusSyncExecutor) Execute(ctx context.Context) (*appsync.RunSummary, error) {
	to := time.Now()
	return e.service.SyncWindow(ctx, to.Add(-e.lookback), to)
}

// ---------------------------------------------------------------------------
// Lot Sync
// ---------------------------------------------------------------------------

// LotSyncExecutor sweeps uploaded lines whose lot drifted from the active
// lot. The sweep is the safety net behind the event-driven path.
type LotSyncExecutor struct {
	service *appsync.LotSyncService
}

// NewLotSyncExecutor creates the executor for the lot-sync task
func NewLotSyncExecutor(service *appsync.LotSyncService) *LotSyncExecutor {
	return &LotSyncExecutor{service: service}
}

// Kind identifies the lot-sync task
func (e *LotSyncExecutor) Kind() fulfillment.TaskKind {
	return fulfillment.TaskLotSync
}

// Execute re-targets every drifted uploaded line
func (e *LotSyncExecutor) Execute(ctx context.Context) (*appsync.RunSummary, error) {
	return e.service.Sweep(ctx)
}

// ---------------------------------------------------------------------------
// Duplicate Scan
// ---------------------------------------------------------------------------

// DuplicateScanExecutor groups remote line records and resolves duplicate
// pairs inside a sliding window
type DuplicateScanExecutor struct {
	service  *appsync.DuplicateResolver
	lookback time.Duration
}

// NewDuplicateScanExecutor creates the executor for the duplicate-scan task
func NewDuplicateScanExecutor(service *appsync.DuplicateResolver, lookback time.Duration) *DuplicateScanExecutor {
	if lookback <= 0 {
		lookback = DefaultDuplicateScanLookback
	}
	return &DuplicateScanExecutor{service: service, lookback: lookback}
}

// Kind identifies the duplicate-scan task
func (e *DuplicateScanExecutor) Kind() fulfillment.TaskKind {
	return fulfillment.TaskDuplicateScan
}

// Execute scans the lookback window for duplicate pairs
func (e *DuplicateScanExecutor) Execute(ctx context.Context) (*appsync.RunSummary, error) {
	to := time.Now()
	return e.service.ScanWindow(ctx, to.Add(-e.lookback), to)
}

// ---------------------------------------------------------------------------
// Ledger Refresh
// ---------------------------------------------------------------------------

// LedgerRefreshExecutor recomputes stock positions and weekly averages for
// every SKU the ledger knows
type LedgerRefreshExecutor struct {
	service *appsync.LedgerRefreshService
}

// NewLedgerRefreshExecutor creates the executor for the ledger-refresh task
func NewLedgerRefreshExecutor(service *appsync.LedgerRefreshService) *LedgerRefreshExecutor {
	return &LedgerRefreshExecutor{service: service}
}

// Kind identifies the ledger-refresh task
func (e *LedgerRefreshExecutor) Kind() fulfillment.TaskKind {
	return fulfillment.TaskLedgerRefresh
}

// Execute replays the ledger for every known SKU
func (e *LedgerRefreshExecutor) Execute(ctx context.Context) (*appsync.RunSummary, error) {
	return e.service.Refresh(ctx)
}

// Interface checks
var (
	_ TaskExecutor = (*IngestionExecutor)(nil)
	_ TaskExecutor = (*UploadExecutor)(nil)
	_ TaskExecutor = (*StatusSyncExecutor)(nil)
	_ TaskExecutor = (*LotSyncExecutor)(nil)
	_ TaskExecutor = (*DuplicateScanExecutor)(nil)
	_ TaskExecutor = (*LedgerRefreshExecutor)(nil)
)
