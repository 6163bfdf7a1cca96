// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics provides metrics for the fulfillment pipeline.
// It tracks remote provider calls, order uploads, duplicate resolution,
// ledger replays and scheduled task runs.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	remoteCallsTotal       *Counter
	remoteCallRetriesTotal *Counter
	uploadsTotal           *Counter
	duplicatesTotal        *Counter
	taskRunsTotal          *Counter

	// Histogram metrics (distributions)
	rateLimitWaitSeconds *Histogram
	ledgerReplaySeconds  *Histogram

	// Gauge metrics (point-in-time values)
	ordersPending *Gauge
	alertsOpen    *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	queueProvider QueueMetricsProvider
}

// QueueMetricsProvider provides pipeline backlog data for periodic metrics
// collection. This interface allows the telemetry layer to query pipeline
// state without depending on the repositories directly.
type QueueMetricsProvider interface {
	// GetPendingOrderCount returns the number of orders waiting for upload
	GetPendingOrderCount(ctx context.Context) (int64, error)

	// GetOpenAlertCount returns the number of unresolved duplicate alerts
	GetOpenAlertCount(ctx context.Context) (int64, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	QueueProvider   QueueMetricsProvider
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		queueProvider: cfg.QueueProvider,
	}

	// Initialize counter metrics
	var err error

	// Remote client metrics
	sm.remoteCallsTotal, err = NewCounter(
		cfg.Meter,
		"oms_remote_calls_total",
		"Total number of remote provider calls",
		"{calls}",
	)
	if err != nil {
		return nil, err
	}

	sm.remoteCallRetriesTotal, err = NewCounter(
		cfg.Meter,
		"oms_remote_call_retries_total",
		"Total number of remote call retry attempts",
		"{retries}",
	)
	if err != nil {
		return nil, err
	}

	// Pipeline metrics
	sm.uploadsTotal, err = NewCounter(
		cfg.Meter,
		"oms_uploads_total",
		"Total number of order upload outcomes",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	sm.duplicatesTotal, err = NewCounter(
		cfg.Meter,
		"oms_duplicates_total",
		"Total number of duplicate pair resolutions",
		"{pairs}",
	)
	if err != nil {
		return nil, err
	}

	sm.taskRunsTotal, err = NewCounter(
		cfg.Meter,
		"oms_task_runs_total",
		"Total number of scheduled task runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	// Histogram metrics
	sm.rateLimitWaitSeconds, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "oms_rate_limit_wait_seconds",
		Description: "Time spent waiting for a rate limit slot",
		Unit:        "s",
		Boundaries:  []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
	if err != nil {
		return nil, err
	}

	sm.ledgerReplaySeconds, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "oms_ledger_replay_seconds",
		Description: "Duration of full ledger replays",
		Unit:        "s",
	})
	if err != nil {
		return nil, err
	}

	// Backlog gauge metrics
	sm.ordersPending, err = NewGauge(
		cfg.Meter,
		"oms_orders_pending",
		"Number of orders waiting for upload",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	sm.alertsOpen, err = NewGauge(
		cfg.Meter,
		"oms_alerts_open",
		"Number of open duplicate alerts",
		"{alerts}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Remote Client Metrics
// =============================================================================

// CallOutcome classifies the final result of a remote call for metrics
// labeling.
type CallOutcome string

const (
	CallOutcomeSuccess   CallOutcome = "success"
	CallOutcomeTransient CallOutcome = "transient"
	CallOutcomePermanent CallOutcome = "permanent"
	CallOutcomeNotFound  CallOutcome = "not_found"
)

// RecordRemoteCall records one completed remote provider call.
// This should be called by the client after the final attempt.
func (sm *SyncMetrics) RecordRemoteCall(ctx context.Context, op string, outcome CallOutcome) {
	sm.remoteCallsTotal.Inc(ctx,
		AttrCallOp.String(op),
		AttrCallOutcome.String(string(outcome)),
	)
}

// RecordRemoteRetries records retry attempts beyond the first for one call.
func (sm *SyncMetrics) RecordRemoteRetries(ctx context.Context, op string, retries int64) {
	if retries <= 0 {
		return
	}
	sm.remoteCallRetriesTotal.Add(ctx, retries,
		AttrCallOp.String(op),
	)
}

// RecordRateLimitWait records how long a call waited for a budget slot.
func (sm *SyncMetrics) RecordRateLimitWait(ctx context.Context, wait time.Duration) {
	sm.rateLimitWaitSeconds.RecordDuration(ctx, wait)
}

// =============================================================================
// Pipeline Metrics
// =============================================================================

// UploadResult classifies how an order upload ended for metrics labeling.
type UploadResult string

const (
	UploadResultCreated    UploadResult = "created"
	UploadResultAdopted    UploadResult = "adopted"
	UploadResultSelfHealed UploadResult = "self_healed"
	UploadResultFailed     UploadResult = "failed"
	UploadResultDeferred   UploadResult = "deferred"
)

// RecordUpload records one order upload outcome.
func (sm *SyncMetrics) RecordUpload(ctx context.Context, result UploadResult) {
	sm.uploadsTotal.Inc(ctx,
		AttrUploadResult.String(string(result)),
	)
}

// DuplicateResolution classifies how a duplicate pair was resolved for
// metrics labeling.
type DuplicateResolution string

const (
	ResolutionDeleted      DuplicateResolution = "deleted"
	ResolutionAlerted      DuplicateResolution = "alerted"
	ResolutionExcluded     DuplicateResolution = "excluded"
	ResolutionAutoResolved DuplicateResolution = "auto_resolved"
	ResolutionDeferred     DuplicateResolution = "deferred"
)

// RecordDuplicate records one duplicate pair resolution.
func (sm *SyncMetrics) RecordDuplicate(ctx context.Context, resolution DuplicateResolution) {
	sm.duplicatesTotal.Inc(ctx,
		AttrResolution.String(string(resolution)),
	)
}

// RecordLedgerReplay records the duration of a full ledger replay.
func (sm *SyncMetrics) RecordLedgerReplay(ctx context.Context, elapsed time.Duration) {
	sm.ledgerReplaySeconds.RecordDuration(ctx, elapsed)
}

// RecordTaskRun records one scheduled task run with its outcome.
func (sm *SyncMetrics) RecordTaskRun(ctx context.Context, task, outcome string) {
	sm.taskRunsTotal.Inc(ctx,
		AttrTask.String(task),
		AttrCallOutcome.String(outcome),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of backlog gauges.
// It collects pipeline metrics every interval (default: 1 minute).
// This is non-blocking - use Stop() to stop collection.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go sm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	sm.collectBacklogMetrics(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic sync metrics collection")
			return
		case <-ticker.C:
			sm.collectBacklogMetrics(ctx)
		}
	}
}

// collectBacklogMetrics collects the backlog gauge metrics.
func (sm *SyncMetrics) collectBacklogMetrics(ctx context.Context) {
	if sm.queueProvider == nil {
		sm.logger.Debug("No queue provider configured, skipping backlog metrics collection")
		return
	}

	pending, err := sm.queueProvider.GetPendingOrderCount(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get pending order count", zap.Error(err))
	} else {
		sm.ordersPending.Record(ctx, pending)
	}

	open, err := sm.queueProvider.GetOpenAlertCount(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get open alert count", zap.Error(err))
	} else {
		sm.alertsOpen.Record(ctx, open)
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// =============================================================================
// Attribute Key Constants
// =============================================================================

// Sync metrics attribute keys not already defined in metrics.go
var (
	AttrCallOp       = attribute.Key("op")
	AttrCallOutcome  = attribute.Key("outcome")
	AttrUploadResult = attribute.Key("result")
	AttrResolution   = attribute.Key("resolution")
	AttrTask         = attribute.Key("task")
)
