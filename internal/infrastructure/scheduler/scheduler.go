package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appsync "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

const (
	// DefaultTaskTimeout is the per-run deadline when none is configured
	DefaultTaskTimeout = 10 * time.Minute

	// DefaultUnhealthyThreshold is how many consecutive timeouts latch a
	// task unhealthy when no threshold is configured
	DefaultUnhealthyThreshold = 3

	// DefaultTickInterval seeds the state row of a task kind that has no
	// configured interval
	DefaultTickInterval = 5 * time.Minute

	// maxRunDetail caps the persisted detail text of one run
	maxRunDetail = 500
)

// Config holds the scheduling parameters. Intervals seed the task state
// rows on first start; after that the persisted state rows are
// authoritative, so enable flags survive restarts.
type Config struct {
	// TaskTimeout is the deadline applied to every task run
	TaskTimeout time.Duration

	// UnhealthyThreshold is how many consecutive timeouts latch a task
	// unhealthy
	UnhealthyThreshold int

	// Intervals maps each task kind to its tick interval. Kinds without
	// an entry fall back to DefaultTickInterval.
	Intervals map[fulfillment.TaskKind]time.Duration
}

// DefaultConfig returns the scheduling parameters used when nothing is
// configured
func DefaultConfig() Config {
	return Config{
		TaskTimeout:        DefaultTaskTimeout,
		UnhealthyThreshold: DefaultUnhealthyThreshold,
		Intervals: map[fulfillment.TaskKind]time.Duration{
			fulfillment.TaskIngestion:     5 * time.Minute,
			fulfillment.TaskUpload:        2 * time.Minute,
			fulfillment.TaskStatusSync:    5 * time.Minute,
			fulfillment.TaskLotSync:       10 * time.Minute,
			fulfillment.TaskDuplicateScan: 30 * time.Minute,
			fulfillment.TaskLedgerRefresh: 168 * time.Hour,
		},
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("%w: task timeout must be positive", ErrInvalidConfig)
	}
	if c.UnhealthyThreshold < 1 {
		return fmt.Errorf("%w: unhealthy threshold must be at least 1", ErrInvalidConfig)
	}
	for kind, interval := range c.Intervals {
		if !kind.IsValid() {
			return fmt.Errorf("%w: unknown task kind %q", ErrInvalidConfig, string(kind))
		}
		if interval <= 0 {
			return fmt.Errorf("%w: interval for %s must be positive", ErrInvalidConfig, kind)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// TaskScheduler
// ---------------------------------------------------------------------------

// TaskScheduler drives the periodic tasks. Each registered task kind runs
// in its own goroutine on its own ticker, so one slow or stuck task never
// delays the others. Every run leaves a TaskRun row and folds its outcome
// into the task's state row.
type TaskScheduler struct {
	config    Config
	executors map[fulfillment.TaskKind]TaskExecutor
	states    fulfillment.TaskStateRepository
	runs      fulfillment.TaskRunRepository
	logger    *zap.Logger
	metrics   *telemetry.SyncMetrics

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  map[fulfillment.TaskKind]bool
}

// NewTaskScheduler creates a new task scheduler. Executors are registered
// separately before Start.
func NewTaskScheduler(
	config Config,
	states fulfillment.TaskStateRepository,
	runs fulfillment.TaskRunRepository,
	logger *zap.Logger,
) (*TaskScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TaskScheduler{
		config:    config,
		executors: make(map[fulfillment.TaskKind]TaskExecutor),
		states:    states,
		runs:      runs,
		logger:    logger,
		inFlight:  make(map[fulfillment.TaskKind]bool),
	}, nil
}

// Register adds an executor for its task kind. A second executor for the
// same kind replaces the first. Registration happens before Start.
func (s *TaskScheduler) Register(executor TaskExecutor) {
	s.executors[executor.Kind()] = executor
}

// SetMetrics attaches run outcome metrics
func (s *TaskScheduler) SetMetrics(metrics *telemetry.SyncMetrics) {
	s.metrics = metrics
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start seeds missing task state rows and launches one run loop per
// registered task kind. Starting a running scheduler is a no-op.
func (s *TaskScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.ensureStates(ctx); err != nil {
		cancel()
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}

	for _, kind := range fulfillment.AllTaskKinds() {
		if _, ok := s.executors[kind]; !ok {
			continue
		}
		s.wg.Add(1)
		go s.runLoop(ctx, kind)
	}

	s.logger.Info("Task scheduler started",
		zap.Int("tasks", len(s.executors)),
		zap.Duration("task_timeout", s.config.TaskTimeout),
		zap.Int("unhealthy_threshold", s.config.UnhealthyThreshold),
	)
	return nil
}

// Stop cancels the run loops and waits for in-flight runs to finish or
// the given context to expire
func (s *TaskScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Task scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler has been started
func (s *TaskScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Running returns the task kinds with a run currently in flight
func (s *TaskScheduler) Running() []fulfillment.TaskKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	running := make([]fulfillment.TaskKind, 0, len(s.inFlight))
	for _, kind := range fulfillment.AllTaskKinds() {
		if s.inFlight[kind] {
			running = append(running, kind)
		}
	}
	return running
}

// ---------------------------------------------------------------------------
// Scheduling
// ---------------------------------------------------------------------------

// ensureStates creates a state row for every registered task kind that
// has none yet, seeded from the configured intervals
func (s *TaskScheduler) ensureStates(ctx context.Context) error {
	for _, kind := range fulfillment.AllTaskKinds() {
		if _, ok := s.executors[kind]; !ok {
			continue
		}
		existing, err := s.states.FindByKind(ctx, kind)
		if err != nil {
			return fmt.Errorf("load task state for %s: %w", kind, err)
		}
		if existing != nil {
			continue
		}
		state, err := fulfillment.NewTaskState(kind, s.intervalFor(kind), s.config.TaskTimeout)
		if err != nil {
			return err
		}
		if err := s.states.Save(ctx, state); err != nil {
			return fmt.Errorf("seed task state for %s: %w", kind, err)
		}
		s.logger.Info("Seeded task state",
			zap.String("task", kind.String()),
			zap.Duration("interval", state.Interval()),
		)
	}
	return nil
}

// intervalFor returns the configured tick interval for a task kind
func (s *TaskScheduler) intervalFor(kind fulfillment.TaskKind) time.Duration {
	if interval, ok := s.config.Intervals[kind]; ok && interval > 0 {
		return interval
	}
	return DefaultTickInterval
}

// runLoop ticks one task kind at its persisted interval until the
// scheduler stops
func (s *TaskScheduler) runLoop(ctx context.Context, kind fulfillment.TaskKind) {
	defer s.wg.Done()

	state, err := s.states.FindByKind(ctx, kind)
	if err != nil || state == nil {
		s.logger.Error("Task loop not started, state unavailable",
			zap.String("task", kind.String()),
			zap.Error(err),
		)
		return
	}

	// A state row holding a zero interval must not stall the loop; fall
	// back to the configured value.
	interval := state.Interval()
	if interval <= 0 {
		interval = s.intervalFor(kind)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnTick(ctx, kind)
		}
	}
}

// runOnTick runs one scheduled tick. Disabled tasks skip silently; a
// skipped run row is only written for explicit triggers.
func (s *TaskScheduler) runOnTick(ctx context.Context, kind fulfillment.TaskKind) {
	if !s.tryAcquire(kind) {
		s.logger.Debug("Tick skipped, previous run still in flight",
			zap.String("task", kind.String()),
		)
		return
	}
	defer s.release(kind)

	state, err := s.states.FindByKind(ctx, kind)
	if err != nil || state == nil {
		s.logger.Error("Tick skipped, task state unavailable",
			zap.String("task", kind.String()),
			zap.Error(err),
		)
		return
	}
	if !state.Enabled {
		s.logger.Debug("Tick skipped, task disabled",
			zap.String("task", kind.String()),
		)
		return
	}

	if _, err := s.execute(ctx, kind, state); err != nil {
		s.logger.Error("Task run bookkeeping failed",
			zap.String("task", kind.String()),
			zap.Error(err),
		)
	}
}

// TriggerNow runs one task immediately, outside its schedule, and returns
// the finished run record. Triggering a disabled task records a skipped
// run instead of executing.
func (s *TaskScheduler) TriggerNow(ctx context.Context, kind fulfillment.TaskKind) (*fulfillment.TaskRun, error) {
	if _, ok := s.executors[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, string(kind))
	}
	if !s.IsRunning() {
		return nil, ErrSchedulerNotRunning
	}
	if !s.tryAcquire(kind) {
		return nil, fmt.Errorf("%w: %s", ErrTaskAlreadyRunning, kind)
	}
	defer s.release(kind)

	state, err := s.states.FindByKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load task state for %s: %w", kind, err)
	}
	if state == nil {
		return nil, fmt.Errorf("task state missing for %s", kind)
	}

	if !state.Enabled {
		return s.recordSkipped(ctx, kind, state)
	}

	s.logger.Info("Task triggered manually", zap.String("task", kind.String()))
	return s.execute(ctx, kind, state)
}

// ---------------------------------------------------------------------------
// Run Bookkeeping
// ---------------------------------------------------------------------------

// execute performs one run of a task and persists the run record and the
// updated state. The caller holds the in-flight slot.
func (s *TaskScheduler) execute(ctx context.Context, kind fulfillment.TaskKind, state *fulfillment.TaskState) (*fulfillment.TaskRun, error) {
	run, err := fulfillment.NewTaskRun(kind)
	if err != nil {
		return nil, err
	}

	// Bookkeeping writes use a context that survives run cancellation,
	// so a timed-out or shut-down run still leaves its record.
	saveCtx := context.WithoutCancel(ctx)

	if err := s.runs.Save(saveCtx, run); err != nil {
		s.logger.Warn("Failed to record run start",
			zap.String("task", kind.String()),
			zap.Error(err),
		)
	}

	timeout := state.Timeout()
	if timeout <= 0 {
		timeout = s.config.TaskTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	var summary *appsync.RunSummary
	var execErr error
	// Profiles collected during the run carry the task name.
	telemetry.WithProfilingLabels(runCtx, telemetry.TaskRunLabels(kind.String()), func(c context.Context) {
		summary, execErr = s.executors[kind].Execute(c)
	})
	cancel()

	outcome, detail := classifyOutcome(runCtx, summary, execErr)
	processed, failed := 0, 0
	if summary != nil {
		processed = summary.SuccessCount
		failed = summary.FailedCount
	}
	run.Finish(outcome, detail, processed, failed)

	if err := s.runs.Save(saveCtx, run); err != nil {
		return run, fmt.Errorf("save run record for %s: %w", kind, err)
	}

	wasHealthy := state.Healthy
	state.RecordRun(run.StartedAt, outcome, s.config.UnhealthyThreshold)
	if err := s.states.Save(saveCtx, state); err != nil {
		return run, fmt.Errorf("save task state for %s: %w", kind, err)
	}
	if wasHealthy && !state.Healthy {
		s.logger.Warn("Task latched unhealthy after consecutive timeouts",
			zap.String("task", kind.String()),
			zap.Int("consecutive_timeouts", state.ConsecutiveTimeouts),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordTaskRun(saveCtx, kind.String(), outcome.String())
	}

	s.logger.Info("Task run finished",
		zap.String("task", kind.String()),
		zap.String("outcome", outcome.String()),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
		zap.Duration("duration", run.Duration()),
	)
	return run, nil
}

// recordSkipped writes the run and state records for a disabled task that
// was explicitly triggered
func (s *TaskScheduler) recordSkipped(ctx context.Context, kind fulfillment.TaskKind, state *fulfillment.TaskState) (*fulfillment.TaskRun, error) {
	run, err := fulfillment.NewTaskRun(kind)
	if err != nil {
		return nil, err
	}
	run.Finish(fulfillment.OutcomeSkipped, "task disabled", 0, 0)
	if err := s.runs.Save(ctx, run); err != nil {
		return run, fmt.Errorf("save run record for %s: %w", kind, err)
	}

	state.RecordRun(run.StartedAt, fulfillment.OutcomeSkipped, s.config.UnhealthyThreshold)
	if err := s.states.Save(ctx, state); err != nil {
		return run, fmt.Errorf("save task state for %s: %w", kind, err)
	}

	if s.metrics != nil {
		s.metrics.RecordTaskRun(ctx, kind.String(), fulfillment.OutcomeSkipped.String())
	}

	s.logger.Info("Task trigger skipped, task disabled", zap.String("task", kind.String()))
	return run, nil
}

// tryAcquire claims the in-flight slot for a task kind
func (s *TaskScheduler) tryAcquire(kind fulfillment.TaskKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[kind] {
		return false
	}
	s.inFlight[kind] = true
	return true
}

// release frees the in-flight slot for a task kind
func (s *TaskScheduler) release(kind fulfillment.TaskKind) {
	s.mu.Lock()
	delete(s.inFlight, kind)
	s.mu.Unlock()
}

// classifyOutcome maps one run's result onto a task outcome. A deadline
// hit is a timeout even when the executor wrapped the context error; a
// summary with item failures but no run error is partial.
func classifyOutcome(runCtx context.Context, summary *appsync.RunSummary, execErr error) (fulfillment.TaskOutcome, string) {
	switch {
	case execErr != nil && (errors.Is(execErr, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded)):
		return fulfillment.OutcomeTimeout, truncateDetail(execErr.Error())
	case execErr != nil:
		return fulfillment.OutcomeFailed, truncateDetail(execErr.Error())
	case summary != nil && summary.FailedCount > 0:
		return fulfillment.OutcomePartial, fmt.Sprintf("%d of %d items failed", summary.FailedCount, summary.TotalCount)
	default:
		return fulfillment.OutcomeSuccess, ""
	}
}

// truncateDetail keeps the persisted detail inside its column
func truncateDetail(detail string) string {
	if len(detail) <= maxRunDetail {
		return detail
	}
	return detail[:maxRunDetail-3] + "..."
}
