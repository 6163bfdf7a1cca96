package fulfillment

import (
	"time"

	"github.com/oms/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Task Kinds and Outcomes
// ---------------------------------------------------------------------------

// TaskKind represents one of the periodic sync tasks
type TaskKind string

const (
	// TaskIngestion pulls new orders from the upstream source into the store
	TaskIngestion TaskKind = "INGESTION"
	// TaskUpload uploads pending orders to the provider
	TaskUpload TaskKind = "UPLOAD"
	// TaskStatusSync polls the provider for shipment and cancellation events
	TaskStatusSync TaskKind = "STATUS_SYNC"
	// TaskLotSync re-targets uploaded lines after an active-lot change
	TaskLotSync TaskKind = "LOT_SYNC"
	// TaskDuplicateScan detects and resolves duplicate remote records
	TaskDuplicateScan TaskKind = "DUPLICATE_SCAN"
	// TaskLedgerRefresh recomputes stock positions and weekly averages
	TaskLedgerRefresh TaskKind = "LEDGER_REFRESH"
)

// AllTaskKinds returns every task kind in scheduling order
func AllTaskKinds() []TaskKind {
	return []TaskKind{
		TaskIngestion,
		TaskUpload,
		TaskStatusSync,
		TaskLotSync,
		TaskDuplicateScan,
		TaskLedgerRefresh,
	}
}

// IsValid returns true if the task kind is valid
func (k TaskKind) IsValid() bool {
	switch k {
	case TaskIngestion, TaskUpload, TaskStatusSync,
		TaskLotSync, TaskDuplicateScan, TaskLedgerRefresh:
		return true
	default:
		return false
	}
}

// String returns the string representation of TaskKind
func (k TaskKind) String() string {
	return string(k)
}

// TaskOutcome represents the result of one task run
type TaskOutcome string

const (
	// OutcomeSuccess indicates every item processed cleanly
	OutcomeSuccess TaskOutcome = "SUCCESS"
	// OutcomePartial indicates some items failed; failures never abort a run
	OutcomePartial TaskOutcome = "PARTIAL"
	// OutcomeFailed indicates the run itself failed before processing items
	OutcomeFailed TaskOutcome = "FAILED"
	// OutcomeTimeout indicates the run exceeded its deadline
	OutcomeTimeout TaskOutcome = "TIMEOUT"
	// OutcomeSkipped indicates the task was triggered while disabled
	OutcomeSkipped TaskOutcome = "SKIPPED"
)

// IsValid returns true if the outcome is valid
func (o TaskOutcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeFailed, OutcomeTimeout, OutcomeSkipped:
		return true
	default:
		return false
	}
}

// String returns the string representation of TaskOutcome
func (o TaskOutcome) String() string {
	return string(o)
}

// ---------------------------------------------------------------------------
// TaskRun Entity
// ---------------------------------------------------------------------------

// TaskRun records one execution of a periodic task, including failures.
// Every tick writes a run, so the run history is the audit trail for the
// scheduler.
type TaskRun struct {
	shared.BaseEntity
	Task           TaskKind    `gorm:"type:varchar(20);not null;index:idx_task_runs_task_time,priority:1"`
	StartedAt      time.Time   `gorm:"not null;index:idx_task_runs_task_time,priority:2"`
	FinishedAt     *time.Time  ``
	Outcome        TaskOutcome `gorm:"type:varchar(20);not null"`
	Detail         string      `gorm:"type:varchar(500)"`
	ItemsProcessed int         `gorm:"not null;default:0"`
	ItemsFailed    int         `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (TaskRun) TableName() string {
	return "task_runs"
}

// NewTaskRun starts a run record for a task
func NewTaskRun(kind TaskKind) (*TaskRun, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_TASK", "Invalid task kind")
	}
	return &TaskRun{
		BaseEntity: shared.NewBaseEntity(),
		Task:       kind,
		StartedAt:  time.Now(),
	}, nil
}

// Finish completes the run with its outcome and counters
func (r *TaskRun) Finish(outcome TaskOutcome, detail string, processed, failed int) {
	now := time.Now()
	r.FinishedAt = &now
	r.Outcome = outcome
	r.Detail = detail
	r.ItemsProcessed = processed
	r.ItemsFailed = failed
	r.UpdatedAt = now
}

// Duration returns how long the run took, zero while still running
func (r *TaskRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ---------------------------------------------------------------------------
// TaskState Entity
// ---------------------------------------------------------------------------

// TaskState holds the scheduling state of one task kind: its enable flag,
// interval, and health. A task that times out repeatedly is latched
// unhealthy instead of retrying forever; any completed run restores health.
type TaskState struct {
	shared.BaseEntity
	Task                TaskKind    `gorm:"type:varchar(20);not null;uniqueIndex:ux_task_states_task"`
	Enabled             bool        `gorm:"not null;default:true"`
	IntervalSeconds     int         `gorm:"not null"`
	TimeoutSeconds      int         `gorm:"not null"`
	LastRunAt           *time.Time  ``
	LastOutcome         TaskOutcome `gorm:"type:varchar(20)"`
	ConsecutiveTimeouts int         `gorm:"not null;default:0"`
	Healthy             bool        `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (TaskState) TableName() string {
	return "task_states"
}

// NewTaskState creates an enabled, healthy state row for a task
func NewTaskState(kind TaskKind, interval, timeout time.Duration) (*TaskState, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_TASK", "Invalid task kind")
	}
	if interval <= 0 {
		return nil, shared.NewDomainError("INVALID_TASK", "Task interval must be positive")
	}
	if timeout <= 0 {
		return nil, shared.NewDomainError("INVALID_TASK", "Task timeout must be positive")
	}

	return &TaskState{
		BaseEntity:      shared.NewBaseEntity(),
		Task:            kind,
		Enabled:         true,
		IntervalSeconds: int(interval / time.Second),
		TimeoutSeconds:  int(timeout / time.Second),
		Healthy:         true,
	}, nil
}

// Interval returns the scheduling interval
func (s *TaskState) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Timeout returns the per-run deadline
func (s *TaskState) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Enable turns the task on
func (s *TaskState) Enable() {
	s.Enabled = true
	s.Touch()
}

// Disable turns the task off. Disabled tasks do not run on their ticks.
func (s *TaskState) Disable() {
	s.Enabled = false
	s.Touch()
}

// RecordRun folds one run outcome into the state. Timeouts accumulate and
// latch the state unhealthy once they reach unhealthyAfter in a row; any
// completed run resets the counter and restores health. Skipped runs only
// record the outcome.
func (s *TaskState) RecordRun(at time.Time, outcome TaskOutcome, unhealthyAfter int) {
	s.LastOutcome = outcome
	if outcome == OutcomeSkipped {
		s.Touch()
		return
	}
	s.LastRunAt = &at
	switch outcome {
	case OutcomeTimeout:
		s.ConsecutiveTimeouts++
		if unhealthyAfter > 0 && s.ConsecutiveTimeouts >= unhealthyAfter {
			s.Healthy = false
		}
	default:
		s.ConsecutiveTimeouts = 0
		s.Healthy = true
	}
	s.Touch()
}
