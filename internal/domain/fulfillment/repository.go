package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"github.com/oms/backend/internal/domain/shared"
)

// TrackingRepository defines the interface for item tracking persistence.
// Save must surface the unique-pair constraint violation as
// shared.ErrAlreadyExists so the upload engine can treat a lost insert race
// as already uploaded.
type TrackingRepository interface {
	// Save creates or updates a tracking row
	Save(ctx context.Context, tracking *ItemTracking) error

	// FindByOrderNumber returns all tracking rows for an order
	FindByOrderNumber(ctx context.Context, orderNumber string) ([]ItemTracking, error)

	// FindByPair returns the tracking row for one (order number, base SKU)
	// pair, or nil when none exists
	FindByPair(ctx context.Context, orderNumber, baseSKU string) (*ItemTracking, error)

	// FindByRemoteItemID returns the tracking row for a provider item id,
	// or nil when none exists
	FindByRemoteItemID(ctx context.Context, remoteItemID string) (*ItemTracking, error)

	// FindUploadedBySKU returns rows still in uploaded status carrying the
	// base SKU. This is the lot-sync scope: shipped rows are never returned.
	FindUploadedBySKU(ctx context.Context, baseSKU string) ([]ItemTracking, error)
}

// DuplicateAlertRepository defines the interface for duplicate alert
// persistence
type DuplicateAlertRepository interface {
	// Save creates or updates an alert
	Save(ctx context.Context, alert *DuplicateAlert) error

	// FindByID returns an alert by id
	FindByID(ctx context.Context, id uuid.UUID) (*DuplicateAlert, error)

	// FindOpenByPair returns the open alert for a pair, or nil when none
	// exists. The scan updates an existing open alert instead of stacking
	// new ones.
	FindOpenByPair(ctx context.Context, orderNumber, baseSKU string) (*DuplicateAlert, error)

	// FindByStatus returns alerts in a status, newest first
	FindByStatus(ctx context.Context, status DuplicateAlertStatus, filter shared.Filter) ([]DuplicateAlert, int64, error)
}

// MismatchAlertRepository defines the interface for mismatch alert
// persistence
type MismatchAlertRepository interface {
	// Save creates or updates an alert
	Save(ctx context.Context, alert *MismatchAlert) error

	// FindByID returns an alert by id
	FindByID(ctx context.Context, id uuid.UUID) (*MismatchAlert, error)

	// FindUnacknowledged returns alerts not yet reviewed, newest first
	FindUnacknowledged(ctx context.Context, filter shared.Filter) ([]MismatchAlert, int64, error)

	// ExistsOpen reports whether an unacknowledged alert of the kind exists
	// for the pair, so replayed conflicts do not stack duplicate alerts
	ExistsOpen(ctx context.Context, kind MismatchKind, orderNumber, baseSKU string) (bool, error)
}

// ExclusionRepository defines the interface for exclusion persistence.
// Exclusions are permanent: the interface deliberately has no update or
// delete.
type ExclusionRepository interface {
	// Save writes a new exclusion. A second exclusion for the same pair
	// surfaces shared.ErrAlreadyExists.
	Save(ctx context.Context, record *ExclusionRecord) error

	// Exists reports whether the pair is excluded
	Exists(ctx context.Context, orderNumber, baseSKU string) (bool, error)

	// FindByPair returns the exclusion for a pair, or nil when none exists
	FindByPair(ctx context.Context, orderNumber, baseSKU string) (*ExclusionRecord, error)

	// FindAll returns exclusions, newest first
	FindAll(ctx context.Context, filter shared.Filter) ([]ExclusionRecord, int64, error)
}

// TaskStateRepository defines the interface for task state persistence
type TaskStateRepository interface {
	// Save creates or updates a task state
	Save(ctx context.Context, state *TaskState) error

	// FindByKind returns the state row for a task kind, or nil when none
	// exists yet
	FindByKind(ctx context.Context, kind TaskKind) (*TaskState, error)

	// FindAll returns the state rows for every known task kind
	FindAll(ctx context.Context) ([]TaskState, error)
}

// TaskRunRepository defines the interface for task run persistence
type TaskRunRepository interface {
	// Save creates or updates a run record
	Save(ctx context.Context, run *TaskRun) error

	// FindRecentByKind returns the latest runs for a task kind, newest
	// first
	FindRecentByKind(ctx context.Context, kind TaskKind, limit int) ([]TaskRun, error)
}
