package fulfillment

import (
	"encoding/json"
	"time"

	"github.com/oms/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Alert Statuses
// ---------------------------------------------------------------------------

// DuplicateAlertStatus represents the review state of a duplicate alert
type DuplicateAlertStatus string

const (
	// AlertStatusOpen indicates the alert awaits resolution
	AlertStatusOpen DuplicateAlertStatus = "OPEN"
	// AlertStatusExcluded indicates an operator permanently excluded the pair
	AlertStatusExcluded DuplicateAlertStatus = "EXCLUDED"
	// AlertStatusAutoResolved indicates a later scan found the condition gone
	AlertStatusAutoResolved DuplicateAlertStatus = "AUTO_RESOLVED"
	// AlertStatusManuallyDeleted indicates an operator confirmed deletion of
	// the surplus remote records
	AlertStatusManuallyDeleted DuplicateAlertStatus = "MANUALLY_DELETED"
)

// IsValid returns true if the status is valid
func (s DuplicateAlertStatus) IsValid() bool {
	switch s {
	case AlertStatusOpen, AlertStatusExcluded, AlertStatusAutoResolved, AlertStatusManuallyDeleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of DuplicateAlertStatus
func (s DuplicateAlertStatus) String() string {
	return string(s)
}

// IsResolved returns true if the alert left the open state
func (s DuplicateAlertStatus) IsResolved() bool {
	return s.IsValid() && s != AlertStatusOpen
}

// ---------------------------------------------------------------------------
// DuplicateAlert Entity
// ---------------------------------------------------------------------------

// DuplicateAlert records duplicate remote records for one (order number,
// base SKU) pair that the resolver could not clean up automatically, because
// the surplus records are already shipped or cancelled. Resolution is a
// one-way move out of the open state; resolved alerts are kept for audit.
type DuplicateAlert struct {
	shared.BaseEntity
	OrderNumber   string               `gorm:"type:varchar(64);not null;index:idx_dup_alerts_pair,priority:1"`
	BaseSKU       string               `gorm:"type:varchar(64);not null;index:idx_dup_alerts_pair,priority:2"`
	RemoteItemIDs string               `gorm:"type:jsonb"` // Provider item ids in the conflict
	KeptItemID    string               `gorm:"type:varchar(64)"`
	Status        DuplicateAlertStatus `gorm:"type:varchar(20);not null;index:idx_dup_alerts_status"`
	Detail        string               `gorm:"type:varchar(500)"`
	ResolvedAt    *time.Time
}

// TableName returns the table name for GORM
func (DuplicateAlert) TableName() string {
	return "duplicate_alerts"
}

// NewDuplicateAlert creates an open alert for a duplicate pair
func NewDuplicateAlert(orderNumber, baseSKU string, remoteItemIDs []string, keptItemID, detail string) (*DuplicateAlert, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if baseSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Base SKU cannot be empty")
	}
	if len(remoteItemIDs) < 2 {
		return nil, shared.NewDomainError("INVALID_ALERT", "A duplicate alert needs at least two remote items")
	}

	alert := &DuplicateAlert{
		BaseEntity:  shared.NewBaseEntity(),
		OrderNumber: orderNumber,
		BaseSKU:     baseSKU,
		KeptItemID:  keptItemID,
		Status:      AlertStatusOpen,
		Detail:      detail,
	}
	if err := alert.SetRemoteItemIDs(remoteItemIDs); err != nil {
		return nil, err
	}
	return alert, nil
}

// SetRemoteItemIDs stores the conflicting provider item ids as JSON
func (a *DuplicateAlert) SetRemoteItemIDs(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return shared.NewDomainError("INVALID_ALERT", "Cannot encode remote item ids")
	}
	a.RemoteItemIDs = string(raw)
	return nil
}

// GetRemoteItemIDs returns the conflicting provider item ids
func (a *DuplicateAlert) GetRemoteItemIDs() []string {
	var ids []string
	if a.RemoteItemIDs == "" {
		return ids
	}
	_ = json.Unmarshal([]byte(a.RemoteItemIDs), &ids)
	return ids
}

// MarkExcluded resolves the alert because the pair was permanently excluded
func (a *DuplicateAlert) MarkExcluded() error {
	return a.resolve(AlertStatusExcluded)
}

// MarkAutoResolved resolves the alert because a re-scan no longer finds the
// duplicate condition
func (a *DuplicateAlert) MarkAutoResolved() error {
	return a.resolve(AlertStatusAutoResolved)
}

// MarkManuallyDeleted resolves the alert after an operator confirmed the
// surplus remote records were deleted
func (a *DuplicateAlert) MarkManuallyDeleted() error {
	return a.resolve(AlertStatusManuallyDeleted)
}

func (a *DuplicateAlert) resolve(status DuplicateAlertStatus) error {
	if a.Status != AlertStatusOpen {
		return shared.ErrInvalidState
	}
	now := time.Now()
	a.Status = status
	a.ResolvedAt = &now
	a.UpdatedAt = now
	return nil
}

// ---------------------------------------------------------------------------
// MismatchAlert Entity
// ---------------------------------------------------------------------------

// MismatchKind classifies what drifted between two records of truth
type MismatchKind string

const (
	// MismatchKindLot indicates a line carries a lot other than the active one
	MismatchKindLot MismatchKind = "LOT"
	// MismatchKindDeduction indicates both a manual and a remote-reported
	// deduction exist for one order; the ledger applied one and flagged the
	// other
	MismatchKindDeduction MismatchKind = "DEDUCTION"
)

// IsValid returns true if the kind is valid
func (k MismatchKind) IsValid() bool {
	return k == MismatchKindLot || k == MismatchKindDeduction
}

// String returns the string representation of MismatchKind
func (k MismatchKind) String() string {
	return string(k)
}

// MismatchAlert records a data inconsistency that is surfaced instead of
// auto-corrected: a stale lot on a line that cannot be rewritten, or a
// superseded deduction found during ledger replay. Expected holds the value
// the system considers authoritative, Found the one that drifted.
type MismatchAlert struct {
	shared.BaseEntity
	Kind         MismatchKind `gorm:"type:varchar(20);not null;index:idx_mismatch_alerts_kind"`
	OrderNumber  string       `gorm:"type:varchar(64);not null;index:idx_mismatch_alerts_pair,priority:1"`
	BaseSKU      string       `gorm:"type:varchar(64);not null;index:idx_mismatch_alerts_pair,priority:2"`
	Expected     string       `gorm:"type:varchar(64)"`
	Found        string       `gorm:"type:varchar(64)"`
	Detail       string       `gorm:"type:varchar(500)"`
	Acknowledged bool         `gorm:"not null;default:false;index:idx_mismatch_alerts_ack"`
}

// TableName returns the table name for GORM
func (MismatchAlert) TableName() string {
	return "mismatch_alerts"
}

// NewMismatchAlert creates an unacknowledged mismatch alert
func NewMismatchAlert(kind MismatchKind, orderNumber, baseSKU, expected, found, detail string) (*MismatchAlert, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ALERT", "Invalid mismatch kind")
	}
	if baseSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Base SKU cannot be empty")
	}

	return &MismatchAlert{
		BaseEntity:  shared.NewBaseEntity(),
		Kind:        kind,
		OrderNumber: orderNumber,
		BaseSKU:     baseSKU,
		Expected:    expected,
		Found:       found,
		Detail:      detail,
	}, nil
}

// Acknowledge marks the alert as reviewed by an operator
func (a *MismatchAlert) Acknowledge() {
	a.Acknowledged = true
	a.Touch()
}

// ---------------------------------------------------------------------------
// ExclusionRecord Entity
// ---------------------------------------------------------------------------

// ExclusionRecord permanently removes one (order number, base SKU) pair from
// duplicate processing. The duplicate scan checks exclusions before any other
// work for a pair, so an excluded pair never alerts and never has records
// deleted again. Exclusions are irreversible: no update or delete operation
// exists for them anywhere in the system.
type ExclusionRecord struct {
	shared.BaseEntity
	OrderNumber string `gorm:"type:varchar(64);not null;uniqueIndex:ux_exclusions_order_sku,priority:1"`
	BaseSKU     string `gorm:"type:varchar(64);not null;uniqueIndex:ux_exclusions_order_sku,priority:2"`
	Reason      string `gorm:"type:varchar(500);not null"`
	CreatedBy   string `gorm:"type:varchar(64)"`
}

// TableName returns the table name for GORM
func (ExclusionRecord) TableName() string {
	return "exclusion_records"
}

// NewExclusionRecord creates a permanent exclusion for a pair
func NewExclusionRecord(orderNumber, baseSKU, reason, createdBy string) (*ExclusionRecord, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if baseSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Base SKU cannot be empty")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_EXCLUSION", "An exclusion needs a reason")
	}

	return &ExclusionRecord{
		BaseEntity:  shared.NewBaseEntity(),
		OrderNumber: orderNumber,
		BaseSKU:     baseSKU,
		Reason:      reason,
		CreatedBy:   createdBy,
	}, nil
}
