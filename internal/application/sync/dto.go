package sync

import (
	"time"

	"github.com/oms/backend/internal/domain/fulfillment"
)

// RunSummary is the result of one task run. Per-item failures are collected
// here instead of aborting the batch, so a single bad order never blocks
// the rest of a tick's work.
type RunSummary struct {
	// TotalCount is the number of items the run looked at
	TotalCount int
	// SuccessCount is the number of items fully processed
	SuccessCount int
	// SkippedCount is the number of items deliberately left for a later
	// tick (transient remote failures, already-processed events,
	// excluded pairs)
	SkippedCount int
	// FailedCount is the number of items that failed permanently in this
	// run
	FailedCount int
	// FailedItems describes each failure
	FailedItems []ItemFailure
	// FinishedAt is when the run completed
	FinishedAt time.Time
}

// ItemFailure describes one failed item in a run
type ItemFailure struct {
	// ItemID identifies the failed item (order number, remote item id,
	// base SKU, whichever the task works in)
	ItemID string
	// Reason is the error description
	Reason string
}

// NewRunSummary creates an empty summary
func NewRunSummary() *RunSummary {
	return &RunSummary{FailedItems: make([]ItemFailure, 0)}
}

// Success counts an item as fully processed
func (r *RunSummary) Success() {
	r.TotalCount++
	r.SuccessCount++
}

// Skip counts an item as left for a later tick
func (r *RunSummary) Skip() {
	r.TotalCount++
	r.SkippedCount++
}

// Fail counts an item as permanently failed in this run
func (r *RunSummary) Fail(itemID string, err error) {
	r.TotalCount++
	r.FailedCount++
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	r.FailedItems = append(r.FailedItems, ItemFailure{ItemID: itemID, Reason: reason})
}

// Merge folds another summary into this one
func (r *RunSummary) Merge(other *RunSummary) {
	if other == nil {
		return
	}
	r.TotalCount += other.TotalCount
	r.SuccessCount += other.SuccessCount
	r.SkippedCount += other.SkippedCount
	r.FailedCount += other.FailedCount
	r.FailedItems = append(r.FailedItems, other.FailedItems...)
}

// Finish stamps the completion time and returns the summary for chaining
func (r *RunSummary) Finish() *RunSummary {
	r.FinishedAt = time.Now()
	return r
}

// Outcome maps the summary to a task outcome: failed when nothing
// succeeded and something failed, partial when both happened, success
// otherwise. Skipped items do not degrade the outcome.
func (r *RunSummary) Outcome() fulfillment.TaskOutcome {
	switch {
	case r.FailedCount > 0 && r.SuccessCount == 0:
		return fulfillment.OutcomeFailed
	case r.FailedCount > 0:
		return fulfillment.OutcomePartial
	default:
		return fulfillment.OutcomeSuccess
	}
}
