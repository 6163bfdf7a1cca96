// Package sync contains the engine that keeps local orders and the remote
// fulfillment provider in agreement.
//
// Each service in the package is one periodic task body. The scheduler (or
// a manual trigger through the ops API) invokes them; they return a
// RunSummary so every tick leaves an auditable task run record. Per-item
// failures never abort a batch: the summary carries them and the next tick
// retries whatever is still retryable.
//
// Services:
//   - IngestionService pulls new orders from the upstream source
//   - UploadService pushes pending orders to the provider
//   - StatusSyncService applies remote status reports to local state
//   - LotSyncService re-targets uploaded lines after a lot activation
//   - DuplicateResolver detects and resolves duplicated remote records
//   - LedgerRefreshService replays the ledger and archives snapshots
//
// All remote calls go through the fulfillment.Provider port. The concrete
// adapter owns rate limiting and retries, so services here only distinguish
// transient failures (leave work for the next tick) from permanent ones
// (record the failure and move on).
package sync
