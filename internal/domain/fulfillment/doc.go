// Package fulfillment contains the Fulfillment bounded context.
// This context manages the relationship between local orders and their
// records on the remote fulfillment provider.
//
// Key concepts:
//   - Provider: Port interface for the remote fulfillment service
//   - ItemTracking: Entity mapping an uploaded (order number, base SKU) pair
//     to the provider's line-item record
//   - RemoteOrder / RemoteOrderItem: Value objects representing provider state
//   - DuplicateAlert / ExclusionRecord: Review workflow for duplicate remote
//     records that cannot be resolved automatically
//   - TaskState / TaskRun: Operational records for the periodic sync tasks
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package fulfillment
