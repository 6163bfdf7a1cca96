package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Provider Errors
// ---------------------------------------------------------------------------

var (
	// Transient failures: the call may succeed on a later scheduled tick.
	ErrProviderUnavailable = errors.New("fulfillment: provider temporarily unavailable")
	ErrProviderRateLimited = errors.New("fulfillment: provider rate limited")
	ErrProviderTimeout     = errors.New("fulfillment: provider call timed out")

	// Permanent failures: retrying the same request cannot succeed until the
	// underlying data or configuration is fixed.
	ErrProviderRejected        = errors.New("fulfillment: provider rejected request")
	ErrProviderAuthFailed      = errors.New("fulfillment: provider authentication failed")
	ErrProviderInvalidResponse = errors.New("fulfillment: invalid provider response")

	// Lookup misses: handled explicitly by callers, classified as neither
	// transient nor permanent.
	ErrRemoteOrderNotFound = errors.New("fulfillment: remote order not found")
	ErrRemoteItemNotFound  = errors.New("fulfillment: remote order item not found")
)

// IsTransient returns true if the error indicates a temporary provider
// condition. Transient failures leave the affected order in its current
// state; the next scheduled tick retries.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrProviderRateLimited) ||
		errors.Is(err, ErrProviderTimeout)
}

// IsPermanent returns true if the error indicates the request itself is
// unacceptable to the provider. Permanent failures mark the order failed
// with a recorded reason and are never silently retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrProviderRejected) ||
		errors.Is(err, ErrProviderAuthFailed) ||
		errors.Is(err, ErrProviderInvalidResponse)
}

// ---------------------------------------------------------------------------
// Remote Order Status
// ---------------------------------------------------------------------------

// RemoteOrderStatus represents the status of an order record on the provider
type RemoteOrderStatus string

const (
	// RemoteStatusSubmitted indicates the record was accepted and is queued
	RemoteStatusSubmitted RemoteOrderStatus = "SUBMITTED"
	// RemoteStatusProcessing indicates the provider is picking/packing
	RemoteStatusProcessing RemoteOrderStatus = "PROCESSING"
	// RemoteStatusHeld indicates the provider paused the record
	RemoteStatusHeld RemoteOrderStatus = "HELD"
	// RemoteStatusShipped indicates the record left the warehouse
	RemoteStatusShipped RemoteOrderStatus = "SHIPPED"
	// RemoteStatusCancelled indicates the record was cancelled on the provider
	RemoteStatusCancelled RemoteOrderStatus = "CANCELLED"
)

// IsValid returns true if the status is valid
func (s RemoteOrderStatus) IsValid() bool {
	switch s {
	case RemoteStatusSubmitted, RemoteStatusProcessing, RemoteStatusHeld,
		RemoteStatusShipped, RemoteStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of RemoteOrderStatus
func (s RemoteOrderStatus) String() string {
	return string(s)
}

// IsFinal returns true if the status is a final (terminal) state.
// Final records are never deleted or rewritten; duplicate resolution must
// route them to manual review instead.
func (s RemoteOrderStatus) IsFinal() bool {
	return s == RemoteStatusShipped || s == RemoteStatusCancelled
}

// IsLive returns true if the record is still actionable on the provider.
// The upload existence check adopts live records instead of re-creating.
func (s RemoteOrderStatus) IsLive() bool {
	return s.IsValid() && !s.IsFinal()
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// RemoteOrder represents an order record as the provider reports it
type RemoteOrder struct {
	// RemoteID is the provider's identifier for the order record
	RemoteID string
	// OrderNumber is the external order number the record was created under.
	// Not unique on the provider side: duplicates are exactly the condition
	// the resolver exists for.
	OrderNumber string
	// Status is the order-level status on the provider
	Status RemoteOrderStatus
	// Items contains the line-item records
	Items []RemoteOrderItem
	// CreatedAt is when the record was created on the provider
	CreatedAt time.Time
	// UpdatedAt is when the provider last touched the record
	UpdatedAt time.Time
	// RawData is the original provider response (JSON), kept for audit
	RawData string
}

// RemoteOrderItem represents a line-item record on the provider. Duplicate
// detection and deletion operate at this granularity.
type RemoteOrderItem struct {
	// RemoteItemID is the provider's identifier for the line item
	RemoteItemID string
	// SKUToken is the SKU string as the provider stores it; it may encode a
	// lot suffix and is decomposed locally via the sku package
	SKUToken string
	// Quantity is the line quantity
	Quantity decimal.Decimal
	// Status is the line-level status on the provider
	Status RemoteOrderStatus
	// CreatedAt is when the line was created on the provider; the resolver's
	// earliest-created keep rule reads this
	CreatedAt time.Time
}

// ---------------------------------------------------------------------------
// Request/Response DTOs
// ---------------------------------------------------------------------------

// CreateOrderRequest represents a request to create an order on the provider
type CreateOrderRequest struct {
	// OrderNumber is the external order number for the new record
	OrderNumber string
	// Lines contains the line items to create
	Lines []CreateOrderLine
}

// CreateOrderLine represents a line item in a create request
type CreateOrderLine struct {
	// SKUToken is the SKU string the provider should store, including any
	// lot suffix for the currently active lot
	SKUToken string
	// Quantity is the line quantity
	Quantity decimal.Decimal
}

// Validate validates the create request
func (r *CreateOrderRequest) Validate() error {
	if r.OrderNumber == "" {
		return ErrProviderRejected
	}
	if len(r.Lines) == 0 {
		return ErrProviderRejected
	}
	for _, line := range r.Lines {
		if line.SKUToken == "" || !line.Quantity.IsPositive() {
			return ErrProviderRejected
		}
	}
	return nil
}

// CreateOrderResponse represents the provider's answer to a create request
type CreateOrderResponse struct {
	// RemoteID is the provider's identifier for the new order record
	RemoteID string
	// Items echoes the created lines with their provider item identifiers
	Items []RemoteOrderItem
}

// ListOrdersRequest represents a paged query for records changed in a window
type ListOrdersRequest struct {
	// UpdatedFrom is the start of the change window
	UpdatedFrom time.Time
	// UpdatedTo is the end of the change window
	UpdatedTo time.Time
	// Page is the page number (1-indexed)
	Page int
	// PageSize is the number of orders per page
	PageSize int
}

// Validate validates the list request and clamps paging to sane bounds
func (r *ListOrdersRequest) Validate() error {
	if r.UpdatedFrom.IsZero() || r.UpdatedTo.IsZero() {
		return errors.New("fulfillment: updated-from and updated-to are required")
	}
	if r.UpdatedFrom.After(r.UpdatedTo) {
		return errors.New("fulfillment: updated-from must be before updated-to")
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 || r.PageSize > 100 {
		r.PageSize = 50
	}
	return nil
}

// OrderPage represents one page of a list query
type OrderPage struct {
	// Orders contains the records on this page
	Orders []RemoteOrder
	// TotalCount is the total number of records matching the window
	TotalCount int64
	// HasMore indicates if there are more pages
	HasMore bool
	// NextPage is the next page number (if HasMore is true)
	NextPage int
}

// ---------------------------------------------------------------------------
// Provider Port Interface
// ---------------------------------------------------------------------------

// Provider defines the port interface for the remote fulfillment service.
// It is defined in the domain layer; the concrete HTTP adapter lives in the
// infrastructure layer and carries the rate limiting and retry policy, so
// callers see only the final classified outcome of each call.
type Provider interface {
	// CreateOrder creates an order record with its line items
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error)

	// GetOrdersByNumber returns every record carrying the exact order number.
	// This is the existence check: an exact match, never a range scan.
	GetOrdersByNumber(ctx context.Context, orderNumber string) ([]RemoteOrder, error)

	// ListOrders returns records changed inside a window, paged
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*OrderPage, error)

	// DeleteOrderItem removes a line-item record. Only non-final records may
	// be deleted; the provider answers ErrProviderRejected otherwise.
	DeleteOrderItem(ctx context.Context, remoteItemID string) error

	// UpdateOrderItemSKU rewrites the SKU token on a line-item record.
	// Used by lot-sync to re-target an uploaded line at the new active lot.
	UpdateOrderItemSKU(ctx context.Context, remoteItemID, skuToken string) error
}
