package shipwire

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/fulfillment"
)

// ---------------------------------------------------------------------------
// Wire Types
// ---------------------------------------------------------------------------

// ErrorEnvelope is the provider's error body on non-2xx responses
type ErrorEnvelope struct {
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries the provider's error code and message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Order represents an order record as the provider serializes it
type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"order_number"`
	Status      string      `json:"status"`
	Items       []OrderItem `json:"items,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderItem represents a line-item record as the provider serializes it.
// Quantities travel as decimal strings.
type OrderItem struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Quantity  string    `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateOrderPayload is the body for POST /orders
type CreateOrderPayload struct {
	OrderNumber string              `json:"order_number"`
	Lines       []CreateLinePayload `json:"lines"`
}

// CreateLinePayload is one line in a create request
type CreateLinePayload struct {
	SKU      string `json:"sku"`
	Quantity string `json:"quantity"`
}

// OrderEnvelope wraps a single order in create responses
type OrderEnvelope struct {
	Order *Order `json:"order,omitempty"`
}

// OrdersEnvelope wraps order lists in query responses
type OrdersEnvelope struct {
	Orders  []Order `json:"orders"`
	Total   int64   `json:"total"`
	HasMore bool    `json:"has_more,omitempty"`
}

// UpdateItemPayload is the body for PUT /order-items/{id}
type UpdateItemPayload struct {
	SKU string `json:"sku"`
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// toRemoteOrder converts a wire order to the domain value object
func toRemoteOrder(o *Order) fulfillment.RemoteOrder {
	remote := fulfillment.RemoteOrder{
		RemoteID:    o.ID,
		OrderNumber: o.OrderNumber,
		Status:      mapRemoteStatus(o.Status),
		Items:       make([]fulfillment.RemoteOrderItem, 0, len(o.Items)),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	for _, item := range o.Items {
		remote.Items = append(remote.Items, toRemoteOrderItem(item))
	}

	// Keep the provider's serialization for audit
	if rawBytes, err := json.Marshal(o); err == nil {
		remote.RawData = string(rawBytes)
	}

	return remote
}

// toRemoteOrderItem converts a wire line item to the domain value object
func toRemoteOrderItem(item OrderItem) fulfillment.RemoteOrderItem {
	return fulfillment.RemoteOrderItem{
		RemoteItemID: item.ID,
		SKUToken:     item.SKU,
		Quantity:     ParseDecimal(item.Quantity),
		Status:       mapRemoteStatus(item.Status),
		CreatedAt:    item.CreatedAt,
	}
}

// mapRemoteStatus maps the provider's status strings to the domain status.
// Unknown strings degrade to submitted so a new provider state never breaks
// a poll.
func mapRemoteStatus(status string) fulfillment.RemoteOrderStatus {
	switch status {
	case "submitted", "SUBMITTED":
		return fulfillment.RemoteStatusSubmitted
	case "processing", "PROCESSING", "picking", "packing":
		return fulfillment.RemoteStatusProcessing
	case "held", "HELD", "on_hold":
		return fulfillment.RemoteStatusHeld
	case "shipped", "SHIPPED", "completed":
		return fulfillment.RemoteStatusShipped
	case "cancelled", "CANCELLED", "canceled":
		return fulfillment.RemoteStatusCancelled
	default:
		return fulfillment.RemoteStatusSubmitted
	}
}

// ParseDecimal safely parses a string to decimal
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
