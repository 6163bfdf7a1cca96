package fulfillment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// ShipmentStatus Tests
// ---------------------------------------------------------------------------

func TestShipmentStatus_IsValid(t *testing.T) {
	validStatuses := []ShipmentStatus{
		StatusPending,
		StatusUploaded,
		StatusShipped,
		StatusCancelled,
		StatusFailed,
		StatusOnHold,
	}

	for _, status := range validStatuses {
		t.Run(string(status), func(t *testing.T) {
			assert.True(t, status.IsValid())
		})
	}

	t.Run("Invalid status", func(t *testing.T) {
		assert.False(t, ShipmentStatus("INVALID").IsValid())
	})
}

func TestShipmentStatus_IsFinal(t *testing.T) {
	tests := []struct {
		status   ShipmentStatus
		expected bool
	}{
		{StatusPending, false},
		{StatusUploaded, false},
		{StatusShipped, true},
		{StatusCancelled, true},
		{StatusFailed, false},
		{StatusOnHold, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsFinal())
		})
	}
}

func TestShipmentStatus_Rank(t *testing.T) {
	t.Run("Lifecycle order", func(t *testing.T) {
		assert.Less(t, StatusPending.Rank(), StatusUploaded.Rank())
		assert.Less(t, StatusUploaded.Rank(), StatusShipped.Rank())
		assert.Equal(t, StatusShipped.Rank(), StatusCancelled.Rank())
	})

	t.Run("Invalid status ranks below everything", func(t *testing.T) {
		assert.Equal(t, -1, ShipmentStatus("INVALID").Rank())
	})
}

func TestShipmentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    ShipmentStatus
		to      ShipmentStatus
		allowed bool
	}{
		{"Upload success", StatusPending, StatusUploaded, true},
		{"Self-healing reclassification", StatusPending, StatusShipped, true},
		{"Pending cancelled remotely", StatusPending, StatusCancelled, true},
		{"Permanent upload failure", StatusPending, StatusFailed, true},
		{"Remote reports shipped", StatusUploaded, StatusShipped, true},
		{"Remote reports cancelled", StatusUploaded, StatusCancelled, true},
		{"Uploaded cannot go back to pending", StatusUploaded, StatusPending, false},
		{"Uploaded cannot fail", StatusUploaded, StatusFailed, false},
		{"Shipped never regresses to uploaded", StatusShipped, StatusUploaded, false},
		{"Shipped never regresses to pending", StatusShipped, StatusPending, false},
		{"Shipped never cancels", StatusShipped, StatusCancelled, false},
		{"Cancelled never ships", StatusCancelled, StatusShipped, false},
		{"Hold from pending", StatusPending, StatusOnHold, true},
		{"Hold from uploaded", StatusUploaded, StatusOnHold, true},
		{"Hold from shipped", StatusShipped, StatusOnHold, true},
		{"Release to pending", StatusOnHold, StatusPending, true},
		{"Release to uploaded", StatusOnHold, StatusUploaded, true},
		{"Held order ships", StatusOnHold, StatusShipped, true},
		{"Held order cancels", StatusOnHold, StatusCancelled, true},
		{"Held order cannot fail", StatusOnHold, StatusFailed, false},
		{"Cleared failure re-enters queue", StatusFailed, StatusPending, true},
		{"Failed cannot skip to uploaded", StatusFailed, StatusUploaded, false},
		{"No self transition", StatusUploaded, StatusUploaded, false},
		{"No transition to invalid", StatusUploaded, ShipmentStatus("INVALID"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// ---------------------------------------------------------------------------
// ItemTracking Tests
// ---------------------------------------------------------------------------

func TestNewItemTracking(t *testing.T) {
	t.Run("Valid tracking row", func(t *testing.T) {
		tr, err := NewItemTracking("ORD-1001", "WIDGET", "RI-77", "L42", decimal.NewFromInt(3))
		require.NoError(t, err)
		assert.Equal(t, "ORD-1001", tr.OrderNumber)
		assert.Equal(t, "WIDGET", tr.BaseSKU)
		assert.Equal(t, "RI-77", tr.RemoteItemID)
		assert.Equal(t, "L42", tr.LotNumber)
		assert.Equal(t, StatusUploaded, tr.Status)
		assert.Nil(t, tr.ShippedAt)
	})

	t.Run("Missing order number", func(t *testing.T) {
		_, err := NewItemTracking("", "WIDGET", "RI-77", "L42", decimal.NewFromInt(1))
		assert.Error(t, err)
	})

	t.Run("Missing base SKU", func(t *testing.T) {
		_, err := NewItemTracking("ORD-1001", "", "RI-77", "L42", decimal.NewFromInt(1))
		assert.Error(t, err)
	})

	t.Run("Missing remote item id", func(t *testing.T) {
		_, err := NewItemTracking("ORD-1001", "WIDGET", "", "L42", decimal.NewFromInt(1))
		assert.Error(t, err)
	})

	t.Run("Non-positive quantity", func(t *testing.T) {
		_, err := NewItemTracking("ORD-1001", "WIDGET", "RI-77", "L42", decimal.Zero)
		assert.Error(t, err)
	})
}

func TestItemTracking_RewriteLot(t *testing.T) {
	t.Run("Uploaded row is rewritten", func(t *testing.T) {
		tr, err := NewItemTracking("ORD-1001", "WIDGET", "RI-77", "L42", decimal.NewFromInt(3))
		require.NoError(t, err)

		require.NoError(t, tr.RewriteLot("L43"))
		assert.Equal(t, "L43", tr.LotNumber)
	})

	t.Run("Shipped row keeps its lot", func(t *testing.T) {
		tr, err := NewItemTracking("ORD-1001", "WIDGET", "RI-77", "L42", decimal.NewFromInt(3))
		require.NoError(t, err)
		require.NoError(t, tr.MarkShipped(time.Now()))

		err = tr.RewriteLot("L43")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, "L42", tr.LotNumber)
	})
}

func TestItemTracking_StatusTransitions(t *testing.T) {
	t.Run("Mark shipped", func(t *testing.T) {
		tr, err := NewItemTracking("ORD-1001", "WIDGET", "RI-77", "L42", decimal.NewFromInt(3))
		require.NoError(t, err)

		shippedAt := time.Now()
		require.NoError(t, tr.MarkShipped(shippedAt))
		assert.Equal(t, StatusShipped, tr.Status)
		require.NotNil(t, tr.ShippedAt)
		assert.True(t, tr.ShippedAt.Equal(shippedAt))
	})

	t.Run("Mark cancelled", func(t *testing.T) {
		tr, err := NewItemTracking("ORD-1001", "WIDGET", "RI-77", "L42", decimal.NewFromInt(3))
		require.NoError(t, err)

		require.NoError(t, tr.MarkCancelled())
		assert.Equal(t, StatusCancelled, tr.Status)
	})

	t.Run("Shipped row cannot cancel", func(t *testing.T) {
		tr, err := NewItemTracking("ORD-1001", "WIDGET", "RI-77", "L42", decimal.NewFromInt(3))
		require.NoError(t, err)
		require.NoError(t, tr.MarkShipped(time.Now()))

		assert.ErrorIs(t, tr.MarkCancelled(), shared.ErrInvalidState)
	})

	t.Run("Cancelled row cannot ship", func(t *testing.T) {
		tr, err := NewItemTracking("ORD-1001", "WIDGET", "RI-77", "L42", decimal.NewFromInt(3))
		require.NoError(t, err)
		require.NoError(t, tr.MarkCancelled())

		assert.ErrorIs(t, tr.MarkShipped(time.Now()), shared.ErrInvalidState)
	})
}
