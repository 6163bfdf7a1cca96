package fulfillment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// DuplicateAlert Tests
// ---------------------------------------------------------------------------

func newTestAlert(t *testing.T) *DuplicateAlert {
	t.Helper()
	alert, err := NewDuplicateAlert("ORD-1001", "WIDGET", []string{"RI-1", "RI-2"}, "RI-1", "second record already shipped")
	require.NoError(t, err)
	return alert
}

func TestNewDuplicateAlert(t *testing.T) {
	t.Run("Valid alert", func(t *testing.T) {
		alert := newTestAlert(t)
		assert.Equal(t, AlertStatusOpen, alert.Status)
		assert.Equal(t, "RI-1", alert.KeptItemID)
		assert.Equal(t, []string{"RI-1", "RI-2"}, alert.GetRemoteItemIDs())
		assert.Nil(t, alert.ResolvedAt)
	})

	t.Run("Missing order number", func(t *testing.T) {
		_, err := NewDuplicateAlert("", "WIDGET", []string{"RI-1", "RI-2"}, "RI-1", "")
		assert.Error(t, err)
	})

	t.Run("Missing base SKU", func(t *testing.T) {
		_, err := NewDuplicateAlert("ORD-1001", "", []string{"RI-1", "RI-2"}, "RI-1", "")
		assert.Error(t, err)
	})

	t.Run("Fewer than two remote items", func(t *testing.T) {
		_, err := NewDuplicateAlert("ORD-1001", "WIDGET", []string{"RI-1"}, "RI-1", "")
		assert.Error(t, err)
	})
}

func TestDuplicateAlert_Resolution(t *testing.T) {
	t.Run("Open to excluded", func(t *testing.T) {
		alert := newTestAlert(t)
		require.NoError(t, alert.MarkExcluded())
		assert.Equal(t, AlertStatusExcluded, alert.Status)
		assert.NotNil(t, alert.ResolvedAt)
	})

	t.Run("Open to auto-resolved", func(t *testing.T) {
		alert := newTestAlert(t)
		require.NoError(t, alert.MarkAutoResolved())
		assert.Equal(t, AlertStatusAutoResolved, alert.Status)
	})

	t.Run("Open to manually deleted", func(t *testing.T) {
		alert := newTestAlert(t)
		require.NoError(t, alert.MarkManuallyDeleted())
		assert.Equal(t, AlertStatusManuallyDeleted, alert.Status)
	})

	t.Run("Resolution is one-way", func(t *testing.T) {
		alert := newTestAlert(t)
		require.NoError(t, alert.MarkExcluded())

		assert.ErrorIs(t, alert.MarkAutoResolved(), shared.ErrInvalidState)
		assert.ErrorIs(t, alert.MarkManuallyDeleted(), shared.ErrInvalidState)
		assert.Equal(t, AlertStatusExcluded, alert.Status)
	})
}

func TestDuplicateAlertStatus_IsResolved(t *testing.T) {
	tests := []struct {
		status   DuplicateAlertStatus
		expected bool
	}{
		{AlertStatusOpen, false},
		{AlertStatusExcluded, true},
		{AlertStatusAutoResolved, true},
		{AlertStatusManuallyDeleted, true},
		{DuplicateAlertStatus("INVALID"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsResolved())
		})
	}
}

// ---------------------------------------------------------------------------
// MismatchAlert Tests
// ---------------------------------------------------------------------------

func TestNewMismatchAlert(t *testing.T) {
	t.Run("Lot mismatch", func(t *testing.T) {
		alert, err := NewMismatchAlert(MismatchKindLot, "ORD-1001", "WIDGET", "L43", "L42", "remote line still carries a retired lot")
		require.NoError(t, err)
		assert.Equal(t, MismatchKindLot, alert.Kind)
		assert.Equal(t, "L43", alert.Expected)
		assert.Equal(t, "L42", alert.Found)
		assert.False(t, alert.Acknowledged)
	})

	t.Run("Deduction drift", func(t *testing.T) {
		alert, err := NewMismatchAlert(MismatchKindDeduction, "ORD-1001", "WIDGET", "2", "1", "manual shipment superseded by remote report")
		require.NoError(t, err)
		assert.Equal(t, MismatchKindDeduction, alert.Kind)
	})

	t.Run("Invalid kind", func(t *testing.T) {
		_, err := NewMismatchAlert(MismatchKind("INVALID"), "ORD-1001", "WIDGET", "", "", "")
		assert.Error(t, err)
	})

	t.Run("Missing base SKU", func(t *testing.T) {
		_, err := NewMismatchAlert(MismatchKindLot, "ORD-1001", "", "L43", "L42", "")
		assert.Error(t, err)
	})
}

func TestMismatchAlert_Acknowledge(t *testing.T) {
	alert, err := NewMismatchAlert(MismatchKindLot, "ORD-1001", "WIDGET", "L43", "L42", "")
	require.NoError(t, err)

	alert.Acknowledge()
	assert.True(t, alert.Acknowledged)
}

// ---------------------------------------------------------------------------
// ExclusionRecord Tests
// ---------------------------------------------------------------------------

func TestNewExclusionRecord(t *testing.T) {
	t.Run("Valid exclusion", func(t *testing.T) {
		rec, err := NewExclusionRecord("ORD-1001", "WIDGET", "intentional split shipment", "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, "ORD-1001", rec.OrderNumber)
		assert.Equal(t, "WIDGET", rec.BaseSKU)
		assert.Equal(t, "intentional split shipment", rec.Reason)
		assert.Equal(t, "ops@example.com", rec.CreatedBy)
	})

	t.Run("Missing order number", func(t *testing.T) {
		_, err := NewExclusionRecord("", "WIDGET", "reason", "")
		assert.Error(t, err)
	})

	t.Run("Missing base SKU", func(t *testing.T) {
		_, err := NewExclusionRecord("ORD-1001", "", "reason", "")
		assert.Error(t, err)
	})

	t.Run("Missing reason", func(t *testing.T) {
		_, err := NewExclusionRecord("ORD-1001", "WIDGET", "", "")
		assert.Error(t, err)
	})
}
