package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinventory "github.com/oms/backend/internal/application/inventory"
	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/infrastructure/persistence"
)

// TestLedgerReplay_Integration replays the transaction ledger against a real
// PostgreSQL database and checks the stock position arithmetic.
func TestLedgerReplay_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	txRepo := persistence.NewGormInventoryTransactionRepository(testDB.DB)
	blRepo := persistence.NewGormBaselineRepository(testDB.DB)
	mmRepo := persistence.NewGormMismatchAlertRepository(testDB.DB)
	svc := appinventory.NewLedgerService(txRepo, blRepo, mmRepo)
	ctx := context.Background()

	const sku = "WIDGET-1"
	baselineAt := time.Now().Add(-48 * time.Hour)

	// A movement before the baseline must never count: the baseline is the
	// replay floor.
	before := baselineAt.Add(-time.Hour)
	_, err := svc.RecordAdjustment(ctx, appinventory.AdjustmentRequest{
		BaseSKU:    sku,
		Kind:       inventory.KindAdjustUp.String(),
		Quantity:   decimal.NewFromInt(999),
		OccurredAt: &before,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RecordBaseline(ctx, appinventory.BaselineRequest{
		BaseSKU:  sku,
		Quantity: decimal.NewFromInt(100),
		TakenAt:  &baselineAt,
	}))

	upAt := baselineAt.Add(2 * time.Hour)
	_, err = svc.RecordAdjustment(ctx, appinventory.AdjustmentRequest{
		BaseSKU:    sku,
		Kind:       inventory.KindAdjustUp.String(),
		Quantity:   decimal.NewFromInt(50),
		OccurredAt: &upAt,
	})
	require.NoError(t, err)

	recorded, err := svc.RecordRemoteShipment(ctx, "SO-IT-2001", sku, decimal.NewFromInt(30), baselineAt.Add(4*time.Hour))
	require.NoError(t, err)
	assert.True(t, recorded)

	t.Run("position replays from the latest baseline", func(t *testing.T) {
		pos, err := svc.StockOnHand(ctx, sku, time.Now())
		require.NoError(t, err)
		assert.Equal(t, sku, pos.BaseSKU)
		assert.True(t, pos.StockOnHand.Equal(decimal.NewFromInt(120)),
			"expected 100+50-30, got %s", pos.StockOnHand)
		assert.True(t, pos.BaselineQuantity.Equal(decimal.NewFromInt(100)))
		require.NotNil(t, pos.BaselineTakenAt)
		assert.Equal(t, 2, pos.Applied)
		assert.Empty(t, pos.Conflicts)
	})

	t.Run("position as of an instant before the movements", func(t *testing.T) {
		pos, err := svc.StockOnHand(ctx, sku, baselineAt.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, pos.StockOnHand.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, 0, pos.Applied)
	})

	t.Run("ListTransactions excludes rows outside the window", func(t *testing.T) {
		rows, err := svc.ListTransactions(ctx, sku, baselineAt, time.Now())
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, inventory.KindAdjustUp.String(), rows[0].Kind)
		assert.Equal(t, inventory.KindShip.String(), rows[1].Kind)
		assert.Equal(t, "SO-IT-2001", rows[1].OrderNumber)
	})
}

// TestLedgerDeduction_Integration verifies the one-deduction-per-order rule
// end to end: with a manual shipment on record the remote-reported deduction
// is skipped and the drift is surfaced as a mismatch alert, exactly once.
func TestLedgerDeduction_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	txRepo := persistence.NewGormInventoryTransactionRepository(testDB.DB)
	blRepo := persistence.NewGormBaselineRepository(testDB.DB)
	mmRepo := persistence.NewGormMismatchAlertRepository(testDB.DB)
	svc := appinventory.NewLedgerService(txRepo, blRepo, mmRepo)
	ctx := context.Background()

	const sku = "GADGET-7"
	const orderNumber = "SO-IT-3001"

	_, err := svc.RecordAdjustment(ctx, appinventory.AdjustmentRequest{
		BaseSKU:     sku,
		Kind:        inventory.KindManualShipment.String(),
		Quantity:    decimal.NewFromInt(4),
		OrderNumber: orderNumber,
	})
	require.NoError(t, err)

	recorded, err := svc.RecordRemoteShipment(ctx, orderNumber, sku, decimal.NewFromInt(5), time.Now())
	require.NoError(t, err)
	assert.False(t, recorded, "remote deduction must be skipped when a manual shipment covers the order")

	// The skipped deduction leaves no ledger row
	rows, err := txRepo.FindByOrderNumber(ctx, orderNumber)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, inventory.KindManualShipment, rows[0].Kind)

	alerts, total, err := mmRepo.FindUnacknowledged(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, alerts, 1)
	assert.Equal(t, fulfillment.MismatchKindDeduction, alerts[0].Kind)
	assert.Equal(t, orderNumber, alerts[0].OrderNumber)
	assert.Equal(t, sku, alerts[0].BaseSKU)

	// A replayed skip does not stack a second alert
	recorded, err = svc.RecordRemoteShipment(ctx, orderNumber, sku, decimal.NewFromInt(5), time.Now())
	require.NoError(t, err)
	assert.False(t, recorded)

	_, total, err = mmRepo.FindUnacknowledged(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
