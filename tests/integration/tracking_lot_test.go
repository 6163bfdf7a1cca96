package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/infrastructure/persistence"
)

// TestTrackingRepository_Integration tests the tracking repository, in
// particular the unique pair index that arbitrates concurrent uploads of
// the same order line.
func TestTrackingRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	repo := persistence.NewGormTrackingRepository(testDB.DB)
	ctx := context.Background()

	t.Run("Save and FindByPair", func(t *testing.T) {
		tr, err := fulfillment.NewItemTracking("SO-IT-4001", "WIDGET-1", "RI-100", "L3", decimal.NewFromInt(2))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, tr))

		found, err := repo.FindByPair(ctx, "SO-IT-4001", "WIDGET-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "RI-100", found.RemoteItemID)
		assert.Equal(t, "L3", found.LotNumber)
		assert.Equal(t, fulfillment.StatusUploaded, found.Status)

		missing, err := repo.FindByPair(ctx, "SO-IT-4001", "GADGET-7")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("second row for the same pair loses the insert race", func(t *testing.T) {
		loser, err := fulfillment.NewItemTracking("SO-IT-4001", "WIDGET-1", "RI-101", "L3", decimal.NewFromInt(2))
		require.NoError(t, err)

		err = repo.Save(ctx, loser)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("FindByRemoteItemID", func(t *testing.T) {
		found, err := repo.FindByRemoteItemID(ctx, "RI-100")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "SO-IT-4001", found.OrderNumber)

		none, err := repo.FindByRemoteItemID(ctx, "RI-GONE")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("FindUploadedBySKU skips shipped rows", func(t *testing.T) {
		shipped, err := fulfillment.NewItemTracking("SO-IT-4002", "WIDGET-1", "RI-102", "L3", decimal.NewFromInt(1))
		require.NoError(t, err)
		require.NoError(t, shipped.MarkShipped(time.Now()))
		require.NoError(t, repo.Save(ctx, shipped))

		rows, err := repo.FindUploadedBySKU(ctx, "WIDGET-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "RI-100", rows[0].RemoteItemID)
	})
}

// TestLotActivation_Integration tests the single-active-lot switch inside
// one database transaction.
func TestLotActivation_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	repo := persistence.NewGormLotRepository(testDB.DB)
	ctx := context.Background()

	const sku = "WIDGET-1"

	t.Run("activating an unseen lot creates it", func(t *testing.T) {
		lot, previous, err := repo.Activate(ctx, sku, "L1")
		require.NoError(t, err)
		assert.Empty(t, previous)
		assert.True(t, lot.Active)
		assert.Equal(t, 1, lot.Version)
		require.NotNil(t, lot.ActivatedAt)
	})

	t.Run("switching deactivates the old lot", func(t *testing.T) {
		seeded, err := inventory.NewLot(sku, "L2", decimal.NewFromInt(500))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, seeded))

		lot, previous, err := repo.Activate(ctx, sku, "L2")
		require.NoError(t, err)
		assert.Equal(t, "L1", previous)
		assert.Equal(t, "L2", lot.LotNumber)
		assert.True(t, lot.Active)

		active, err := repo.FindActive(ctx, sku)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "L2", active.LotNumber)

		all, err := repo.FindBySKU(ctx, sku)
		require.NoError(t, err)
		activeCount := 0
		for _, l := range all {
			if l.Active {
				activeCount++
			}
		}
		assert.Equal(t, 1, activeCount, "at most one lot per SKU is active")
	})

	t.Run("re-activating the active lot is a no-op switch", func(t *testing.T) {
		lot, previous, err := repo.Activate(ctx, sku, "L2")
		require.NoError(t, err)
		assert.Equal(t, "L2", previous)
		assert.Equal(t, "L2", lot.LotNumber)
		assert.Equal(t, 1, lot.Version, "version does not bump without a switch")
	})

	t.Run("lots for different SKUs do not interfere", func(t *testing.T) {
		other, previous, err := repo.Activate(ctx, "GADGET-7", "L1")
		require.NoError(t, err)
		assert.Empty(t, previous)
		assert.True(t, other.Active)

		active, err := repo.FindActive(ctx, sku)
		require.NoError(t, err)
		assert.Equal(t, "L2", active.LotNumber)
	})
}
