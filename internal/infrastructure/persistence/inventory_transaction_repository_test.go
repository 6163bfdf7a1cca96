package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&inventory.InventoryTransaction{}))
	return db
}

func makeLedgerTx(t *testing.T, baseSKU string, kind inventory.TransactionKind, occurredAt time.Time) *inventory.InventoryTransaction {
	t.Helper()

	tx, err := inventory.NewInventoryTransaction(baseSKU, kind, decimal.NewFromInt(5), inventory.SourceManual)
	require.NoError(t, err)
	return tx.WithOccurredAt(occurredAt)
}

func TestGormInventoryTransactionRepository_FindBySKU(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInventoryTransactionRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	early := makeLedgerTx(t, "4711", inventory.KindReceive, base)
	mid := makeLedgerTx(t, "4711", inventory.KindShip, base.Add(time.Hour))
	late := makeLedgerTx(t, "4711", inventory.KindReceive, base.Add(2*time.Hour))
	otherSKU := makeLedgerTx(t, "4712", inventory.KindReceive, base.Add(time.Hour))

	for _, tx := range []*inventory.InventoryTransaction{late, early, mid, otherSKU} {
		require.NoError(t, repo.Save(ctx, tx))
	}

	t.Run("window is exclusive below and inclusive above", func(t *testing.T) {
		txs, err := repo.FindBySKU(ctx, "4711", base, base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, txs, 2, "transaction at the lower bound stays out")
		assert.Equal(t, mid.ID, txs[0].ID)
		assert.Equal(t, late.ID, txs[1].ID)
	})

	t.Run("full window returns chronological order", func(t *testing.T) {
		txs, err := repo.FindBySKU(ctx, "4711", base.Add(-time.Hour), base.Add(3*time.Hour))
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, early.ID, txs[0].ID)
		assert.Equal(t, mid.ID, txs[1].ID)
		assert.Equal(t, late.ID, txs[2].ID)
	})

	t.Run("other SKUs stay out", func(t *testing.T) {
		txs, err := repo.FindBySKU(ctx, "4712", base.Add(-time.Hour), base.Add(3*time.Hour))
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, otherSKU.ID, txs[0].ID)
	})
}

func TestGormInventoryTransactionRepository_FindByOrderNumber(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInventoryTransactionRepository(db)
	ctx := context.Background()

	now := time.Now()
	tagged := makeLedgerTx(t, "4711", inventory.KindShip, now).WithOrderNumber("ORD-1")
	untagged := makeLedgerTx(t, "4711", inventory.KindReceive, now)
	require.NoError(t, repo.Save(ctx, tagged))
	require.NoError(t, repo.Save(ctx, untagged))

	txs, err := repo.FindByOrderNumber(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tagged.ID, txs[0].ID)
}

func TestGormInventoryTransactionRepository_HasManualShipment(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInventoryTransactionRepository(db)
	ctx := context.Background()

	now := time.Now()
	manual := makeLedgerTx(t, "4711", inventory.KindManualShipment, now).WithOrderNumber("ORD-2")
	require.NoError(t, repo.Save(ctx, manual))

	remote := makeLedgerTx(t, "4711", inventory.KindShip, now).WithOrderNumber("ORD-3")
	require.NoError(t, repo.Save(ctx, remote))

	has, err := repo.HasManualShipment(ctx, "ORD-2")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasManualShipment(ctx, "ORD-3")
	require.NoError(t, err)
	assert.False(t, has, "a plain ship deduction is not a manual shipment")
}

func TestGormInventoryTransactionRepository_FindAll(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInventoryTransactionRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Save(ctx, makeLedgerTx(t, "4711", inventory.KindReceive, now)))
	require.NoError(t, repo.Save(ctx, makeLedgerTx(t, "4711", inventory.KindShip, now.Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, makeLedgerTx(t, "4712", inventory.KindReceive, now)))

	t.Run("filters by SKU and kind", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Filters["base_sku"] = "4711"
		filter.Filters["kind"] = inventory.KindShip

		txs, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, inventory.KindShip, txs[0].Kind)
	})

	t.Run("unfiltered returns everything", func(t *testing.T) {
		txs, err := repo.FindAll(ctx, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Len(t, txs, 3)
	})
}

func TestGormInventoryTransactionRepository_DistinctSKUs(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInventoryTransactionRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Save(ctx, makeLedgerTx(t, "4712", inventory.KindReceive, now)))
	require.NoError(t, repo.Save(ctx, makeLedgerTx(t, "4711", inventory.KindReceive, now)))
	require.NoError(t, repo.Save(ctx, makeLedgerTx(t, "4711", inventory.KindShip, now)))

	skus, err := repo.DistinctSKUs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"4711", "4712"}, skus)
}
