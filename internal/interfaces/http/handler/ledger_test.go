package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinventory "github.com/oms/backend/internal/application/inventory"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
)

// transactionStore is an in-memory inventory.TransactionRepository
type transactionStore struct {
	mu  sync.Mutex
	txs []inventory.InventoryTransaction
}

func newTransactionStore() *transactionStore {
	return &transactionStore{}
}

func (r *transactionStore) Save(_ context.Context, tx *inventory.InventoryTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, *tx)
	return nil
}

func (r *transactionStore) FindBySKU(_ context.Context, baseSKU string, after, until time.Time) ([]inventory.InventoryTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.InventoryTransaction, 0)
	for _, tx := range r.txs {
		if tx.BaseSKU != baseSKU {
			continue
		}
		if !after.IsZero() && !tx.OccurredAt.After(after) {
			continue
		}
		if !until.IsZero() && tx.OccurredAt.After(until) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (r *transactionStore) FindByOrderNumber(_ context.Context, orderNumber string) ([]inventory.InventoryTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.InventoryTransaction, 0)
	for _, tx := range r.txs {
		if tx.OrderNumber == orderNumber {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *transactionStore) HasManualShipment(_ context.Context, orderNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.Kind == inventory.KindManualShipment && tx.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *transactionStore) FindAll(_ context.Context, _ shared.Filter) ([]inventory.InventoryTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.InventoryTransaction, len(r.txs))
	copy(out, r.txs)
	return out, nil
}

func (r *transactionStore) DistinctSKUs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	skus := make([]string, 0)
	for _, tx := range r.txs {
		if !seen[tx.BaseSKU] {
			seen[tx.BaseSKU] = true
			skus = append(skus, tx.BaseSKU)
		}
	}
	sort.Strings(skus)
	return skus, nil
}

// baselineStore is an in-memory inventory.BaselineRepository
type baselineStore struct {
	mu        sync.Mutex
	baselines []inventory.StockBaseline
}

func newBaselineStore() *baselineStore {
	return &baselineStore{}
}

func (r *baselineStore) Save(_ context.Context, baseline *inventory.StockBaseline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baselines = append(r.baselines, *baseline)
	return nil
}

func (r *baselineStore) FindLatest(_ context.Context, baseSKU string, asOf time.Time) (*inventory.StockBaseline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *inventory.StockBaseline
	for i := range r.baselines {
		b := r.baselines[i]
		if b.BaseSKU != baseSKU || b.TakenAt.After(asOf) {
			continue
		}
		if latest == nil || b.TakenAt.After(latest.TakenAt) {
			cp := b
			latest = &cp
		}
	}
	return latest, nil
}

type ledgerTestEnv struct {
	router       *gin.Engine
	transactions *transactionStore
	baselines    *baselineStore
}

func newLedgerTestEnv(t *testing.T) *ledgerTestEnv {
	t.Helper()

	transactions := newTransactionStore()
	baselines := newBaselineStore()
	service := appinventory.NewLedgerService(transactions, baselines, newMismatchAlertStore())

	router := gin.New()
	h := NewLedgerHandler(service)
	ledger := router.Group("/api/v1/ledger")
	ledger.GET("/:sku", h.Stock)
	ledger.GET("/:sku/transactions", h.Transactions)
	ledger.GET("/:sku/weekly-average", h.WeeklyAverage)
	ledger.POST("/adjustments", h.CreateAdjustment)
	ledger.POST("/baselines", h.CreateBaseline)

	return &ledgerTestEnv{router: router, transactions: transactions, baselines: baselines}
}

func (e *ledgerTestEnv) seedBaseline(t *testing.T, sku string, quantity int64, takenAt time.Time) {
	t.Helper()
	baseline, err := inventory.NewStockBaseline(sku, decimal.NewFromInt(quantity), takenAt)
	require.NoError(t, err)
	require.NoError(t, e.baselines.Save(context.Background(), baseline))
}

// seedTransaction records a ledger row with CreatedAt pinned to OccurredAt
// so replay ordering is deterministic
func (e *ledgerTestEnv) seedTransaction(t *testing.T, sku string, kind inventory.TransactionKind, quantity int64, orderNumber string, occurredAt time.Time) {
	t.Helper()
	source := inventory.SourceRemoteSync
	if kind == inventory.KindManualShipment || kind == inventory.KindAdjustUp || kind == inventory.KindAdjustDown {
		source = inventory.SourceManual
	}
	tx, err := inventory.NewInventoryTransaction(sku, kind, decimal.NewFromInt(quantity), source)
	require.NoError(t, err)
	if orderNumber != "" {
		tx.WithOrderNumber(orderNumber)
	}
	tx.WithOccurredAt(occurredAt)
	tx.CreatedAt = occurredAt
	require.NoError(t, e.transactions.Save(context.Background(), tx))
}

func (e *ledgerTestEnv) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	e.router.ServeHTTP(w, req)
	return w
}

func (e *ledgerTestEnv) post(path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func TestLedgerHandler_Stock(t *testing.T) {
	env := newLedgerTestEnv(t)
	taken := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	env.seedBaseline(t, "WIDGET-1", 100, taken)

	// At the baseline instant: replay must not double-count it
	env.seedTransaction(t, "WIDGET-1", inventory.KindShip, 99, "SO-090", taken)
	env.seedTransaction(t, "WIDGET-1", inventory.KindReceive, 40, "", taken.Add(24*time.Hour))
	env.seedTransaction(t, "WIDGET-1", inventory.KindShip, 15, "SO-100", taken.Add(48*time.Hour))
	env.seedTransaction(t, "WIDGET-1", inventory.KindAdjustDown, 5, "", taken.Add(72*time.Hour))
	env.seedTransaction(t, "GADGET-9", inventory.KindReceive, 50, "", taken.Add(24*time.Hour))

	t.Run("replays from baseline", func(t *testing.T) {
		w := env.get("/api/v1/ledger/WIDGET-1")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool                       `json:"success"`
			Data    appinventory.StockResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "WIDGET-1", resp.Data.BaseSKU)
		assert.Equal(t, "120", resp.Data.StockOnHand.String())
		assert.Equal(t, "100", resp.Data.BaselineQuantity.String())
		require.NotNil(t, resp.Data.BaselineTakenAt)
		assert.True(t, resp.Data.BaselineTakenAt.Equal(taken))
		assert.Equal(t, 3, resp.Data.Applied)
		assert.Empty(t, resp.Data.Conflicts)
	})

	t.Run("as_of cuts the window", func(t *testing.T) {
		asOf := taken.Add(36 * time.Hour)
		w := env.get("/api/v1/ledger/WIDGET-1?as_of=" + url.QueryEscape(asOf.Format(time.RFC3339)))
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data appinventory.StockResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "140", resp.Data.StockOnHand.String())
		assert.Equal(t, 1, resp.Data.Applied)
		assert.True(t, resp.Data.AsOf.Equal(asOf))
	})

	t.Run("no baseline starts from zero", func(t *testing.T) {
		w := env.get("/api/v1/ledger/GADGET-9")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data appinventory.StockResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "50", resp.Data.StockOnHand.String())
		assert.Equal(t, "0", resp.Data.BaselineQuantity.String())
		assert.Nil(t, resp.Data.BaselineTakenAt)
	})

	t.Run("invalid as_of", func(t *testing.T) {
		w := env.get("/api/v1/ledger/WIDGET-1?as_of=yesterday")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "as_of must be an RFC 3339 timestamp")
	})
}

func TestLedgerHandler_StockDeductionConflict(t *testing.T) {
	env := newLedgerTestEnv(t)
	taken := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	env.seedBaseline(t, "WIDGET-1", 100, taken)

	// The manual shipment occurred first but was recorded last, so it is
	// the deliberate correction and wins over the remote-reported ship row.
	manual, err := inventory.NewInventoryTransaction("WIDGET-1", inventory.KindManualShipment, decimal.NewFromInt(7), inventory.SourceManual)
	require.NoError(t, err)
	manual.WithOrderNumber("SO-200").WithOccurredAt(taken.Add(1 * time.Hour))
	manual.CreatedAt = taken.Add(5 * time.Hour)
	require.NoError(t, env.transactions.Save(context.Background(), manual))

	env.seedTransaction(t, "WIDGET-1", inventory.KindShip, 5, "SO-200", taken.Add(2*time.Hour))

	w := env.get("/api/v1/ledger/WIDGET-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appinventory.StockResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "93", resp.Data.StockOnHand.String())
	assert.Equal(t, 1, resp.Data.Applied)
	require.Len(t, resp.Data.Conflicts, 1)
	conflict := resp.Data.Conflicts[0]
	assert.Equal(t, "SO-200", conflict.OrderNumber)
	assert.Equal(t, "MANUAL_SHIPMENT", conflict.AppliedKind)
	assert.Equal(t, "7", conflict.AppliedQuantity.String())
	assert.Equal(t, "5", conflict.IgnoredQuantity.String())
}

func TestLedgerHandler_Transactions(t *testing.T) {
	env := newLedgerTestEnv(t)
	base := time.Date(2026, 4, 6, 8, 0, 0, 0, time.UTC)
	env.seedTransaction(t, "WIDGET-1", inventory.KindReceive, 30, "", base)
	env.seedTransaction(t, "WIDGET-1", inventory.KindShip, 12, "SO-300", base.Add(24*time.Hour))
	env.seedTransaction(t, "WIDGET-1", inventory.KindAdjustUp, 3, "", base.Add(48*time.Hour))
	env.seedTransaction(t, "GADGET-9", inventory.KindShip, 1, "SO-301", base.Add(24*time.Hour))

	type listResponse struct {
		Success bool                               `json:"success"`
		Data    []appinventory.TransactionResponse `json:"data"`
	}

	t.Run("full history", func(t *testing.T) {
		w := env.get("/api/v1/ledger/WIDGET-1/transactions")
		require.Equal(t, http.StatusOK, w.Code)

		var resp listResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.Len(t, resp.Data, 3)
		assert.Equal(t, "RECEIVE", resp.Data[0].Kind)
		assert.Equal(t, "SHIP", resp.Data[1].Kind)
		assert.Equal(t, "ADJUST_UP", resp.Data[2].Kind)
		assert.Equal(t, "-12", resp.Data[1].Signed.String())
		assert.Equal(t, "SO-300", resp.Data[1].OrderNumber)
		assert.Equal(t, "REMOTE_SYNC", resp.Data[0].Source)
	})

	t.Run("window is exclusive of after and inclusive of until", func(t *testing.T) {
		after := base.Format(time.RFC3339)
		until := base.Add(24 * time.Hour).Format(time.RFC3339)
		w := env.get(fmt.Sprintf("/api/v1/ledger/WIDGET-1/transactions?after=%s&until=%s",
			url.QueryEscape(after), url.QueryEscape(until)))
		require.Equal(t, http.StatusOK, w.Code)

		var resp listResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "SHIP", resp.Data[0].Kind)
	})

	t.Run("invalid after", func(t *testing.T) {
		w := env.get("/api/v1/ledger/WIDGET-1/transactions?after=lastweek")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "after must be an RFC 3339 timestamp")
	})

	t.Run("invalid until", func(t *testing.T) {
		w := env.get("/api/v1/ledger/WIDGET-1/transactions?until=tomorrow")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "until must be an RFC 3339 timestamp")
	})
}

func TestLedgerHandler_WeeklyAverage(t *testing.T) {
	env := newLedgerTestEnv(t)
	now := time.Now()
	env.seedTransaction(t, "WIDGET-1", inventory.KindShip, 20, "SO-400", now.Add(-2*24*time.Hour))
	env.seedTransaction(t, "WIDGET-1", inventory.KindShip, 8, "SO-401", now.Add(-9*24*time.Hour))
	// Corrections move stock but are not demand signal
	env.seedTransaction(t, "WIDGET-1", inventory.KindManualShipment, 50, "SO-402", now.Add(-3*24*time.Hour))
	env.seedTransaction(t, "WIDGET-1", inventory.KindAdjustDown, 10, "", now.Add(-4*24*time.Hour))
	env.seedTransaction(t, "WIDGET-1", inventory.KindReceive, 30, "", now.Add(-5*24*time.Hour))

	type averageResponse struct {
		Data appinventory.WeeklyAverageResponse `json:"data"`
	}

	t.Run("defaults to four weeks", func(t *testing.T) {
		w := env.get("/api/v1/ledger/WIDGET-1/weekly-average")
		require.Equal(t, http.StatusOK, w.Code)

		var resp averageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "WIDGET-1", resp.Data.BaseSKU)
		assert.Equal(t, 4, resp.Data.Weeks)
		require.Len(t, resp.Data.Totals, 4)
		assert.Equal(t, "20", resp.Data.Totals[3].Total.String())
		assert.Equal(t, "8", resp.Data.Totals[2].Total.String())
		assert.Equal(t, "0", resp.Data.Totals[1].Total.String())
		assert.Equal(t, "7", resp.Data.Average.String())
	})

	t.Run("explicit window", func(t *testing.T) {
		w := env.get("/api/v1/ledger/WIDGET-1/weekly-average?weeks=2")
		require.Equal(t, http.StatusOK, w.Code)

		var resp averageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Data.Weeks)
		assert.Equal(t, "14", resp.Data.Average.String())
	})

	t.Run("invalid weeks", func(t *testing.T) {
		for _, weeks := range []string{"0", "-3", "abc"} {
			w := env.get("/api/v1/ledger/WIDGET-1/weekly-average?weeks=" + weeks)
			assert.Equal(t, http.StatusBadRequest, w.Code, "weeks=%s", weeks)
			assert.Contains(t, w.Body.String(), "weeks must be a positive integer")
		}
	})
}

func TestLedgerHandler_CreateAdjustment(t *testing.T) {
	t.Run("adjust up", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/adjustments",
			`{"base_sku": "WIDGET-1", "kind": "ADJUST_UP", "quantity": 25, "note": "cycle count"}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Success bool                             `json:"success"`
			Data    appinventory.TransactionResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.Data.ID)
		assert.Equal(t, "ADJUST_UP", resp.Data.Kind)
		assert.Equal(t, "25", resp.Data.Signed.String())
		assert.Equal(t, "MANUAL", resp.Data.Source)
		assert.Equal(t, "cycle count", resp.Data.Note)

		saved, err := env.transactions.FindAll(context.Background(), shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, inventory.KindAdjustUp, saved[0].Kind)
	})

	t.Run("manual shipment blocks the remote deduction", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		occurred := time.Date(2026, 5, 11, 9, 30, 0, 0, time.UTC)
		w := env.post("/api/v1/ledger/adjustments", fmt.Sprintf(
			`{"base_sku": "WIDGET-1", "kind": "MANUAL_SHIPMENT", "quantity": 4, "order_number": "SO-500", "occurred_at": %q}`,
			occurred.Format(time.RFC3339)))
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Data appinventory.TransactionResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "-4", resp.Data.Signed.String())
		assert.Equal(t, "SO-500", resp.Data.OrderNumber)
		assert.True(t, resp.Data.OccurredAt.Equal(occurred))

		blocked, err := env.transactions.HasManualShipment(context.Background(), "SO-500")
		require.NoError(t, err)
		assert.True(t, blocked)
	})

	t.Run("manual shipment without order", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/adjustments",
			`{"base_sku": "WIDGET-1", "kind": "MANUAL_SHIPMENT", "quantity": 4}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_INVALID_INPUT")
		assert.Contains(t, w.Body.String(), "must name its order")
	})

	t.Run("non-manual kind rejected by binding", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/adjustments",
			`{"base_sku": "WIDGET-1", "kind": "SHIP", "quantity": 4}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative quantity", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/adjustments",
			`{"base_sku": "WIDGET-1", "kind": "ADJUST_DOWN", "quantity": -5}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_INVALID_INPUT")
		assert.Contains(t, w.Body.String(), "Quantity must be positive")
	})

	t.Run("missing base sku", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/adjustments", `{"kind": "ADJUST_UP", "quantity": 5}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/adjustments", `{"base_sku": `)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLedgerHandler_CreateBaseline(t *testing.T) {
	t.Run("returns the position replayed from the new baseline", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		taken := time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)
		env.seedTransaction(t, "WIDGET-1", inventory.KindReceive, 10, "", taken.Add(time.Hour))

		w := env.post("/api/v1/ledger/baselines", fmt.Sprintf(
			`{"base_sku": "WIDGET-1", "quantity": 250, "taken_at": %q, "note": "annual count"}`,
			taken.Format(time.RFC3339)))
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Success bool                       `json:"success"`
			Data    appinventory.StockResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "250", resp.Data.BaselineQuantity.String())
		assert.Equal(t, "260", resp.Data.StockOnHand.String())
		assert.Equal(t, 1, resp.Data.Applied)
		require.NotNil(t, resp.Data.BaselineTakenAt)
		assert.True(t, resp.Data.BaselineTakenAt.Equal(taken))

		saved, err := env.baselines.FindLatest(context.Background(), "WIDGET-1", time.Now())
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "annual count", saved.Note)
	})

	t.Run("taken_at defaults to now", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/baselines", `{"base_sku": "WIDGET-1", "quantity": 42}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Data appinventory.StockResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "42", resp.Data.StockOnHand.String())
		require.NotNil(t, resp.Data.BaselineTakenAt)
	})

	t.Run("negative quantity", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/baselines", `{"base_sku": "WIDGET-1", "quantity": -1}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_INVALID_INPUT")
	})

	t.Run("missing quantity", func(t *testing.T) {
		env := newLedgerTestEnv(t)
		w := env.post("/api/v1/ledger/baselines", `{"base_sku": "WIDGET-1"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
