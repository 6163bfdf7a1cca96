package sync

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/order"
)

type statusSyncFixture struct {
	svc       *StatusSyncService
	provider  *MockProvider
	orders    *MockOrderRepository
	trackings *MockTrackingRepository
	ledger    *MockShipmentRecorder
	store     *memoryIdempotency
}

func newStatusSyncFixture() *statusSyncFixture {
	f := &statusSyncFixture{
		provider:  new(MockProvider),
		orders:    new(MockOrderRepository),
		trackings: new(MockTrackingRepository),
		ledger:    new(MockShipmentRecorder),
		store:     newMemoryIdempotency(),
	}
	scope := NewNoOpTransactionScope(f.orders, f.trackings)
	f.svc = NewStatusSyncService(f.provider, f.orders, scope, f.ledger, f.store)
	return f
}

func uploadedOrder(t *testing.T, number, remoteID string, tokens ...string) *order.Order {
	t.Helper()
	o := pendingOrder(t, number, tokens...)
	require.NoError(t, o.MarkUploaded(remoteID))
	return o
}

func singlePage(orders ...fulfillment.RemoteOrder) *fulfillment.OrderPage {
	return &fulfillment.OrderPage{
		Orders:     orders,
		TotalCount: int64(len(orders)),
		HasMore:    false,
	}
}

func TestStatusSyncService_SyncWindow(t *testing.T) {
	ctx := context.Background()
	from := time.Now().Add(-time.Hour)
	to := time.Now()

	t.Run("Shipped report flips order, tracking and ledger", func(t *testing.T) {
		f := newStatusSyncFixture()
		local := uploadedOrder(t, "ORD-1001", "ro-1", "WIDGET")
		shippedAt := time.Now().Add(-30 * time.Minute).Truncate(time.Second)

		tracking, err := fulfillment.NewItemTracking("ORD-1001", "WIDGET", "ri-1", "L42", decimal.NewFromInt(2))
		require.NoError(t, err)

		f.provider.On("ListOrders", ctx, mock.Anything).Return(singlePage(fulfillment.RemoteOrder{
			RemoteID:    "ro-1",
			OrderNumber: "ORD-1001",
			Status:      fulfillment.RemoteStatusShipped,
			UpdatedAt:   shippedAt,
		}), nil)
		f.orders.On("FindByNumber", ctx, "ORD-1001").Return(local, nil)
		f.trackings.On("FindByOrderNumber", ctx, "ORD-1001").Return([]fulfillment.ItemTracking{*tracking}, nil)
		f.trackings.On("Save", ctx, mock.MatchedBy(func(row *fulfillment.ItemTracking) bool {
			return row.Status == fulfillment.StatusShipped
		})).Return(nil)
		f.orders.On("Save", ctx, local).Return(nil)
		f.ledger.On("RecordRemoteShipment", ctx, "ORD-1001", "WIDGET", decimal.NewFromInt(2), shippedAt).Return(true, nil)

		summary, err := f.svc.SyncWindow(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessCount)
		assert.Equal(t, fulfillment.StatusShipped, local.Status)
		f.ledger.AssertExpectations(t)
	})

	t.Run("Stale read never regresses a shipped order", func(t *testing.T) {
		f := newStatusSyncFixture()
		local := uploadedOrder(t, "ORD-1002", "ro-2", "WIDGET")
		require.NoError(t, local.MarkShipped(time.Now()))

		f.provider.On("ListOrders", ctx, mock.Anything).Return(singlePage(fulfillment.RemoteOrder{
			RemoteID:    "ro-2",
			OrderNumber: "ORD-1002",
			Status:      fulfillment.RemoteStatusSubmitted,
		}), nil)
		f.orders.On("FindByNumber", ctx, "ORD-1002").Return(local, nil)

		summary, err := f.svc.SyncWindow(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SkippedCount)
		assert.Equal(t, fulfillment.StatusShipped, local.Status)
		f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Replayed event short-circuits on the idempotency key", func(t *testing.T) {
		f := newStatusSyncFixture()
		local := uploadedOrder(t, "ORD-1003", "ro-3", "WIDGET")

		remote := fulfillment.RemoteOrder{
			RemoteID:    "ro-3",
			OrderNumber: "ORD-1003",
			Status:      fulfillment.RemoteStatusHeld,
		}
		f.provider.On("ListOrders", ctx, mock.Anything).Return(singlePage(remote), nil).Twice()
		f.orders.On("FindByNumber", ctx, "ORD-1003").Return(local, nil).Once()
		f.orders.On("Save", ctx, local).Return(nil).Once()

		first, err := f.svc.SyncWindow(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, first.SuccessCount)
		assert.Equal(t, fulfillment.StatusOnHold, local.Status)

		second, err := f.svc.SyncWindow(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, second.SkippedCount)
		f.orders.AssertExpectations(t)
	})

	t.Run("Hold report lands from any state", func(t *testing.T) {
		f := newStatusSyncFixture()
		local := pendingOrder(t, "ORD-1004", "WIDGET")

		f.provider.On("ListOrders", ctx, mock.Anything).Return(singlePage(fulfillment.RemoteOrder{
			RemoteID:    "ro-4",
			OrderNumber: "ORD-1004",
			Status:      fulfillment.RemoteStatusHeld,
		}), nil)
		f.orders.On("FindByNumber", ctx, "ORD-1004").Return(local, nil)
		f.orders.On("Save", ctx, local).Return(nil)

		_, err := f.svc.SyncWindow(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, fulfillment.StatusOnHold, local.Status)
		assert.Equal(t, fulfillment.StatusPending, local.HeldFrom)
	})

	t.Run("Cancellation flips order and tracking", func(t *testing.T) {
		f := newStatusSyncFixture()
		local := uploadedOrder(t, "ORD-1005", "ro-5", "WIDGET")

		tracking, err := fulfillment.NewItemTracking("ORD-1005", "WIDGET", "ri-5", "L42", decimal.NewFromInt(2))
		require.NoError(t, err)

		f.provider.On("ListOrders", ctx, mock.Anything).Return(singlePage(fulfillment.RemoteOrder{
			RemoteID:    "ro-5",
			OrderNumber: "ORD-1005",
			Status:      fulfillment.RemoteStatusCancelled,
		}), nil)
		f.orders.On("FindByNumber", ctx, "ORD-1005").Return(local, nil)
		f.trackings.On("FindByOrderNumber", ctx, "ORD-1005").Return([]fulfillment.ItemTracking{*tracking}, nil)
		f.trackings.On("Save", ctx, mock.MatchedBy(func(row *fulfillment.ItemTracking) bool {
			return row.Status == fulfillment.StatusCancelled
		})).Return(nil)
		f.orders.On("Save", ctx, local).Return(nil)

		_, err = f.svc.SyncWindow(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, fulfillment.StatusCancelled, local.Status)
		f.ledger.AssertNotCalled(t, "RecordRemoteShipment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Records for unknown orders are skipped", func(t *testing.T) {
		f := newStatusSyncFixture()

		f.provider.On("ListOrders", ctx, mock.Anything).Return(singlePage(fulfillment.RemoteOrder{
			RemoteID:    "ro-6",
			OrderNumber: "NOT-OURS",
			Status:      fulfillment.RemoteStatusShipped,
		}), nil)
		f.orders.On("FindByNumber", ctx, "NOT-OURS").Return(nil, nil)

		summary, err := f.svc.SyncWindow(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SkippedCount)
	})

	t.Run("Pages are walked to the end", func(t *testing.T) {
		f := newStatusSyncFixture()

		f.provider.On("ListOrders", ctx, mock.MatchedBy(func(req *fulfillment.ListOrdersRequest) bool {
			return req.Page == 1
		})).Return(&fulfillment.OrderPage{
			Orders:  []fulfillment.RemoteOrder{{RemoteID: "ro-a", OrderNumber: "A", Status: fulfillment.RemoteStatusShipped}},
			HasMore: true, NextPage: 2,
		}, nil)
		f.provider.On("ListOrders", ctx, mock.MatchedBy(func(req *fulfillment.ListOrdersRequest) bool {
			return req.Page == 2
		})).Return(&fulfillment.OrderPage{
			Orders:  []fulfillment.RemoteOrder{{RemoteID: "ro-b", OrderNumber: "B", Status: fulfillment.RemoteStatusShipped}},
			HasMore: false,
		}, nil)
		f.orders.On("FindByNumber", ctx, mock.Anything).Return(nil, nil)

		summary, err := f.svc.SyncWindow(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.TotalCount)
		f.provider.AssertExpectations(t)
	})
}
