package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/order"
	"github.com/oms/backend/internal/domain/shared"
)

// MockProvider is a mock implementation of fulfillment.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateOrder(ctx context.Context, req *fulfillment.CreateOrderRequest) (*fulfillment.CreateOrderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.CreateOrderResponse), args.Error(1)
}

func (m *MockProvider) GetOrdersByNumber(ctx context.Context, orderNumber string) ([]fulfillment.RemoteOrder, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fulfillment.RemoteOrder), args.Error(1)
}

func (m *MockProvider) ListOrders(ctx context.Context, req *fulfillment.ListOrdersRequest) (*fulfillment.OrderPage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.OrderPage), args.Error(1)
}

func (m *MockProvider) DeleteOrderItem(ctx context.Context, remoteItemID string) error {
	args := m.Called(ctx, remoteItemID)
	return args.Error(0)
}

func (m *MockProvider) UpdateOrderItemSKU(ctx context.Context, remoteItemID, skuToken string) error {
	args := m.Called(ctx, remoteItemID, skuToken)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	args := m.Called(ctx, orderNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) NextPendingBatch(ctx context.Context, limit int) ([]order.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByStatus(ctx context.Context, status fulfillment.ShipmentStatus, filter shared.Filter) ([]order.Order, int64, error) {
	args := m.Called(ctx, status, filter)
	return args.Get(0).([]order.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) FindByRemoteID(ctx context.Context, remoteID string) (*order.Order, error) {
	args := m.Called(ctx, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

// MockTrackingRepository is a mock implementation of
// fulfillment.TrackingRepository
type MockTrackingRepository struct {
	mock.Mock
}

func (m *MockTrackingRepository) Save(ctx context.Context, tracking *fulfillment.ItemTracking) error {
	args := m.Called(ctx, tracking)
	return args.Error(0)
}

func (m *MockTrackingRepository) FindByOrderNumber(ctx context.Context, orderNumber string) ([]fulfillment.ItemTracking, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fulfillment.ItemTracking), args.Error(1)
}

func (m *MockTrackingRepository) FindByPair(ctx context.Context, orderNumber, baseSKU string) (*fulfillment.ItemTracking, error) {
	args := m.Called(ctx, orderNumber, baseSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.ItemTracking), args.Error(1)
}

func (m *MockTrackingRepository) FindByRemoteItemID(ctx context.Context, remoteItemID string) (*fulfillment.ItemTracking, error) {
	args := m.Called(ctx, remoteItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.ItemTracking), args.Error(1)
}

func (m *MockTrackingRepository) FindUploadedBySKU(ctx context.Context, baseSKU string) ([]fulfillment.ItemTracking, error) {
	args := m.Called(ctx, baseSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fulfillment.ItemTracking), args.Error(1)
}

// MockLotRepository is a mock implementation of inventory.LotRepository
type MockLotRepository struct {
	mock.Mock
}

func (m *MockLotRepository) FindActive(ctx context.Context, baseSKU string) (*inventory.Lot, error) {
	args := m.Called(ctx, baseSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Lot), args.Error(1)
}

func (m *MockLotRepository) FindAllActive(ctx context.Context) ([]inventory.Lot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Lot), args.Error(1)
}

func (m *MockLotRepository) FindBySKUAndLot(ctx context.Context, baseSKU, lotNumber string) (*inventory.Lot, error) {
	args := m.Called(ctx, baseSKU, lotNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Lot), args.Error(1)
}

func (m *MockLotRepository) FindBySKU(ctx context.Context, baseSKU string) ([]inventory.Lot, error) {
	args := m.Called(ctx, baseSKU)
	return args.Get(0).([]inventory.Lot), args.Error(1)
}

func (m *MockLotRepository) Save(ctx context.Context, lot *inventory.Lot) error {
	args := m.Called(ctx, lot)
	return args.Error(0)
}

func (m *MockLotRepository) Activate(ctx context.Context, baseSKU, lotNumber string) (*inventory.Lot, string, error) {
	args := m.Called(ctx, baseSKU, lotNumber)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*inventory.Lot), args.String(1), args.Error(2)
}

// MockTransactionRepository is a mock implementation of
// inventory.TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *inventory.InventoryTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) FindBySKU(ctx context.Context, baseSKU string, after, until time.Time) ([]inventory.InventoryTransaction, error) {
	args := m.Called(ctx, baseSKU, after, until)
	return args.Get(0).([]inventory.InventoryTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByOrderNumber(ctx context.Context, orderNumber string) ([]inventory.InventoryTransaction, error) {
	args := m.Called(ctx, orderNumber)
	return args.Get(0).([]inventory.InventoryTransaction), args.Error(1)
}

func (m *MockTransactionRepository) HasManualShipment(ctx context.Context, orderNumber string) (bool, error) {
	args := m.Called(ctx, orderNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.InventoryTransaction, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]inventory.InventoryTransaction), args.Error(1)
}

func (m *MockTransactionRepository) DistinctSKUs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

// MockBaselineRepository is a mock implementation of
// inventory.BaselineRepository
type MockBaselineRepository struct {
	mock.Mock
}

func (m *MockBaselineRepository) Save(ctx context.Context, baseline *inventory.StockBaseline) error {
	args := m.Called(ctx, baseline)
	return args.Error(0)
}

func (m *MockBaselineRepository) FindLatest(ctx context.Context, baseSKU string, asOf time.Time) (*inventory.StockBaseline, error) {
	args := m.Called(ctx, baseSKU, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockBaseline), args.Error(1)
}

// MockDuplicateAlertRepository is a mock implementation of
// fulfillment.DuplicateAlertRepository
type MockDuplicateAlertRepository struct {
	mock.Mock
}

func (m *MockDuplicateAlertRepository) Save(ctx context.Context, alert *fulfillment.DuplicateAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockDuplicateAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.DuplicateAlert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.DuplicateAlert), args.Error(1)
}

func (m *MockDuplicateAlertRepository) FindOpenByPair(ctx context.Context, orderNumber, baseSKU string) (*fulfillment.DuplicateAlert, error) {
	args := m.Called(ctx, orderNumber, baseSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.DuplicateAlert), args.Error(1)
}

func (m *MockDuplicateAlertRepository) FindByStatus(ctx context.Context, status fulfillment.DuplicateAlertStatus, filter shared.Filter) ([]fulfillment.DuplicateAlert, int64, error) {
	args := m.Called(ctx, status, filter)
	return args.Get(0).([]fulfillment.DuplicateAlert), args.Get(1).(int64), args.Error(2)
}

// MockMismatchAlertRepository is a mock implementation of
// fulfillment.MismatchAlertRepository
type MockMismatchAlertRepository struct {
	mock.Mock
}

func (m *MockMismatchAlertRepository) Save(ctx context.Context, alert *fulfillment.MismatchAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockMismatchAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.MismatchAlert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.MismatchAlert), args.Error(1)
}

func (m *MockMismatchAlertRepository) FindUnacknowledged(ctx context.Context, filter shared.Filter) ([]fulfillment.MismatchAlert, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]fulfillment.MismatchAlert), args.Get(1).(int64), args.Error(2)
}

func (m *MockMismatchAlertRepository) ExistsOpen(ctx context.Context, kind fulfillment.MismatchKind, orderNumber, baseSKU string) (bool, error) {
	args := m.Called(ctx, kind, orderNumber, baseSKU)
	return args.Bool(0), args.Error(1)
}

// MockExclusionRepository is a mock implementation of
// fulfillment.ExclusionRepository
type MockExclusionRepository struct {
	mock.Mock
}

func (m *MockExclusionRepository) Save(ctx context.Context, record *fulfillment.ExclusionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockExclusionRepository) Exists(ctx context.Context, orderNumber, baseSKU string) (bool, error) {
	args := m.Called(ctx, orderNumber, baseSKU)
	return args.Bool(0), args.Error(1)
}

func (m *MockExclusionRepository) FindByPair(ctx context.Context, orderNumber, baseSKU string) (*fulfillment.ExclusionRecord, error) {
	args := m.Called(ctx, orderNumber, baseSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.ExclusionRecord), args.Error(1)
}

func (m *MockExclusionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]fulfillment.ExclusionRecord, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]fulfillment.ExclusionRecord), args.Get(1).(int64), args.Error(2)
}

// MockShipmentRecorder is a mock implementation of ShipmentRecorder
type MockShipmentRecorder struct {
	mock.Mock
}

func (m *MockShipmentRecorder) RecordRemoteShipment(ctx context.Context, orderNumber, baseSKU string, quantity decimal.Decimal, occurredAt time.Time) (bool, error) {
	args := m.Called(ctx, orderNumber, baseSKU, quantity, occurredAt)
	return args.Bool(0), args.Error(1)
}

// MockIngestionSource is a mock implementation of IngestionSource
type MockIngestionSource struct {
	mock.Mock
}

func (m *MockIngestionSource) FetchNew(ctx context.Context, since time.Time, limit int) ([]IncomingOrder, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]IncomingOrder), args.Error(1)
}

// MockSnapshotArchiver is a mock implementation of SnapshotArchiver
type MockSnapshotArchiver struct {
	mock.Mock
}

func (m *MockSnapshotArchiver) Archive(ctx context.Context, snapshot *LedgerSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// memoryIdempotency is an in-memory shared.IdempotencyStore for tests
type memoryIdempotency struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{seen: make(map[string]bool)}
}

func (s *memoryIdempotency) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *memoryIdempotency) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

func (s *memoryIdempotency) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*memoryIdempotency)(nil)
