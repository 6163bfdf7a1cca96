package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
)

// MockTransactionRepository is a mock implementation of TransactionRepository
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

// MockBaselineRepository is a mock implementation of BaselineRepository
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

// MockLotRepository is a mock implementation of LotRepository
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

// MockEventPublisher collects published events for assertions
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEvents() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, len(m.events))
	copy(result, m.events)
	return result
}
