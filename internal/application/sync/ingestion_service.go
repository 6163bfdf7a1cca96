package sync

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/order"
	"github.com/oms/backend/internal/domain/shared"
)

const (
	// DefaultIngestionLimit is how many incoming orders one ingestion tick
	// accepts from the source
	DefaultIngestionLimit = 100
)

// IncomingOrder is one order as the upstream source hands it over. Tokens
// arrive raw; decomposition into base SKU and lot happens when the local
// order is built.
type IncomingOrder struct {
	// OrderNumber is the external order number
	OrderNumber string
	// Lines holds the raw line items
	Lines []IncomingLine
	// ReceivedAt is when the source produced the order
	ReceivedAt time.Time
}

// IncomingLine is one raw line item from the source
type IncomingLine struct {
	// SKUToken is the SKU string exactly as the source wrote it
	SKUToken string
	// Quantity is the line quantity
	Quantity decimal.Decimal
}

// IngestionSource hands over new orders from the upstream system. The
// engine never parses source files itself; the adapter behind this port
// owns format and location.
type IngestionSource interface {
	// FetchNew returns up to limit orders produced at or after since.
	// Re-reads of the same window are expected; ingestion dedupes by
	// order number.
	FetchNew(ctx context.Context, since time.Time, limit int) ([]IncomingOrder, error)
}

// IngestionService pulls new orders from the source into the local store
// as pending orders. Re-reading the same source window is harmless: an
// order number that already exists locally is skipped.
type IngestionService struct {
	source IngestionSource
	orders order.Repository
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(source IngestionSource, orders order.Repository) *IngestionService {
	return &IngestionService{
		source: source,
		orders: orders,
	}
}

// Ingest fetches one batch from the source and stores the orders it does
// not hold yet. A malformed order fails alone; the rest of the batch goes
// through.
func (s *IngestionService) Ingest(ctx context.Context, since time.Time, limit int) (*RunSummary, error) {
	if limit <= 0 {
		limit = DefaultIngestionLimit
	}
	summary := NewRunSummary()

	incoming, err := s.source.FetchNew(ctx, since, limit)
	if err != nil {
		return summary.Finish(), err
	}

	for i := range incoming {
		if ctx.Err() != nil {
			return summary.Finish(), ctx.Err()
		}
		s.ingestOne(ctx, &incoming[i], summary)
	}
	return summary.Finish(), nil
}

// ingestOne stores one incoming order unless it already exists
func (s *IngestionService) ingestOne(ctx context.Context, incoming *IncomingOrder, summary *RunSummary) {
	exists, err := s.orders.ExistsByNumber(ctx, incoming.OrderNumber)
	if err != nil {
		summary.Fail(incoming.OrderNumber, err)
		return
	}
	if exists {
		summary.Skip()
		return
	}

	o, err := order.NewOrder(incoming.OrderNumber)
	if err != nil {
		summary.Fail(incoming.OrderNumber, err)
		return
	}
	for _, line := range incoming.Lines {
		if _, err := o.AddLine(line.SKUToken, line.Quantity); err != nil {
			summary.Fail(incoming.OrderNumber, err)
			return
		}
	}

	if err := s.orders.Save(ctx, o); err != nil {
		// A concurrent worker ingested the same number between the
		// existence check and the insert. Same outcome as exists above.
		if errors.Is(err, shared.ErrAlreadyExists) {
			summary.Skip()
			return
		}
		summary.Fail(incoming.OrderNumber, err)
		return
	}
	summary.Success()
}
