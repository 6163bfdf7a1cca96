// Package shipwire implements the fulfillment.Provider port against the
// remote provider's HTTP API. Every call passes through the shared call
// budget, classifies failures into the domain's transient/permanent
// taxonomy, and is logged with its attempt count and final outcome.
package shipwire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/infrastructure/logger"
	"github.com/oms/backend/internal/infrastructure/ratelimit"
	"github.com/oms/backend/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the provider (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Operation names used in logs and metrics
const (
	opCreateOrder       = "create_order"
	opGetOrdersByNumber = "get_orders_by_number"
	opListOrders        = "list_orders"
	opDeleteOrderItem   = "delete_order_item"
	opUpdateOrderItem   = "update_order_item_sku"
)

// errNotFound marks a 404 from the provider; operation methods translate it
// into the lookup sentinel matching their resource.
var errNotFound = errors.New("shipwire: resource not found")

// Client implements the fulfillment.Provider port over the provider's HTTP
// API. Send pacing is owned here: one budget slot per physical request,
// including retries.
type Client struct {
	config     *Config
	httpClient *http.Client
	budget     *ratelimit.Budget
	logger     *zap.Logger
	metrics    *telemetry.SyncMetrics
}

// NewClient creates a new provider client with the given configuration
func NewClient(config *Config, log *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		budget: ratelimit.NewBudget(config.RequestsPerMinute, config.Burst),
		logger: log,
	}, nil
}

// SetMetrics sets the sync metrics collector
func (c *Client) SetMetrics(metrics *telemetry.SyncMetrics) {
	c.metrics = metrics
}

// Budget exposes the client's call budget for stats reporting
func (c *Client) Budget() *ratelimit.Budget {
	return c.budget
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// CreateOrder creates an order record with its line items
func (c *Client) CreateOrder(ctx context.Context, req *fulfillment.CreateOrderRequest) (*fulfillment.CreateOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload := CreateOrderPayload{
		OrderNumber: req.OrderNumber,
		Lines:       make([]CreateLinePayload, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		payload.Lines = append(payload.Lines, CreateLinePayload{
			SKU:      line.SKUToken,
			Quantity: line.Quantity.String(),
		})
	}

	body, err := c.doRequest(ctx, opCreateOrder, http.MethodPost, "/orders", nil, payload)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: create endpoint answered 404", fulfillment.ErrProviderInvalidResponse)
		}
		return nil, err
	}

	var resp OrderEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", fulfillment.ErrProviderInvalidResponse, err)
	}
	if resp.Order == nil || resp.Order.ID == "" {
		return nil, fmt.Errorf("%w: create response missing order", fulfillment.ErrProviderInvalidResponse)
	}

	out := &fulfillment.CreateOrderResponse{
		RemoteID: resp.Order.ID,
		Items:    make([]fulfillment.RemoteOrderItem, 0, len(resp.Order.Items)),
	}
	for _, item := range resp.Order.Items {
		out.Items = append(out.Items, toRemoteOrderItem(item))
	}
	return out, nil
}

// GetOrdersByNumber returns every record carrying the exact order number.
// A 404 from the provider means no records and is not an error.
func (c *Client) GetOrdersByNumber(ctx context.Context, orderNumber string) ([]fulfillment.RemoteOrder, error) {
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: empty order number", fulfillment.ErrProviderRejected)
	}

	query := url.Values{}
	query.Set("order_number", orderNumber)

	body, err := c.doRequest(ctx, opGetOrdersByNumber, http.MethodGet, "/orders", query, nil)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return []fulfillment.RemoteOrder{}, nil
		}
		return nil, err
	}

	var resp OrdersEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", fulfillment.ErrProviderInvalidResponse, err)
	}

	orders := make([]fulfillment.RemoteOrder, 0, len(resp.Orders))
	for i := range resp.Orders {
		orders = append(orders, toRemoteOrder(&resp.Orders[i]))
	}
	return orders, nil
}

// ListOrders returns records changed inside a window, paged
func (c *Client) ListOrders(ctx context.Context, req *fulfillment.ListOrdersRequest) (*fulfillment.OrderPage, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", fulfillment.ErrProviderRejected, err)
	}

	query := url.Values{}
	query.Set("updated_from", req.UpdatedFrom.UTC().Format(time.RFC3339))
	query.Set("updated_to", req.UpdatedTo.UTC().Format(time.RFC3339))
	query.Set("page", strconv.Itoa(req.Page))
	query.Set("page_size", strconv.Itoa(req.PageSize))

	body, err := c.doRequest(ctx, opListOrders, http.MethodGet, "/orders", query, nil)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: list endpoint answered 404", fulfillment.ErrProviderInvalidResponse)
		}
		return nil, err
	}

	var resp OrdersEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", fulfillment.ErrProviderInvalidResponse, err)
	}

	page := &fulfillment.OrderPage{
		Orders:     make([]fulfillment.RemoteOrder, 0, len(resp.Orders)),
		TotalCount: resp.Total,
		HasMore:    resp.HasMore,
		NextPage:   req.Page + 1,
	}
	for i := range resp.Orders {
		page.Orders = append(page.Orders, toRemoteOrder(&resp.Orders[i]))
	}
	return page, nil
}

// ---------------------------------------------------------------------------
// Item Operations
// ---------------------------------------------------------------------------

// DeleteOrderItem removes a line-item record
func (c *Client) DeleteOrderItem(ctx context.Context, remoteItemID string) error {
	if remoteItemID == "" {
		return fmt.Errorf("%w: empty item id", fulfillment.ErrProviderRejected)
	}

	_, err := c.doRequest(ctx, opDeleteOrderItem, http.MethodDelete,
		"/order-items/"+url.PathEscape(remoteItemID), nil, nil)
	if errors.Is(err, errNotFound) {
		return fulfillment.ErrRemoteItemNotFound
	}
	return err
}

// UpdateOrderItemSKU rewrites the SKU token on a line-item record
func (c *Client) UpdateOrderItemSKU(ctx context.Context, remoteItemID, skuToken string) error {
	if remoteItemID == "" || skuToken == "" {
		return fmt.Errorf("%w: empty item id or sku token", fulfillment.ErrProviderRejected)
	}

	_, err := c.doRequest(ctx, opUpdateOrderItem, http.MethodPut,
		"/order-items/"+url.PathEscape(remoteItemID), nil, UpdateItemPayload{SKU: skuToken})
	if errors.Is(err, errNotFound) {
		return fulfillment.ErrRemoteItemNotFound
	}
	return err
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs one logical call against the provider. Throttled
// responses are retried in place: Retry-After is honored when present,
// otherwise the backoff doubles per attempt, and every physical attempt
// consumes its own budget slot.
func (c *Client) doRequest(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("shipwire: failed to encode request: %w", err)
		}
	}

	start := time.Now()
	var (
		body     []byte
		err      error
		attempts int
	)
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		attempts = attempt

		if err = c.acquireSlot(ctx); err != nil {
			break
		}

		var retryAfter time.Duration
		body, retryAfter, err = c.attempt(ctx, method, path, query, bodyBytes)
		if !errors.Is(err, fulfillment.ErrProviderRateLimited) || attempt == c.config.MaxAttempts {
			break
		}

		wait := retryAfter
		if wait <= 0 {
			wait = c.config.InitialBackoff << (attempt - 1)
		}
		select {
		case <-ctx.Done():
			err = fmt.Errorf("%w: %v", fulfillment.ErrProviderTimeout, ctx.Err())
		case <-time.After(wait):
			continue
		}
		break
	}

	c.observe(ctx, op, attempts, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// acquireSlot blocks on the call budget and records the wait
func (c *Client) acquireSlot(ctx context.Context) error {
	waitStart := time.Now()
	if err := c.budget.Acquire(ctx); err != nil {
		return fmt.Errorf("%w: %v", fulfillment.ErrProviderTimeout, err)
	}
	if c.metrics != nil {
		c.metrics.RecordRateLimitWait(ctx, time.Since(waitStart))
	}
	return nil
}

// attempt performs a single HTTP request and maps the response status into
// the domain error taxonomy. The second return value is the provider's
// Retry-After hint on throttled responses.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, bodyBytes []byte) ([]byte, time.Duration, error) {
	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if bodyBytes != nil {
		reader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("shipwire: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, fmt.Errorf("%w: %v", fulfillment.ErrProviderTimeout, err)
		}
		return nil, 0, fmt.Errorf("%w: %v", fulfillment.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read response: %v", fulfillment.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return body, 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("%w: HTTP 429", fulfillment.ErrProviderRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, fmt.Errorf("%w: HTTP %d%s", fulfillment.ErrProviderAuthFailed, resp.StatusCode, errorSuffix(body))
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, errNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, 0, fmt.Errorf("%w: HTTP %d%s", fulfillment.ErrProviderUnavailable, resp.StatusCode, errorSuffix(body))
	default:
		return nil, 0, fmt.Errorf("%w: HTTP %d%s", fulfillment.ErrProviderRejected, resp.StatusCode, errorSuffix(body))
	}
}

// observe records the call's metrics and audit log entry
func (c *Client) observe(ctx context.Context, op string, attempts int, elapsed time.Duration, err error) {
	outcome := outcomeFor(err)
	if c.metrics != nil {
		c.metrics.RecordRemoteCall(ctx, op, outcome)
		c.metrics.RecordRemoteRetries(ctx, op, int64(attempts-1))
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", elapsed),
		zap.String("outcome", string(outcome)),
	}
	if err != nil && !errors.Is(err, errNotFound) {
		c.logger.Warn("Remote call failed", append(fields, zap.Error(err))...)
		return
	}
	c.logger.Info("Remote call completed", fields...)
}

// outcomeFor classifies a final call error for metrics labeling
func outcomeFor(err error) telemetry.CallOutcome {
	switch {
	case err == nil:
		return telemetry.CallOutcomeSuccess
	case errors.Is(err, errNotFound):
		return telemetry.CallOutcomeNotFound
	case fulfillment.IsPermanent(err):
		return telemetry.CallOutcomePermanent
	default:
		return telemetry.CallOutcomeTransient
	}
}

// isTimeout reports whether a transport error was a timeout
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// parseRetryAfter parses a Retry-After header value. Both the seconds form
// and the HTTP-date form occur in the wild; anything unparseable means no
// hint.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

// errorSuffix extracts the provider's error code and message for wrapping
func errorSuffix(body []byte) string {
	var envelope ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return ""
	}
	if envelope.Error.Message == "" {
		return fmt.Sprintf(": %s", envelope.Error.Code)
	}
	return fmt.Sprintf(": %s - %s", envelope.Error.Code, envelope.Error.Message)
}

// Ensure Client implements the fulfillment.Provider port
var _ fulfillment.Provider = (*Client)(nil)
