package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/order"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

// OrderHandler exposes read access to orders and the hold/release controls.
// Everything else about an order is driven by the sync tasks, not by HTTP.
type OrderHandler struct {
	BaseHandler
	orders order.Repository
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders order.Repository) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// OrderListRequest represents order list parameters
type OrderListRequest struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty"`
}

// HoldRequest represents the hold command body
type HoldRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=255" example:"Customer asked to delay shipment"`
}

// OrderListResponse represents an order in list views
// @Description Order summary without lines
type OrderListResponse struct {
	ID          string     `json:"id"`
	OrderNumber string     `json:"order_number" example:"SO-20260301-0042"`
	Status      string     `json:"status" example:"PENDING"`
	RemoteID    string     `json:"remote_id,omitempty"`
	HoldReason  string     `json:"hold_reason,omitempty"`
	LineCount   int        `json:"line_count"`
	UploadedAt  *time.Time `json:"uploaded_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OrderResponse represents a full order
// @Description Order with its lines
type OrderResponse struct {
	ID            string              `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        string              `json:"status"`
	RemoteID      string              `json:"remote_id,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
	HoldReason    string              `json:"hold_reason,omitempty"`
	HeldFrom      string              `json:"held_from,omitempty"`
	Lines         []OrderLineResponse `json:"lines"`
	UploadedAt    *time.Time          `json:"uploaded_at,omitempty"`
	ShippedAt     *time.Time          `json:"shipped_at,omitempty"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// OrderLineResponse represents one order line
type OrderLineResponse struct {
	ID        string          `json:"id"`
	RawToken  string          `json:"raw_token" example:"WIDGET-1-L3"`
	BaseSKU   string          `json:"base_sku" example:"WIDGET-1"`
	LotNumber string          `json:"lot_number,omitempty" example:"L3"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func toOrderListResponse(o *order.Order) OrderListResponse {
	return OrderListResponse{
		ID:          o.ID.String(),
		OrderNumber: o.OrderNumber,
		Status:      o.Status.String(),
		RemoteID:    o.RemoteID,
		HoldReason:  o.HoldReason,
		LineCount:   len(o.Lines),
		UploadedAt:  o.UploadedAt,
		ShippedAt:   o.ShippedAt,
		CreatedAt:   o.CreatedAt,
	}
}

func toOrderResponse(o *order.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, line := range o.Lines {
		lines[i] = OrderLineResponse{
			ID:        line.ID.String(),
			RawToken:  line.RawToken,
			BaseSKU:   line.BaseSKU,
			LotNumber: line.LotNumber,
			Quantity:  line.Quantity,
		}
	}
	return OrderResponse{
		ID:            o.ID.String(),
		OrderNumber:   o.OrderNumber,
		Status:        o.Status.String(),
		RemoteID:      o.RemoteID,
		FailureReason: o.FailureReason,
		HoldReason:    o.HoldReason,
		HeldFrom:      o.HeldFrom.String(),
		Lines:         lines,
		UploadedAt:    o.UploadedAt,
		ShippedAt:     o.ShippedAt,
		CancelledAt:   o.CancelledAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// List godoc
// @Summary      List orders
// @Description  Returns orders in a lifecycle status, pending ones by default
// @Tags         orders
// @Produce      json
// @Param        status query string false "Order status" Enums(PENDING, UPLOADED, SHIPPED, CANCELLED, FAILED, ON_HOLD) default(PENDING)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]OrderListResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var req OrderListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	status := fulfillment.StatusPending
	if req.Status != "" {
		status = fulfillment.ShipmentStatus(strings.ToUpper(req.Status))
		if !status.IsValid() {
			h.BadRequest(c, "Unknown order status")
			return
		}
	}

	filter := listFilter(req.ListRequest)
	orders, total, err := h.orders.FindByStatus(c.Request.Context(), status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]OrderListResponse, len(orders))
	for i := range orders {
		responses[i] = toOrderListResponse(&orders[i])
	}
	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// GetByNumber godoc
// @Summary      Get an order
// @Description  Returns an order with its lines by order number
// @Tags         orders
// @Produce      json
// @Param        number path string true "Order number"
// @Success      200 {object} dto.Response{data=OrderResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{number} [get]
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	o, err := h.orders.FindByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if o == nil {
		h.NotFound(c, "Order not found")
		return
	}

	h.Success(c, toOrderResponse(o))
}

// Hold godoc
// @Summary      Hold an order
// @Description  Pauses an order. A held order is skipped by upload and lot re-targeting until released.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        number path string true "Order number"
// @Param        request body HoldRequest true "Hold reason"
// @Success      200 {object} dto.Response{data=OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{number}/hold [post]
func (h *OrderHandler) Hold(c *gin.Context) {
	var req HoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	o, err := h.orders.FindByNumber(ctx, c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if o == nil {
		h.NotFound(c, "Order not found")
		return
	}

	if err := o.Hold(req.Reason); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	if err := h.orders.Save(ctx, o); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponse(o))
}

// Release godoc
// @Summary      Release an order
// @Description  Returns a held order to the status the hold interrupted
// @Tags         orders
// @Produce      json
// @Param        number path string true "Order number"
// @Success      200 {object} dto.Response{data=OrderResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{number}/release [post]
func (h *OrderHandler) Release(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.orders.FindByNumber(ctx, c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if o == nil {
		h.NotFound(c, "Order not found")
		return
	}

	if err := o.Release(); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	if err := h.orders.Save(ctx, o); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponse(o))
}
