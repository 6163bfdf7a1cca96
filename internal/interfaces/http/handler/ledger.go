package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appinventory "github.com/oms/backend/internal/application/inventory"
)

// LedgerHandler exposes the stock ledger: replayed positions, transaction
// history, shipping averages and the manual entry points
type LedgerHandler struct {
	BaseHandler
	service *appinventory.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(service *appinventory.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// timeQuery parses an optional RFC 3339 query parameter. Absent parameters
// come back as the zero time with ok true.
func timeQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Stock godoc
// @Summary      Stock on hand
// @Description  Replays the ledger from the latest baseline and returns the stock position of a SKU
// @Tags         ledger
// @Produce      json
// @Param        sku path string true "Base SKU"
// @Param        as_of query string false "Position timestamp, RFC 3339; defaults to now"
// @Success      200 {object} dto.Response{data=appinventory.StockResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /ledger/{sku} [get]
func (h *LedgerHandler) Stock(c *gin.Context) {
	asOf, ok := timeQuery(c, "as_of")
	if !ok {
		h.BadRequest(c, "as_of must be an RFC 3339 timestamp")
		return
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	stock, err := h.service.StockOnHand(c.Request.Context(), c.Param("sku"), asOf)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stock)
}

// Transactions godoc
// @Summary      Ledger transactions
// @Description  Returns the ledger rows of a SKU inside a time window, oldest first
// @Tags         ledger
// @Produce      json
// @Param        sku path string true "Base SKU"
// @Param        after query string false "Window start, RFC 3339"
// @Param        until query string false "Window end, RFC 3339; defaults to now"
// @Success      200 {object} dto.Response{data=[]appinventory.TransactionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /ledger/{sku}/transactions [get]
func (h *LedgerHandler) Transactions(c *gin.Context) {
	after, ok := timeQuery(c, "after")
	if !ok {
		h.BadRequest(c, "after must be an RFC 3339 timestamp")
		return
	}
	until, ok := timeQuery(c, "until")
	if !ok {
		h.BadRequest(c, "until must be an RFC 3339 timestamp")
		return
	}

	txs, err := h.service.ListTransactions(c.Request.Context(), c.Param("sku"), after, until)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, txs)
}

// WeeklyAverage godoc
// @Summary      Weekly shipping average
// @Description  Returns the rolling weekly average of shipped quantity for a SKU
// @Tags         ledger
// @Produce      json
// @Param        sku path string true "Base SKU"
// @Param        weeks query int false "Window length in weeks" default(6)
// @Success      200 {object} dto.Response{data=appinventory.WeeklyAverageResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /ledger/{sku}/weekly-average [get]
func (h *LedgerHandler) WeeklyAverage(c *gin.Context) {
	weeks := 0
	if raw := c.Query("weeks"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "weeks must be a positive integer")
			return
		}
		weeks = parsed
	}

	avg, err := h.service.WeeklyAverage(c.Request.Context(), c.Param("sku"), weeks)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, avg)
}

// CreateAdjustment godoc
// @Summary      Record a manual adjustment
// @Description  Appends a manual ledger entry. A MANUAL_SHIPMENT must name its order; it then blocks the remote-reported deduction for that order.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        request body appinventory.AdjustmentRequest true "Adjustment"
// @Success      201 {object} dto.Response{data=appinventory.TransactionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /ledger/adjustments [post]
func (h *LedgerHandler) CreateAdjustment(c *gin.Context) {
	var req appinventory.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	tx, err := h.service.RecordAdjustment(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, tx)
}

// CreateBaseline godoc
// @Summary      Record a stock baseline
// @Description  Writes a protected stock snapshot and returns the position replayed from it. Replay never reaches past the latest baseline.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        request body appinventory.BaselineRequest true "Baseline"
// @Success      201 {object} dto.Response{data=appinventory.StockResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /ledger/baselines [post]
func (h *LedgerHandler) CreateBaseline(c *gin.Context) {
	var req appinventory.BaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.service.RecordBaseline(ctx, req); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	stock, err := h.service.StockOnHand(ctx, req.BaseSKU, time.Now())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, stock)
}
