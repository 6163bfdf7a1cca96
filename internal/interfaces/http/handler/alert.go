package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

// AlertHandler exposes duplicate and mismatch alerts for operator review.
// Duplicate alerts resolve through the resolver so the exclusion bookkeeping
// stays consistent; mismatch alerts only carry an acknowledged flag.
type AlertHandler struct {
	BaseHandler
	resolver   *appsync.DuplicateResolver
	alerts     fulfillment.DuplicateAlertRepository
	mismatches fulfillment.MismatchAlertRepository
	exclusions fulfillment.ExclusionRepository
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(
	resolver *appsync.DuplicateResolver,
	alerts fulfillment.DuplicateAlertRepository,
	mismatches fulfillment.MismatchAlertRepository,
	exclusions fulfillment.ExclusionRepository,
) *AlertHandler {
	return &AlertHandler{
		resolver:   resolver,
		alerts:     alerts,
		mismatches: mismatches,
		exclusions: exclusions,
	}
}

// DuplicateAlertListRequest represents duplicate alert list parameters
type DuplicateAlertListRequest struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty"`
}

// DuplicateAlertResponse represents a duplicate alert
// @Description Duplicate alert awaiting or past operator review
type DuplicateAlertResponse struct {
	ID            string     `json:"id"`
	OrderNumber   string     `json:"order_number" example:"SO-20260301-0042"`
	BaseSKU       string     `json:"base_sku" example:"WIDGET-1"`
	RemoteItemIDs []string   `json:"remote_item_ids"`
	KeptItemID    string     `json:"kept_item_id,omitempty"`
	Status        string     `json:"status" example:"OPEN"`
	Detail        string     `json:"detail,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MismatchAlertResponse represents a mismatch alert
// @Description Data inconsistency surfaced instead of auto-corrected
type MismatchAlertResponse struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind" example:"LOT"`
	OrderNumber  string    `json:"order_number"`
	BaseSKU      string    `json:"base_sku"`
	Expected     string    `json:"expected,omitempty"`
	Found        string    `json:"found,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExclusionResponse represents a permanent duplicate-processing exclusion
// @Description Permanently excluded order/SKU pair
type ExclusionResponse struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"order_number"`
	BaseSKU     string    `json:"base_sku"`
	Reason      string    `json:"reason"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExcludeRequest represents the exclusion command body
type ExcludeRequest struct {
	Reason    string `json:"reason" binding:"required,min=1,max=500"`
	CreatedBy string `json:"created_by" binding:"omitempty,max=64"`
}

func toDuplicateAlertResponse(alert *fulfillment.DuplicateAlert) DuplicateAlertResponse {
	return DuplicateAlertResponse{
		ID:            alert.ID.String(),
		OrderNumber:   alert.OrderNumber,
		BaseSKU:       alert.BaseSKU,
		RemoteItemIDs: alert.GetRemoteItemIDs(),
		KeptItemID:    alert.KeptItemID,
		Status:        alert.Status.String(),
		Detail:        alert.Detail,
		ResolvedAt:    alert.ResolvedAt,
		CreatedAt:     alert.CreatedAt,
	}
}

func toMismatchAlertResponse(alert *fulfillment.MismatchAlert) MismatchAlertResponse {
	return MismatchAlertResponse{
		ID:           alert.ID.String(),
		Kind:         alert.Kind.String(),
		OrderNumber:  alert.OrderNumber,
		BaseSKU:      alert.BaseSKU,
		Expected:     alert.Expected,
		Found:        alert.Found,
		Detail:       alert.Detail,
		Acknowledged: alert.Acknowledged,
		CreatedAt:    alert.CreatedAt,
	}
}

func toExclusionResponse(record *fulfillment.ExclusionRecord) ExclusionResponse {
	return ExclusionResponse{
		ID:          record.ID.String(),
		OrderNumber: record.OrderNumber,
		BaseSKU:     record.BaseSKU,
		Reason:      record.Reason,
		CreatedBy:   record.CreatedBy,
		CreatedAt:   record.CreatedAt,
	}
}

// List godoc
// @Summary      List duplicate alerts
// @Description  Returns duplicate alerts in a review status, open ones by default
// @Tags         alerts
// @Produce      json
// @Param        status query string false "Alert status" Enums(OPEN, EXCLUDED, AUTO_RESOLVED, MANUALLY_DELETED) default(OPEN)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]DuplicateAlertResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	var req DuplicateAlertListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	status := fulfillment.AlertStatusOpen
	if req.Status != "" {
		status = fulfillment.DuplicateAlertStatus(strings.ToUpper(req.Status))
		if !status.IsValid() {
			h.BadRequest(c, "Unknown alert status")
			return
		}
	}

	filter := listFilter(req.ListRequest)
	alerts, total, err := h.alerts.FindByStatus(c.Request.Context(), status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]DuplicateAlertResponse, len(alerts))
	for i := range alerts {
		responses[i] = toDuplicateAlertResponse(&alerts[i])
	}
	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// Exclude godoc
// @Summary      Exclude a duplicate pair
// @Description  Permanently removes the alert's order/SKU pair from duplicate processing and resolves the alert. Exclusions cannot be undone.
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        id path string true "Alert ID" format(uuid)
// @Param        request body ExcludeRequest true "Exclusion reason"
// @Success      200 {object} dto.Response{data=ExclusionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /alerts/{id}/exclude [post]
func (h *AlertHandler) Exclude(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid alert ID")
		return
	}

	var req ExcludeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.resolver.ExcludePair(c.Request.Context(), alertID, req.Reason, req.CreatedBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toExclusionResponse(record))
}

// ConfirmDeletion godoc
// @Summary      Confirm manual deletion
// @Description  Resolves an alert after the operator removed the surplus remote records outside the system
// @Tags         alerts
// @Produce      json
// @Param        id path string true "Alert ID" format(uuid)
// @Success      200 {object} dto.Response{data=DuplicateAlertResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /alerts/{id}/confirm-deletion [post]
func (h *AlertHandler) ConfirmDeletion(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid alert ID")
		return
	}

	ctx := c.Request.Context()
	if err := h.resolver.ConfirmDeletion(ctx, alertID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	alert, err := h.alerts.FindByID(ctx, alertID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if alert == nil {
		h.NotFound(c, "Alert not found")
		return
	}

	h.Success(c, toDuplicateAlertResponse(alert))
}

// Mismatches godoc
// @Summary      List mismatch alerts
// @Description  Returns unacknowledged mismatch alerts, newest first
// @Tags         alerts
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]MismatchAlertResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /alerts/mismatches [get]
func (h *AlertHandler) Mismatches(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := listFilter(req)
	alerts, total, err := h.mismatches.FindUnacknowledged(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]MismatchAlertResponse, len(alerts))
	for i := range alerts {
		responses[i] = toMismatchAlertResponse(&alerts[i])
	}
	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// AcknowledgeMismatch godoc
// @Summary      Acknowledge a mismatch alert
// @Description  Marks a mismatch alert as reviewed; the underlying data is not changed
// @Tags         alerts
// @Produce      json
// @Param        id path string true "Alert ID" format(uuid)
// @Success      200 {object} dto.Response{data=MismatchAlertResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /alerts/mismatches/{id}/acknowledge [post]
func (h *AlertHandler) AcknowledgeMismatch(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid alert ID")
		return
	}

	ctx := c.Request.Context()
	alert, err := h.mismatches.FindByID(ctx, alertID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if alert == nil {
		h.NotFound(c, "Alert not found")
		return
	}

	alert.Acknowledge()
	if err := h.mismatches.Save(ctx, alert); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toMismatchAlertResponse(alert))
}

// Exclusions godoc
// @Summary      List exclusions
// @Description  Returns permanently excluded order/SKU pairs, newest first
// @Tags         exclusions
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]ExclusionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /exclusions [get]
func (h *AlertHandler) Exclusions(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := listFilter(req)
	records, total, err := h.exclusions.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]ExclusionResponse, len(records))
	for i := range records {
		responses[i] = toExclusionResponse(&records[i])
	}
	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}
