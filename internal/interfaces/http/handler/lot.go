package handler

import (
	"github.com/gin-gonic/gin"

	appinventory "github.com/oms/backend/internal/application/inventory"
)

// LotHandler exposes lot tracking: which lot ships for a SKU and the
// activation switch
type LotHandler struct {
	BaseHandler
	service *appinventory.LotService
}

// NewLotHandler creates a new LotHandler
func NewLotHandler(service *appinventory.LotService) *LotHandler {
	return &LotHandler{service: service}
}

// ActivateLotRequest represents the lot activation command body
type ActivateLotRequest struct {
	LotNumber string `json:"lot_number" binding:"required,min=1,max=64" example:"L3"`
}

// List godoc
// @Summary      List lots
// @Description  Returns every lot recorded for a SKU, newest first
// @Tags         lots
// @Produce      json
// @Param        sku path string true "Base SKU"
// @Success      200 {object} dto.Response{data=[]appinventory.LotResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /lots/{sku} [get]
func (h *LotHandler) List(c *gin.Context) {
	lots, err := h.service.Lots(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lots)
}

// Active godoc
// @Summary      Active lot
// @Description  Returns the lot currently shipping for a SKU
// @Tags         lots
// @Produce      json
// @Param        sku path string true "Base SKU"
// @Success      200 {object} dto.Response{data=appinventory.LotResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /lots/{sku}/active [get]
func (h *LotHandler) Active(c *gin.Context) {
	lot, err := h.service.ActiveLot(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lot)
}

// Activate godoc
// @Summary      Activate a lot
// @Description  Makes the named lot the active one for its SKU. Uploaded but unshipped lines pointing at the old lot are re-targeted by the lot sync task.
// @Tags         lots
// @Accept       json
// @Produce      json
// @Param        sku path string true "Base SKU"
// @Param        request body ActivateLotRequest true "Lot to activate"
// @Success      200 {object} dto.Response{data=appinventory.LotResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /lots/{sku}/activate [post]
func (h *LotHandler) Activate(c *gin.Context) {
	var req ActivateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lot, err := h.service.Activate(c.Request.Context(), c.Param("sku"), req.LotNumber)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lot)
}
