package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edstack/academia-api/internal/service"
	appErrors "github.com/edstack/academia-api/pkg/errors"
	"github.com/edstack/academia-api/pkg/response"
)

// PeriodTemplateHandler manages the tenant period grid endpoints.
type PeriodTemplateHandler struct {
	service *service.PeriodTemplateService
}

// NewPeriodTemplateHandler constructs handler.
func NewPeriodTemplateHandler(svc *service.PeriodTemplateService) *PeriodTemplateHandler {
	return &PeriodTemplateHandler{service: svc}
}

// List godoc
// @Summary Effective period grid for the tenant
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /period-templates [get]
func (h *PeriodTemplateHandler) List(c *gin.Context) {
	periods, err := h.service.List(c.Request.Context(), tenantFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// Define godoc
// @Summary Replace the tenant period grid
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body service.DefinePeriodsRequest true "Period grid"
// @Success 200 {object} response.Envelope
// @Router /period-templates [put]
func (h *PeriodTemplateHandler) Define(c *gin.Context) {
	var req service.DefinePeriodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	periods, err := h.service.Define(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}
