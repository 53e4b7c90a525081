package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edstack/academia-api/internal/service"
	appErrors "github.com/edstack/academia-api/pkg/errors"
	"github.com/edstack/academia-api/pkg/response"
)

// WorkloadHandler exposes faculty workload endpoints.
type WorkloadHandler struct {
	service *service.WorkloadService
}

// NewWorkloadHandler constructs handler.
func NewWorkloadHandler(svc *service.WorkloadService) *WorkloadHandler {
	return &WorkloadHandler{service: svc}
}

// List godoc
// @Summary Faculty workload roster
// @Tags Workload
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /faculty-workload [get]
func (h *WorkloadHandler) List(c *gin.Context) {
	workloads, err := h.service.List(c.Request.Context(), tenantFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workloads, nil)
}

// Get godoc
// @Summary Recomputed workload for one faculty member
// @Tags Workload
// @Produce json
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /faculty-workload/{id} [get]
func (h *WorkloadHandler) Get(c *gin.Context) {
	workload, err := h.service.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workload, nil)
}

// UpdateLimit godoc
// @Summary Adjust a faculty member's weekly hours ceiling
// @Tags Workload
// @Accept json
// @Produce json
// @Param id path string true "Faculty ID"
// @Param payload body service.UpdateWorkloadLimitRequest true "Limit payload"
// @Success 200 {object} response.Envelope
// @Router /faculty-workload/{id} [patch]
func (h *WorkloadHandler) UpdateLimit(c *gin.Context) {
	var req service.UpdateWorkloadLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	member, err := h.service.UpdateLimit(c.Request.Context(), tenantFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}
