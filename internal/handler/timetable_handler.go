package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edstack/academia-api/internal/models"
	"github.com/edstack/academia-api/internal/service"
	appErrors "github.com/edstack/academia-api/pkg/errors"
	"github.com/edstack/academia-api/pkg/response"
)

type timetableSlotService interface {
	Allocate(ctx context.Context, tenantID string, req service.AllocateSlotRequest) (*models.TimetableSlot, error)
	Reschedule(ctx context.Context, tenantID, slotID string, req service.RescheduleSlotRequest) (*models.TimetableSlot, error)
	Retire(ctx context.Context, tenantID, slotID string) error
	Delete(ctx context.Context, tenantID, slotID string) error
	GetBatchTimetable(ctx context.Context, tenantID, batchID, academicYearID string) (*models.BatchTimetable, error)
	GetFacultyTimetable(ctx context.Context, tenantID, facultyID string) (*models.BatchTimetable, error)
}

type timetableGeneratorService interface {
	Generate(ctx context.Context, tenantID string, req service.GenerateTimetableRequest) (*service.GenerateTimetableResult, error)
}

// TimetableHandler manages timetable slot endpoints.
type TimetableHandler struct {
	timetable timetableSlotService
	generator timetableGeneratorService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(timetable timetableSlotService, generator timetableGeneratorService) *TimetableHandler {
	return &TimetableHandler{timetable: timetable, generator: generator}
}

// Allocate godoc
// @Summary Allocate a timetable slot
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.AllocateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Router /timetable/slots [post]
func (h *TimetableHandler) Allocate(c *gin.Context) {
	var req service.AllocateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.timetable.Allocate(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Reschedule godoc
// @Summary Move a slot to a new day, period or classroom
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.RescheduleSlotRequest true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/slots/{id} [put]
func (h *TimetableHandler) Reschedule(c *gin.Context) {
	var req service.RescheduleSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.timetable.Reschedule(c.Request.Context(), tenantFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Retire godoc
// @Summary Retire a slot, freeing its occupancy keys
// @Tags Timetable
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204
// @Router /timetable/slots/{id}/retire [post]
func (h *TimetableHandler) Retire(c *gin.Context) {
	if err := h.timetable.Retire(c.Request.Context(), tenantFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a slot row
// @Tags Timetable
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204
// @Router /timetable/slots/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.timetable.Delete(c.Request.Context(), tenantFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchTimetable godoc
// @Summary Batch timetable grid
// @Tags Timetable
// @Produce json
// @Param id path string true "Batch ID"
// @Param academicYearId query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /timetable/batch/{id} [get]
func (h *TimetableHandler) BatchTimetable(c *gin.Context) {
	timetable, err := h.timetable.GetBatchTimetable(c.Request.Context(), tenantFromContext(c), c.Param("id"), c.Query("academicYearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// FacultyTimetable godoc
// @Summary Faculty timetable grid
// @Tags Timetable
// @Produce json
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/faculty/{id} [get]
func (h *TimetableHandler) FacultyTimetable(c *gin.Context) {
	timetable, err := h.timetable.GetFacultyTimetable(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Generate godoc
// @Summary Generate a batch timetable greedily
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req service.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
