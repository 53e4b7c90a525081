package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/edstack/academia-api/internal/middleware"
	"github.com/edstack/academia-api/internal/models"
	"github.com/edstack/academia-api/internal/service"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type timetableServiceMock struct {
	capturedTenant string
	captured       service.AllocateSlotRequest
	allocateErr    error
	grid           *models.BatchTimetable
}

func (m *timetableServiceMock) Allocate(ctx context.Context, tenantID string, req service.AllocateSlotRequest) (*models.TimetableSlot, error) {
	m.capturedTenant = tenantID
	m.captured = req
	if m.allocateErr != nil {
		return nil, m.allocateErr
	}
	return &models.TimetableSlot{ID: "slot-1", TenantID: tenantID, BatchID: req.BatchID, DayOfWeek: req.DayOfWeek, PeriodNumber: req.PeriodNumber, IsActive: true}, nil
}

func (m *timetableServiceMock) Reschedule(ctx context.Context, tenantID, slotID string, req service.RescheduleSlotRequest) (*models.TimetableSlot, error) {
	return &models.TimetableSlot{ID: slotID, TenantID: tenantID, DayOfWeek: req.DayOfWeek, PeriodNumber: req.PeriodNumber, IsActive: true}, nil
}

func (m *timetableServiceMock) Retire(ctx context.Context, tenantID, slotID string) error {
	return nil
}

func (m *timetableServiceMock) Delete(ctx context.Context, tenantID, slotID string) error {
	return nil
}

func (m *timetableServiceMock) GetBatchTimetable(ctx context.Context, tenantID, batchID, academicYearID string) (*models.BatchTimetable, error) {
	if m.grid == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	return m.grid, nil
}

func (m *timetableServiceMock) GetFacultyTimetable(ctx context.Context, tenantID, facultyID string) (*models.BatchTimetable, error) {
	return m.grid, nil
}

type generatorServiceMock struct {
	result *service.GenerateTimetableResult
}

func (m *generatorServiceMock) Generate(ctx context.Context, tenantID string, req service.GenerateTimetableRequest) (*service.GenerateTimetableResult, error) {
	if m.result == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	return m.result, nil
}

func timetableTestRouter(h *TimetableHandler, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if role != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextClaimsKey, &models.AccessClaims{TenantID: "tenant-1", Role: role})
			c.Next()
		})
	}
	admin := middleware.RequireRoles(models.RoleAdmin)
	everyone := middleware.RequireRoles(models.RoleAdmin, models.RoleHOD, models.RoleFaculty, models.RoleStudent)
	router.POST("/timetable/slots", admin, h.Allocate)
	router.PUT("/timetable/slots/:id", admin, h.Reschedule)
	router.GET("/timetable/batch/:id", everyone, h.BatchTimetable)
	router.POST("/timetable/generate", admin, h.Generate)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const allocatePayload = `{"batch_id":"batch-1","subject_id":"sub-1","faculty_id":"fac-1","day_of_week":2,"period_number":1}`

func TestTimetableHandlerAllocateSuccess(t *testing.T) {
	mockSvc := &timetableServiceMock{}
	router := timetableTestRouter(NewTimetableHandler(mockSvc, &generatorServiceMock{}), models.RoleAdmin)

	req, _ := http.NewRequest(http.MethodPost, "/timetable/slots", bytes.NewBufferString(allocatePayload))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, "tenant-1", mockSvc.capturedTenant)
	require.Equal(t, "batch-1", mockSvc.captured.BatchID)
	require.Contains(t, resp.Body.String(), `"id":"slot-1"`)
}

func TestTimetableHandlerAllocateMalformedPayload(t *testing.T) {
	router := timetableTestRouter(NewTimetableHandler(&timetableServiceMock{}, &generatorServiceMock{}), models.RoleAdmin)

	req, _ := http.NewRequest(http.MethodPost, "/timetable/slots", bytes.NewBufferString(`{"batch_id":`))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "VALIDATION_ERROR")
}

func TestTimetableHandlerAllocateConflictStatus(t *testing.T) {
	mockSvc := &timetableServiceMock{allocateErr: appErrors.Clone(appErrors.ErrSlotConflict, "faculty is already teaching in this period")}
	router := timetableTestRouter(NewTimetableHandler(mockSvc, &generatorServiceMock{}), models.RoleAdmin)

	req, _ := http.NewRequest(http.MethodPost, "/timetable/slots", bytes.NewBufferString(allocatePayload))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusConflict, resp.Code)
	require.Contains(t, resp.Body.String(), "SLOT_CONFLICT")
}

func TestTimetableHandlerAllocateUnauthorized(t *testing.T) {
	router := timetableTestRouter(NewTimetableHandler(&timetableServiceMock{}, &generatorServiceMock{}), "")

	req, _ := http.NewRequest(http.MethodPost, "/timetable/slots", bytes.NewBufferString(allocatePayload))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTimetableHandlerAllocateForbiddenForStudents(t *testing.T) {
	router := timetableTestRouter(NewTimetableHandler(&timetableServiceMock{}, &generatorServiceMock{}), models.RoleStudent)

	req, _ := http.NewRequest(http.MethodPost, "/timetable/slots", bytes.NewBufferString(allocatePayload))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestTimetableHandlerBatchTimetableReadableByStudents(t *testing.T) {
	mockSvc := &timetableServiceMock{grid: &models.BatchTimetable{
		Slots: []models.TimetableSlot{{ID: "slot-1", BatchID: "batch-1", DayOfWeek: 1, PeriodNumber: 1, IsActive: true}},
	}}
	router := timetableTestRouter(NewTimetableHandler(mockSvc, &generatorServiceMock{}), models.RoleStudent)

	req, _ := http.NewRequest(http.MethodGet, "/timetable/batch/batch-1", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"batch_id":"batch-1"`)
}

func TestTimetableHandlerBatchTimetableNotFound(t *testing.T) {
	router := timetableTestRouter(NewTimetableHandler(&timetableServiceMock{}, &generatorServiceMock{}), models.RoleAdmin)

	req, _ := http.NewRequest(http.MethodGet, "/timetable/batch/missing", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Contains(t, resp.Body.String(), "NOT_FOUND")
}

func TestTimetableHandlerGenerateSuccess(t *testing.T) {
	mockGen := &generatorServiceMock{result: &service.GenerateTimetableResult{
		Created: []models.TimetableSlot{{ID: "slot-1"}},
		Unplaced: []service.UnplacedLoad{
			{SubjectID: "sub-2", FacultyID: "fac-1", Reason: "no free period"},
		},
	}}
	router := timetableTestRouter(NewTimetableHandler(&timetableServiceMock{}, mockGen), models.RoleAdmin)

	payload := `{"batch_id":"batch-1","subject_loads":[{"subject_id":"sub-1","faculty_id":"fac-1","weekly_count":3}]}`
	req, _ := http.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"unplaced"`)
}
