package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/klinikgo/clinic-rota-api/internal/dto"
	"github.com/klinikgo/clinic-rota-api/internal/models"
	"github.com/klinikgo/clinic-rota-api/internal/service"
	appErrors "github.com/klinikgo/clinic-rota-api/pkg/errors"
	"github.com/klinikgo/clinic-rota-api/pkg/response"
)

type rotaEngine interface {
	Generate(ctx context.Context, req dto.GenerateRotaRequest) (*dto.GenerateRotaResponse, error)
	Assign(ctx context.Context, req dto.AssignShiftRequest) (*models.ScheduleEntry, error)
	Swap(ctx context.Context, req dto.SwapShiftsRequest) (*dto.SwapShiftsResponse, error)
	Remaining(ctx context.Context, query dto.RemainingShiftsQuery) ([]dto.RemainingShift, error)
	ExportWeek(ctx context.Context, startDate, format string) ([]byte, string, error)
}

// RotaHandler exposes the shift-scheduling engine over HTTP.
type RotaHandler struct {
	service rotaEngine
}

// NewRotaHandler constructs the handler.
func NewRotaHandler(svc *service.RotaService) *RotaHandler {
	return &RotaHandler{service: svc}
}

// Generate godoc
// @Summary Generate one week of shift assignments
// @Description Builds a Monday-Friday rota for the week containing startDate. Fails with 409 when the window already holds entries.
// @Tags Rota
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRotaRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Router /rota/generate [post]
func (h *RotaHandler) Generate(c *gin.Context) {
	var req dto.GenerateRotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Assign godoc
// @Summary Manually assign a doctor to one shift
// @Tags Rota
// @Accept json
// @Produce json
// @Param payload body dto.AssignShiftRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /rota/assignments [post]
func (h *RotaHandler) Assign(c *gin.Context) {
	var req dto.AssignShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	entry, err := h.service.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Swap godoc
// @Summary Swap the doctors of two schedule entries
// @Description Atomically exchanges the assigned doctors and records reciprocal swap links.
// @Tags Rota
// @Accept json
// @Produce json
// @Param payload body dto.SwapShiftsRequest true "Swap payload"
// @Success 200 {object} response.Envelope
// @Router /rota/swaps [post]
func (h *RotaHandler) Swap(c *gin.Context) {
	var req dto.SwapShiftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	result, err := h.service.Swap(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Remaining godoc
// @Summary Report under-filled slots in a window
// @Tags Rota
// @Produce json
// @Param start query string true "Window start (YYYY-MM-DD)"
// @Param end query string true "Window end (YYYY-MM-DD)"
// @Param doctorsPerShift query int true "Target occupancy per slot"
// @Success 200 {object} response.Envelope
// @Router /rota/remaining [get]
func (h *RotaHandler) Remaining(c *gin.Context) {
	var query dto.RemainingShiftsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid remaining-shifts query"))
		return
	}
	result, err := h.service.Remaining(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result == nil {
		result = []dto.RemainingShift{}
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Export the week's rota as CSV or PDF
// @Tags Rota
// @Produce text/csv
// @Produce application/pdf
// @Param start query string true "Week start (YYYY-MM-DD)"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} byte
// @Router /rota/export [get]
func (h *RotaHandler) Export(c *gin.Context) {
	start := c.Query("start")
	if start == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start query parameter is required"))
		return
	}
	payload, contentType, err := h.service.ExportWeek(c.Request.Context(), start, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="rota-`+start+`"`)
	c.Data(http.StatusOK, contentType, payload)
}
