package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/klinikgo/clinic-rota-api/internal/models"
	"github.com/klinikgo/clinic-rota-api/internal/service"
	"github.com/klinikgo/clinic-rota-api/pkg/response"
)

type doctorDirectory interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	Get(ctx context.Context, id string) (*models.Doctor, error)
}

// DoctorHandler exposes the doctor directory over HTTP.
type DoctorHandler struct {
	service doctorDirectory
}

func NewDoctorHandler(svc *service.DoctorService) *DoctorHandler {
	return &DoctorHandler{service: svc}
}

// List godoc
// @Summary List doctors
// @Tags Doctors
// @Produce json
// @Param search query string false "Match against name or specialization"
// @Param specialization query string false "Exact specialization"
// @Param available query bool false "Filter on availability"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /doctors [get]
func (h *DoctorHandler) List(c *gin.Context) {
	filter := models.DoctorFilter{
		Search:         c.Query("search"),
		Specialization: c.Query("specialization"),
		SortBy:         c.Query("sortBy"),
		SortOrder:      c.Query("sortOrder"),
	}
	if raw := c.Query("available"); raw != "" {
		if available, err := strconv.ParseBool(raw); err == nil {
			filter.Available = &available
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	doctors, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doctors, map[string]interface{}{
		"total":    total,
		"page":     filter.Page,
		"pageSize": filter.PageSize,
	})
}

// Get godoc
// @Summary Fetch one doctor
// @Tags Doctors
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 200 {object} response.Envelope
// @Router /doctors/{id} [get]
func (h *DoctorHandler) Get(c *gin.Context) {
	doctor, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doctor)
}
