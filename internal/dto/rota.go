package dto

import "github.com/klinikgo/clinic-rota-api/internal/models"

// GenerateRotaRequest instructs the engine to build a week of assignments.
type GenerateRotaRequest struct {
	StartDate       string `json:"startDate" validate:"required,datetime=2006-01-02"`
	DoctorsPerShift int    `json:"doctorsPerShift" validate:"required,min=1"`
}

// RemainingShift describes an under-filled slot.
type RemainingShift struct {
	Date      string `json:"date"`
	Shift     string `json:"shift"`
	DayOfWeek string `json:"dayOfWeek"`
}

// GenerateRotaResponse summarises a successful generation.
type GenerateRotaResponse struct {
	WindowStart     string           `json:"windowStart"`
	WindowEnd       string           `json:"windowEnd"`
	AssignedCount   int              `json:"assignedCount"`
	RemainingShifts []RemainingShift `json:"remainingShifts"`
}

// AssignShiftRequest creates a single manual assignment.
type AssignShiftRequest struct {
	DoctorID string `json:"doctorId" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Shift    string `json:"shift" validate:"required,oneof=MORNING AFTERNOON"`
}

// SwapTarget identifies one side of a shift swap.
type SwapTarget struct {
	DoctorID string `json:"doctorId" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Shift    string `json:"shift" validate:"required,oneof=MORNING AFTERNOON"`
}

// SwapShiftsRequest exchanges the doctors of two existing entries.
type SwapShiftsRequest struct {
	First  SwapTarget `json:"first" validate:"required"`
	Second SwapTarget `json:"second" validate:"required"`
}

// SwapShiftsResponse returns both entries after the exchange.
type SwapShiftsResponse struct {
	First  *models.ScheduleEntry `json:"first"`
	Second *models.ScheduleEntry `json:"second"`
}

// RemainingShiftsQuery filters the remaining-capacity report.
type RemainingShiftsQuery struct {
	Start           string `form:"start" validate:"required,datetime=2006-01-02"`
	End             string `form:"end" validate:"required,datetime=2006-01-02"`
	DoctorsPerShift int    `form:"doctorsPerShift" validate:"required,min=1"`
}
