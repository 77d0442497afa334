package models

import "time"

// Shift values for a schedulable day.
const (
	ShiftMorning   = "MORNING"
	ShiftAfternoon = "AFTERNOON"
)

// ValidShift reports whether the value is a known shift name.
func ValidShift(shift string) bool {
	return shift == ShiftMorning || shift == ShiftAfternoon
}

// ScheduleEntry represents one doctor-date-shift assignment.
// Date is date-only, normalized to UTC midnight; DayOfWeek is stored
// redundantly for query convenience.
type ScheduleEntry struct {
	ID            string     `db:"id" json:"id"`
	DoctorID      string     `db:"doctor_id" json:"doctor_id"`
	Date          time.Time  `db:"date" json:"date"`
	DayOfWeek     string     `db:"day_of_week" json:"day_of_week"`
	Shift         string     `db:"shift" json:"shift"`
	IsOff         bool       `db:"is_off" json:"is_off"`
	SwappedWithID *string    `db:"swapped_with_id" json:"swapped_with_id,omitempty"`
	SwappedAt     *time.Time `db:"swapped_at" json:"swapped_at,omitempty"`
	CreatedBy     *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy     *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// ScheduleEntryDetail is a ScheduleEntry joined with its doctor's directory fields.
type ScheduleEntryDetail struct {
	ScheduleEntry
	DoctorName     string `db:"doctor_name" json:"doctor_name"`
	Specialization string `db:"specialization" json:"specialization"`
}

// DayName returns the MONDAY..SUNDAY label for a date.
func DayName(t time.Time) string {
	switch t.Weekday() {
	case time.Monday:
		return "MONDAY"
	case time.Tuesday:
		return "TUESDAY"
	case time.Wednesday:
		return "WEDNESDAY"
	case time.Thursday:
		return "THURSDAY"
	case time.Friday:
		return "FRIDAY"
	case time.Saturday:
		return "SATURDAY"
	default:
		return "SUNDAY"
	}
}
