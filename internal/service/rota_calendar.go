package service

import (
	"time"

	"github.com/klinikgo/clinic-rota-api/internal/models"
)

// dateLayout is the wire format for calendar days.
const dateLayout = "2006-01-02"

// Slot is one (date, shift) unit of schedulable capacity.
type Slot struct {
	Date  time.Time
	Shift string
}

// Day normalizes an instant to its calendar day at UTC midnight. All window
// and slot comparisons in the engine use this single representation, so a
// "day" is unambiguous regardless of the caller's wall clock.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a normalized calendar day.
func ParseDay(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// FormatDay renders a calendar day back to YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(dateLayout)
}

// WeekWindow derives the 7-day generation window for a start date. A Sunday
// start is shifted forward one day so the window always opens on a working
// week boundary; any other weekday is taken as-is.
func WeekWindow(start time.Time) (time.Time, time.Time) {
	windowStart := Day(start)
	if windowStart.Weekday() == time.Sunday {
		windowStart = windowStart.AddDate(0, 0, 1)
	}
	windowEnd := windowStart.AddDate(0, 0, 6)
	return windowStart, windowEnd
}

// WeekdaySlots lists the generation slots inside a window: Monday through
// Friday, two shifts per day, ordered by date then MORNING before AFTERNOON.
func WeekdaySlots(windowStart, windowEnd time.Time) []Slot {
	var slots []Slot
	for day := Day(windowStart); !day.After(Day(windowEnd)); day = day.AddDate(0, 0, 1) {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		slots = append(slots,
			Slot{Date: day, Shift: models.ShiftMorning},
			Slot{Date: day, Shift: models.ShiftAfternoon},
		)
	}
	return slots
}

// ReportSlots lists the slots considered by the remaining-capacity report.
// The weekly view is wider than the generation window: Saturday carries a
// MORNING slot only, Sunday none.
func ReportSlots(start, end time.Time) []Slot {
	var slots []Slot
	for day := Day(start); !day.After(Day(end)); day = day.AddDate(0, 0, 1) {
		switch day.Weekday() {
		case time.Sunday:
			continue
		case time.Saturday:
			slots = append(slots, Slot{Date: day, Shift: models.ShiftMorning})
		default:
			slots = append(slots,
				Slot{Date: day, Shift: models.ShiftMorning},
				Slot{Date: day, Shift: models.ShiftAfternoon},
			)
		}
	}
	return slots
}
