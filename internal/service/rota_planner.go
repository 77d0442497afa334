package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/klinikgo/clinic-rota-api/internal/models"
)

// PlannedSlot is one slot granted to a doctor. Paired marks the two halves of
// a full-day assignment made by a single planning step.
type PlannedSlot struct {
	Date   time.Time
	Shift  string
	Paired bool
}

// RotaPlan is the planner output: per-doctor slot lists plus the slots the
// greedy passes could not fill.
type RotaPlan struct {
	ShiftsPerDoctor int
	Extra           int
	TotalDemand     int
	AssignedCount   int
	Order           []string
	Assignments     map[string][]PlannedSlot
	Remaining       []Slot
}

// PlanRota distributes slots across doctors under a per-slot capacity cap.
//
// Strategy per doctor, in id order: a full-day pass assigns both shifts of
// the least-occupied days as atomic pairs while two or more units of the
// doctor's target remain, then a single-shift pass fills the rest one slot at
// a time, considering only days the doctor has no assignment on. A final
// round-robin pass hands leftover demand out one slot per doctor per round,
// so totals stay within one slot of each other. Slots are never filled past
// doctorsPerShift; whatever remains unfillable is surfaced, not force-filled.
func PlanRota(doctors []models.Doctor, slots []Slot, doctorsPerShift int) (*RotaPlan, error) {
	if doctorsPerShift < 1 {
		return nil, fmt.Errorf("doctorsPerShift must be at least 1")
	}
	if len(doctors) == 0 {
		return nil, fmt.Errorf("no doctors available")
	}
	if doctorsPerShift > len(doctors) {
		return nil, fmt.Errorf("doctorsPerShift %d exceeds available doctor count %d", doctorsPerShift, len(doctors))
	}

	order := make([]string, len(doctors))
	for i, doctor := range doctors {
		order[i] = doctor.ID
	}
	sort.Strings(order)

	state := newRotaState(slots, doctorsPerShift)
	totalDemand := len(slots) * doctorsPerShift
	shiftsPerDoctor := totalDemand / len(doctors)
	extra := totalDemand % len(doctors)

	plan := &RotaPlan{
		ShiftsPerDoctor: shiftsPerDoctor,
		Extra:           extra,
		TotalDemand:     totalDemand,
		Order:           order,
		Assignments:     make(map[string][]PlannedSlot, len(order)),
	}

	for _, doctorID := range order {
		remaining := shiftsPerDoctor
		remaining -= state.assignFullDays(doctorID, remaining, plan)
		state.assignSingles(doctorID, remaining, plan)
	}

	// Leftover demand is handed out one slot per doctor per round until no
	// doctor can take another, keeping totals within one slot of each other.
	for state.assigned < totalDemand {
		progressed := false
		for _, doctorID := range order {
			if state.assigned >= totalDemand {
				break
			}
			if state.assignSingles(doctorID, 1, plan) > 0 {
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	plan.AssignedCount = state.assigned
	plan.Remaining = state.unfilled()

	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// validatePlan rejects any plan that would double-book a doctor into both
// shifts of a day outside a paired full-day assignment.
func validatePlan(plan *RotaPlan) error {
	for doctorID, assigned := range plan.Assignments {
		perDay := make(map[time.Time][]PlannedSlot)
		for _, slot := range assigned {
			perDay[slot.Date] = append(perDay[slot.Date], slot)
		}
		for day, daySlots := range perDay {
			if len(daySlots) < 2 {
				continue
			}
			if len(daySlots) > 2 {
				return fmt.Errorf("doctor %s assigned %d shifts on %s", doctorID, len(daySlots), FormatDay(day))
			}
			if !daySlots[0].Paired || !daySlots[1].Paired {
				return fmt.Errorf("doctor %s holds both shifts on %s without a full-day pair", doctorID, FormatDay(day))
			}
		}
	}
	return nil
}

type slotKey struct {
	date  time.Time
	shift string
}

// rotaState carries the planner's running tallies: per-slot occupancy,
// per-doctor day sets, and the overall assigned count. It is local to one
// PlanRota call.
type rotaState struct {
	capacity   int
	days       []time.Time
	occupancy  map[slotKey]int
	doctorDays map[string]map[time.Time]bool
	assigned   int
}

func newRotaState(slots []Slot, capacity int) *rotaState {
	state := &rotaState{
		capacity:   capacity,
		occupancy:  make(map[slotKey]int, len(slots)),
		doctorDays: make(map[string]map[time.Time]bool),
	}
	seen := make(map[time.Time]bool)
	for _, slot := range slots {
		state.occupancy[slotKey{date: slot.Date, shift: slot.Shift}] = 0
		if !seen[slot.Date] {
			seen[slot.Date] = true
			state.days = append(state.days, slot.Date)
		}
	}
	sort.Slice(state.days, func(i, j int) bool { return state.days[i].Before(state.days[j]) })
	return state
}

func (s *rotaState) count(date time.Time, shift string) (int, bool) {
	count, ok := s.occupancy[slotKey{date: date, shift: shift}]
	return count, ok
}

func (s *rotaState) hasDay(doctorID string, day time.Time) bool {
	return s.doctorDays[doctorID][day]
}

func (s *rotaState) take(doctorID string, day time.Time, shift string) {
	s.occupancy[slotKey{date: day, shift: shift}]++
	if s.doctorDays[doctorID] == nil {
		s.doctorDays[doctorID] = make(map[time.Time]bool)
	}
	s.doctorDays[doctorID][day] = true
	s.assigned++
}

// assignFullDays grants full-day pairs on the least-occupied days while the
// doctor still needs two or more slots. Returns the number of slots taken.
func (s *rotaState) assignFullDays(doctorID string, target int, plan *RotaPlan) int {
	taken := 0
	for target-taken >= 2 {
		day, ok := s.bestFullDay(doctorID)
		if !ok {
			break
		}
		s.take(doctorID, day, models.ShiftMorning)
		s.take(doctorID, day, models.ShiftAfternoon)
		plan.Assignments[doctorID] = append(plan.Assignments[doctorID],
			PlannedSlot{Date: day, Shift: models.ShiftMorning, Paired: true},
			PlannedSlot{Date: day, Shift: models.ShiftAfternoon, Paired: true},
		)
		taken += 2
	}
	return taken
}

// bestFullDay picks the day with the lowest combined occupancy whose two
// shifts both have spare capacity and which the doctor does not hold yet.
// Ties break toward the earliest date.
func (s *rotaState) bestFullDay(doctorID string) (time.Time, bool) {
	var best time.Time
	bestLoad := -1
	for _, day := range s.days {
		if s.hasDay(doctorID, day) {
			continue
		}
		morning, okM := s.count(day, models.ShiftMorning)
		afternoon, okA := s.count(day, models.ShiftAfternoon)
		if !okM || !okA || morning >= s.capacity || afternoon >= s.capacity {
			continue
		}
		load := morning + afternoon
		if bestLoad == -1 || load < bestLoad {
			best = day
			bestLoad = load
		}
	}
	return best, bestLoad != -1
}

// assignSingles grants up to target individual slots, least-occupied first,
// restricted to days the doctor has no assignment on. Returns slots taken.
func (s *rotaState) assignSingles(doctorID string, target int, plan *RotaPlan) int {
	taken := 0
	for taken < target {
		slot, ok := s.bestSingle(doctorID)
		if !ok {
			break
		}
		s.take(doctorID, slot.Date, slot.Shift)
		plan.Assignments[doctorID] = append(plan.Assignments[doctorID], PlannedSlot{Date: slot.Date, Shift: slot.Shift})
		taken++
	}
	return taken
}

// bestSingle picks the spare-capacity slot with the lowest occupancy on a day
// the doctor is free. Ties break toward the earliest date, then MORNING.
func (s *rotaState) bestSingle(doctorID string) (Slot, bool) {
	var best Slot
	bestCount := -1
	for _, day := range s.days {
		if s.hasDay(doctorID, day) {
			continue
		}
		for _, shift := range []string{models.ShiftMorning, models.ShiftAfternoon} {
			count, ok := s.count(day, shift)
			if !ok || count >= s.capacity {
				continue
			}
			if bestCount == -1 || count < bestCount {
				best = Slot{Date: day, Shift: shift}
				bestCount = count
			}
		}
	}
	return best, bestCount != -1
}

// unfilled lists slots still below capacity, in calendar order.
func (s *rotaState) unfilled() []Slot {
	var result []Slot
	for _, day := range s.days {
		for _, shift := range []string{models.ShiftMorning, models.ShiftAfternoon} {
			count, ok := s.count(day, shift)
			if ok && count < s.capacity {
				result = append(result, Slot{Date: day, Shift: shift})
			}
		}
	}
	return result
}
