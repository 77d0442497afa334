package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/klinikgo/clinic-rota-api/internal/dto"
	"github.com/klinikgo/clinic-rota-api/internal/models"
	appErrors "github.com/klinikgo/clinic-rota-api/pkg/errors"
	"github.com/klinikgo/clinic-rota-api/pkg/export"
)

const remainingCachePrefix = "rota:remaining:"

type doctorDirectory interface {
	ListAvailable(ctx context.Context) ([]models.Doctor, error)
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

type scheduleStore interface {
	ListInWindow(ctx context.Context, start, end time.Time) ([]models.ScheduleEntry, error)
	ListInWindowDetailed(ctx context.Context, start, end time.Time) ([]models.ScheduleEntryDetail, error)
	ExistsInWindow(ctx context.Context, exec sqlx.ExtContext, start, end time.Time) (bool, error)
	FindByDoctorDateShift(ctx context.Context, doctorID string, date time.Time, shift string) (*models.ScheduleEntry, error)
	FindActiveByDoctorDate(ctx context.Context, doctorID string, date time.Time) (*models.ScheduleEntry, error)
	CountAssigned(ctx context.Context, date time.Time, shift string) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error
	FindForUpdate(ctx context.Context, tx *sqlx.Tx, doctorID string, date time.Time, shift string) (*models.ScheduleEntry, error)
	SwapPair(ctx context.Context, tx *sqlx.Tx, first, second *models.ScheduleEntry, swappedAt time.Time, updatedBy *string) error
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type rotaMetrics interface {
	ObserveRotaOperation(op, outcome string)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RotaConfig tunes the engine surface.
type RotaConfig struct {
	MaxDoctorsPerShift int
	RemainingCacheTTL  time.Duration
}

// RotaService is the shift-scheduling engine: weekly generation, manual
// assignment, shift swaps and the remaining-capacity report.
type RotaService struct {
	doctors   doctorDirectory
	entries   scheduleStore
	cache     reportCache
	metrics   rotaMetrics
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	cfg       RotaConfig
}

// NewRotaService wires scheduling dependencies. cache and metrics may be nil.
func NewRotaService(
	doctors doctorDirectory,
	entries scheduleStore,
	cache reportCache,
	metrics rotaMetrics,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RotaConfig,
) *RotaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDoctorsPerShift <= 0 {
		cfg.MaxDoctorsPerShift = 10
	}
	if cfg.RemainingCacheTTL <= 0 {
		cfg.RemainingCacheTTL = 5 * time.Minute
	}
	return &RotaService{
		doctors:   doctors,
		entries:   entries,
		cache:     cache,
		metrics:   metrics,
		tx:        tx,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		cfg:       cfg,
	}
}

// Generate builds and persists one week of assignments. The whole window is
// written in a single transaction; a window that already holds any entry is
// refused before (and re-checked inside) the transaction, so racing
// generations cannot interleave.
func (s *RotaService) Generate(ctx context.Context, req dto.GenerateRotaRequest) (*dto.GenerateRotaResponse, error) {
	resp, err := s.generate(ctx, req)
	s.observe("generate", err)
	return resp, err
}

func (s *RotaService) generate(ctx context.Context, req dto.GenerateRotaRequest) (*dto.GenerateRotaResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rota generation payload")
	}
	if req.DoctorsPerShift > s.cfg.MaxDoctorsPerShift {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("doctorsPerShift must not exceed %d", s.cfg.MaxDoctorsPerShift))
	}
	start, err := ParseDay(req.StartDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "startDate must be a valid YYYY-MM-DD date")
	}

	windowStart, windowEnd := WeekWindow(start)
	slots := WeekdaySlots(windowStart, windowEnd)

	doctors, err := s.doctors.ListAvailable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load available doctors")
	}
	if req.DoctorsPerShift > len(doctors) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("doctorsPerShift (%d) exceeds available doctor count (%d)", req.DoctorsPerShift, len(doctors)))
	}

	exists, err := s.entries.ExistsInWindow(ctx, nil, windowStart, windowEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check generation window")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("window %s to %s already contains schedule entries", FormatDay(windowStart), FormatDay(windowEnd)))
	}

	plan, err := PlanRota(doctors, slots, req.DoctorsPerShift)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rota planning failed")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Recheck under the transaction: a racing generation that committed
	// between the guard above and BeginTxx must abort us cleanly here or,
	// failing that, on the uniqueness constraint below.
	exists, err = s.entries.ExistsInWindow(ctx, tx, windowStart, windowEnd)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recheck generation window")
		return nil, err
	}
	if exists {
		err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("window %s to %s already contains schedule entries", FormatDay(windowStart), FormatDay(windowEnd)))
		return nil, err
	}

	for _, doctorID := range plan.Order {
		for _, planned := range plan.Assignments[doctorID] {
			entry := &models.ScheduleEntry{
				DoctorID:  doctorID,
				Date:      planned.Date,
				DayOfWeek: models.DayName(planned.Date),
				Shift:     planned.Shift,
			}
			if err = s.entries.Create(ctx, tx, entry); err != nil {
				if isUniqueViolation(err) {
					err = appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a concurrent generation already filled this window")
					return nil, err
				}
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schedule entry")
				return nil, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit rota generation")
		return nil, err
	}

	s.invalidateRemaining(ctx)
	s.logger.Info("rota generated",
		zap.String("window_start", FormatDay(windowStart)),
		zap.String("window_end", FormatDay(windowEnd)),
		zap.Int("assigned", plan.AssignedCount),
		zap.Int("unfilled_slots", len(plan.Remaining)),
	)

	return &dto.GenerateRotaResponse{
		WindowStart:     FormatDay(windowStart),
		WindowEnd:       FormatDay(windowEnd),
		AssignedCount:   plan.AssignedCount,
		RemainingShifts: toRemainingShifts(plan.Remaining),
	}, nil
}

// Assign creates a single manual assignment against the live store state.
func (s *RotaService) Assign(ctx context.Context, req dto.AssignShiftRequest) (*models.ScheduleEntry, error) {
	entry, err := s.assign(ctx, req)
	s.observe("assign", err)
	return entry, err
}

func (s *RotaService) assign(ctx context.Context, req dto.AssignShiftRequest) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	date, err := ParseDay(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be a valid YYYY-MM-DD date")
	}
	if date.Before(Day(time.Now())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot assign a shift in the past")
	}

	if _, err := s.doctors.FindByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}

	existing, err := s.entries.FindByDoctorDateShift(ctx, req.DoctorID, date, req.Shift)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignment")
	}
	if existing != nil {
		if existing.IsOff {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("doctor has a time-off entry for the %s shift on %s", req.Shift, req.Date))
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("doctor is already assigned the %s shift on %s", req.Shift, req.Date))
	}

	sibling, err := s.entries.FindActiveByDoctorDate(ctx, req.DoctorID, date)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check same-day assignments")
	}
	if sibling != nil && sibling.Shift != req.Shift {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("doctor already holds the %s shift on %s", sibling.Shift, req.Date))
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	entry := &models.ScheduleEntry{
		DoctorID:  req.DoctorID,
		Date:      date,
		DayOfWeek: models.DayName(date),
		Shift:     req.Shift,
	}
	if err = s.entries.Create(ctx, tx, entry); err != nil {
		if isUniqueViolation(err) {
			err = appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("doctor is already assigned the %s shift on %s", req.Shift, req.Date))
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignment")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit assignment")
		return nil, err
	}

	s.invalidateRemaining(ctx)
	return entry, nil
}

// Swap atomically exchanges the doctors of two existing entries, setting
// reciprocal swap links and a shared timestamp. Both rows change or neither.
func (s *RotaService) Swap(ctx context.Context, req dto.SwapShiftsRequest) (*dto.SwapShiftsResponse, error) {
	resp, err := s.swap(ctx, req)
	s.observe("swap", err)
	return resp, err
}

func (s *RotaService) swap(ctx context.Context, req dto.SwapShiftsRequest) (*dto.SwapShiftsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	firstDate, err := ParseDay(req.First.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "first.date must be a valid YYYY-MM-DD date")
	}
	secondDate, err := ParseDay(req.Second.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "second.date must be a valid YYYY-MM-DD date")
	}
	if req.First.DoctorID == req.Second.DoctorID && firstDate.Equal(secondDate) && req.First.Shift == req.Second.Shift {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot swap an entry with itself")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Rows are locked in a deterministic order so two concurrent swaps over
	// the same pair cannot deadlock.
	lockFirst := swapTargetBefore(req.First, req.Second, firstDate, secondDate)
	targets := []struct {
		target dto.SwapTarget
		date   time.Time
		label  string
	}{
		{req.First, firstDate, "first"},
		{req.Second, secondDate, "second"},
	}
	if !lockFirst {
		targets[0], targets[1] = targets[1], targets[0]
	}

	locked := make(map[string]*models.ScheduleEntry, 2)
	for _, item := range targets {
		entry, lookupErr := s.entries.FindForUpdate(ctx, tx, item.target.DoctorID, item.date, item.target.Shift)
		if lookupErr != nil {
			if errors.Is(lookupErr, sql.ErrNoRows) {
				err = appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no schedule entry matches the %s swap target", item.label))
				return nil, err
			}
			err = appErrors.Wrap(lookupErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap target")
			return nil, err
		}
		if entry.IsOff {
			err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("the %s swap target is an off-duty entry", item.label))
			return nil, err
		}
		locked[item.label] = entry
	}
	first, second := locked["first"], locked["second"]

	swappedAt := time.Now().UTC()
	if err = s.entries.SwapPair(ctx, tx, first, second, swappedAt, nil); err != nil {
		if isUniqueViolation(err) {
			err = appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "swap would double-book a doctor into an occupied slot")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply swap")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit swap")
		return nil, err
	}

	first.DoctorID, second.DoctorID = second.DoctorID, first.DoctorID
	first.SwappedWithID = &second.ID
	second.SwappedWithID = &first.ID
	first.SwappedAt = &swappedAt
	second.SwappedAt = &swappedAt

	s.invalidateRemaining(ctx)
	s.logger.Info("shifts swapped",
		zap.String("first_entry", first.ID),
		zap.String("second_entry", second.ID),
	)

	return &dto.SwapShiftsResponse{First: first, Second: second}, nil
}

// Remaining reports slots whose non-off occupancy is below doctorsPerShift.
// Saturday carries a MORNING slot only in this wider weekly view.
func (s *RotaService) Remaining(ctx context.Context, query dto.RemainingShiftsQuery) ([]dto.RemainingShift, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid remaining-shifts query")
	}
	start, err := ParseDay(query.Start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start must be a valid YYYY-MM-DD date")
	}
	end, err := ParseDay(query.End)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "end must be a valid YYYY-MM-DD date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end must not be before start")
	}

	cacheKey := fmt.Sprintf("%s%s:%s:%d", remainingCachePrefix, query.Start, query.End, query.DoctorsPerShift)
	if s.cache != nil {
		var cached []dto.RemainingShift
		if cacheErr := s.cache.Get(ctx, cacheKey, &cached); cacheErr == nil {
			return cached, nil
		}
	}

	var remaining []dto.RemainingShift
	for _, slot := range ReportSlots(start, end) {
		count, countErr := s.entries.CountAssigned(ctx, slot.Date, slot.Shift)
		if countErr != nil {
			return nil, appErrors.Wrap(countErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count slot occupancy")
		}
		if count < query.DoctorsPerShift {
			remaining = append(remaining, dto.RemainingShift{
				Date:      FormatDay(slot.Date),
				Shift:     slot.Shift,
				DayOfWeek: models.DayName(slot.Date),
			})
		}
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, cacheKey, remaining, s.cfg.RemainingCacheTTL); cacheErr != nil {
			s.logger.Warn("failed to cache remaining shifts", zap.Error(cacheErr))
		}
	}
	return remaining, nil
}

// ExportWeek renders the week's rota as a CSV or PDF sheet.
func (s *RotaService) ExportWeek(ctx context.Context, startDate, format string) ([]byte, string, error) {
	start, err := ParseDay(startDate)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start must be a valid YYYY-MM-DD date")
	}
	windowStart, windowEnd := WeekWindow(start)

	rows, err := s.entries.ListInWindowDetailed(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rota window")
	}

	sheet := export.Sheet{
		Title:   fmt.Sprintf("Rota %s to %s", FormatDay(windowStart), FormatDay(windowEnd)),
		Headers: []string{"Date", "Day", "Shift", "Doctor", "Specialization", "Status"},
	}
	for _, row := range rows {
		status := "ON"
		if row.IsOff {
			status = "OFF"
		} else if row.SwappedWithID != nil {
			status = "SWAPPED"
		}
		sheet.Rows = append(sheet.Rows, []string{
			FormatDay(row.Date),
			row.DayOfWeek,
			row.Shift,
			row.DoctorName,
			row.Specialization,
			status,
		})
	}

	switch strings.ToLower(format) {
	case "pdf":
		payload, renderErr := s.pdf.Render(sheet)
		if renderErr != nil {
			return nil, "", appErrors.Wrap(renderErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render rota pdf")
		}
		return payload, "application/pdf", nil
	case "", "csv":
		payload, renderErr := s.csv.Render(sheet)
		if renderErr != nil {
			return nil, "", appErrors.Wrap(renderErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render rota csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *RotaService) invalidateRemaining(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, remainingCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate remaining-shifts cache", zap.Error(err))
	}
}

func (s *RotaService) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(appErrors.FromError(err).Code)
	}
	s.metrics.ObserveRotaOperation(op, outcome)
}

func toRemainingShifts(slots []Slot) []dto.RemainingShift {
	result := make([]dto.RemainingShift, 0, len(slots))
	for _, slot := range slots {
		result = append(result, dto.RemainingShift{
			Date:      FormatDay(slot.Date),
			Shift:     slot.Shift,
			DayOfWeek: models.DayName(slot.Date),
		})
	}
	return result
}

// swapTargetBefore orders swap targets by (date, shift, doctor) for lock
// acquisition.
func swapTargetBefore(a, b dto.SwapTarget, aDate, bDate time.Time) bool {
	if !aDate.Equal(bDate) {
		return aDate.Before(bDate)
	}
	if a.Shift != b.Shift {
		return a.Shift < b.Shift
	}
	return a.DoctorID < b.DoctorID
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
