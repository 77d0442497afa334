package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klinikgo/clinic-rota-api/internal/dto"
	"github.com/klinikgo/clinic-rota-api/internal/models"
	appErrors "github.com/klinikgo/clinic-rota-api/pkg/errors"
)

func TestRotaServiceGenerateSuccess(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	store := newScheduleStoreStub()
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(3), store: store, tx: tx})

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := service.Generate(context.Background(), dto.GenerateRotaRequest{
		StartDate:       "2025-03-03",
		DoctorsPerShift: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-03-03", resp.WindowStart)
	assert.Equal(t, "2025-03-09", resp.WindowEnd)
	assert.Equal(t, 10, resp.AssignedCount)
	assert.Empty(t, resp.RemainingShifts)
	assert.Len(t, store.created, 10)
	for _, entry := range store.created {
		assert.True(t, models.ValidShift(entry.Shift))
		assert.NotEmpty(t, entry.DayOfWeek)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaServiceGenerateRefusesOccupiedWindow(t *testing.T) {
	store := newScheduleStoreStub()
	store.windowOccupied = true
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(3), store: store})

	_, err := service.Generate(context.Background(), dto.GenerateRotaRequest{
		StartDate:       "2025-03-03",
		DoctorsPerShift: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.created)
}

func TestRotaServiceGenerateConcurrentWindowFill(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	store := newScheduleStoreStub()
	store.occupyOnRecheck = true
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(3), store: store, tx: tx})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := service.Generate(context.Background(), dto.GenerateRotaRequest{
		StartDate:       "2025-03-03",
		DoctorsPerShift: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaServiceGenerateUniqueViolationBecomesConflict(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	store := newScheduleStoreStub()
	store.createErr = &pq.Error{Code: "23505"}
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(3), store: store, tx: tx})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := service.Generate(context.Background(), dto.GenerateRotaRequest{
		StartDate:       "2025-03-03",
		DoctorsPerShift: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaServiceGenerateValidation(t *testing.T) {
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(2)})

	cases := []dto.GenerateRotaRequest{
		{StartDate: "", DoctorsPerShift: 1},
		{StartDate: "03/03/2025", DoctorsPerShift: 1},
		{StartDate: "2025-03-03", DoctorsPerShift: 0},
		{StartDate: "2025-03-03", DoctorsPerShift: 3},
		{StartDate: "2025-03-03", DoctorsPerShift: 99},
	}
	for _, req := range cases {
		_, err := service.Generate(context.Background(), req)
		require.Error(t, err, "request %+v", req)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, "request %+v", req)
	}
}

func TestRotaServiceAssignSuccess(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	store := newScheduleStoreStub()
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1), store: store, tx: tx})

	mock.ExpectBegin()
	mock.ExpectCommit()

	entry, err := service.Assign(context.Background(), dto.AssignShiftRequest{
		DoctorID: "doc-01",
		Date:     futureMonday(t),
		Shift:    models.ShiftMorning,
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-01", entry.DoctorID)
	assert.Equal(t, models.ShiftMorning, entry.Shift)
	assert.Equal(t, "MONDAY", entry.DayOfWeek)
	assert.Len(t, store.created, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaServiceAssignRejectsPastDate(t *testing.T) {
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1)})

	_, err := service.Assign(context.Background(), dto.AssignShiftRequest{
		DoctorID: "doc-01",
		Date:     "2020-01-06",
		Shift:    models.ShiftMorning,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRotaServiceAssignUnknownDoctor(t *testing.T) {
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1)})

	_, err := service.Assign(context.Background(), dto.AssignShiftRequest{
		DoctorID: "doc-99",
		Date:     futureMonday(t),
		Shift:    models.ShiftMorning,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRotaServiceAssignDuplicateShift(t *testing.T) {
	date := futureMonday(t)
	day, err := ParseDay(date)
	require.NoError(t, err)

	store := newScheduleStoreStub()
	store.existing = append(store.existing, models.ScheduleEntry{
		ID: "entry-1", DoctorID: "doc-01", Date: day, Shift: models.ShiftMorning,
	})
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1), store: store})

	_, err = service.Assign(context.Background(), dto.AssignShiftRequest{
		DoctorID: "doc-01",
		Date:     date,
		Shift:    models.ShiftMorning,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "already assigned")
}

func TestRotaServiceAssignOffEntryBlocks(t *testing.T) {
	date := futureMonday(t)
	day, err := ParseDay(date)
	require.NoError(t, err)

	store := newScheduleStoreStub()
	store.existing = append(store.existing, models.ScheduleEntry{
		ID: "entry-1", DoctorID: "doc-01", Date: day, Shift: models.ShiftMorning, IsOff: true,
	})
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1), store: store})

	_, err = service.Assign(context.Background(), dto.AssignShiftRequest{
		DoctorID: "doc-01",
		Date:     date,
		Shift:    models.ShiftMorning,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "time-off")
}

func TestRotaServiceAssignCrossShiftConflict(t *testing.T) {
	date := futureMonday(t)
	day, err := ParseDay(date)
	require.NoError(t, err)

	store := newScheduleStoreStub()
	store.existing = append(store.existing, models.ScheduleEntry{
		ID: "entry-1", DoctorID: "doc-01", Date: day, Shift: models.ShiftMorning,
	})
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1), store: store})

	_, err = service.Assign(context.Background(), dto.AssignShiftRequest{
		DoctorID: "doc-01",
		Date:     date,
		Shift:    models.ShiftAfternoon,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, models.ShiftMorning)
}

func TestRotaServiceSwapSuccess(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	dayOne, err := ParseDay("2025-03-03")
	require.NoError(t, err)
	dayTwo, err := ParseDay("2025-03-04")
	require.NoError(t, err)

	store := newScheduleStoreStub()
	store.existing = append(store.existing,
		models.ScheduleEntry{ID: "entry-1", DoctorID: "doc-01", Date: dayOne, Shift: models.ShiftMorning},
		models.ScheduleEntry{ID: "entry-2", DoctorID: "doc-02", Date: dayTwo, Shift: models.ShiftAfternoon},
	)
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(2), store: store, tx: tx})

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := service.Swap(context.Background(), dto.SwapShiftsRequest{
		First:  dto.SwapTarget{DoctorID: "doc-01", Date: "2025-03-03", Shift: models.ShiftMorning},
		Second: dto.SwapTarget{DoctorID: "doc-02", Date: "2025-03-04", Shift: models.ShiftAfternoon},
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-02", resp.First.DoctorID)
	assert.Equal(t, "doc-01", resp.Second.DoctorID)
	require.NotNil(t, resp.First.SwappedWithID)
	require.NotNil(t, resp.Second.SwappedWithID)
	assert.Equal(t, resp.Second.ID, *resp.First.SwappedWithID)
	assert.Equal(t, resp.First.ID, *resp.Second.SwappedWithID)
	require.NotNil(t, resp.First.SwappedAt)
	require.NotNil(t, resp.Second.SwappedAt)
	assert.True(t, resp.First.SwappedAt.Equal(*resp.Second.SwappedAt))
	assert.Equal(t, 1, store.swapCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaServiceSwapRejectsSelf(t *testing.T) {
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1)})

	target := dto.SwapTarget{DoctorID: "doc-01", Date: "2025-03-03", Shift: models.ShiftMorning}
	_, err := service.Swap(context.Background(), dto.SwapShiftsRequest{First: target, Second: target})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRotaServiceSwapMissingEntryRollsBack(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	dayOne, err := ParseDay("2025-03-03")
	require.NoError(t, err)

	store := newScheduleStoreStub()
	store.existing = append(store.existing,
		models.ScheduleEntry{ID: "entry-1", DoctorID: "doc-01", Date: dayOne, Shift: models.ShiftMorning},
	)
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(2), store: store, tx: tx})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = service.Swap(context.Background(), dto.SwapShiftsRequest{
		First:  dto.SwapTarget{DoctorID: "doc-01", Date: "2025-03-03", Shift: models.ShiftMorning},
		Second: dto.SwapTarget{DoctorID: "doc-02", Date: "2025-03-04", Shift: models.ShiftAfternoon},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.swapCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaServiceSwapRefusesOffEntry(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	dayOne, err := ParseDay("2025-03-03")
	require.NoError(t, err)
	dayTwo, err := ParseDay("2025-03-04")
	require.NoError(t, err)

	store := newScheduleStoreStub()
	store.existing = append(store.existing,
		models.ScheduleEntry{ID: "entry-1", DoctorID: "doc-01", Date: dayOne, Shift: models.ShiftMorning},
		models.ScheduleEntry{ID: "entry-2", DoctorID: "doc-02", Date: dayTwo, Shift: models.ShiftAfternoon, IsOff: true},
	)
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(2), store: store, tx: tx})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = service.Swap(context.Background(), dto.SwapShiftsRequest{
		First:  dto.SwapTarget{DoctorID: "doc-01", Date: "2025-03-03", Shift: models.ShiftMorning},
		Second: dto.SwapTarget{DoctorID: "doc-02", Date: "2025-03-04", Shift: models.ShiftAfternoon},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.swapCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaServiceRemainingReportsUnderfilledSlots(t *testing.T) {
	monday, err := ParseDay("2025-03-03")
	require.NoError(t, err)

	store := newScheduleStoreStub()
	store.counts = map[string]int{
		countKey(monday, models.ShiftMorning): 1,
	}
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(2), store: store})

	remaining, err := service.Remaining(context.Background(), dto.RemainingShiftsQuery{
		Start:           "2025-03-03",
		End:             "2025-03-09",
		DoctorsPerShift: 1,
	})
	require.NoError(t, err)

	// 11 report slots in the week, one already filled.
	assert.Len(t, remaining, 10)
	for _, shift := range remaining {
		assert.NotEqual(t, "SUNDAY", shift.DayOfWeek)
		if shift.DayOfWeek == "SATURDAY" {
			assert.Equal(t, models.ShiftMorning, shift.Shift)
		}
	}
}

func TestRotaServiceRemainingUsesCache(t *testing.T) {
	cache := &reportCacheStub{items: map[string][]byte{}}
	store := newScheduleStoreStub()
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(2), store: store, cache: cache})

	query := dto.RemainingShiftsQuery{Start: "2025-03-03", End: "2025-03-09", DoctorsPerShift: 1}

	first, err := service.Remaining(context.Background(), query)
	require.NoError(t, err)
	countCallsAfterFirst := store.countCalls

	second, err := service.Remaining(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, countCallsAfterFirst, store.countCalls, "second read should come from cache")
}

func TestRotaServiceRemainingValidation(t *testing.T) {
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(2)})

	_, err := service.Remaining(context.Background(), dto.RemainingShiftsQuery{
		Start: "2025-03-09", End: "2025-03-03", DoctorsPerShift: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRotaServiceExportWeekCSV(t *testing.T) {
	dayOne, err := ParseDay("2025-03-03")
	require.NoError(t, err)

	store := newScheduleStoreStub()
	store.detailed = []models.ScheduleEntryDetail{
		{
			ScheduleEntry:  models.ScheduleEntry{ID: "entry-1", DoctorID: "doc-01", Date: dayOne, DayOfWeek: "MONDAY", Shift: models.ShiftMorning},
			DoctorName:     "Doctor 01",
			Specialization: "Cardiology",
		},
	}
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1), store: store})

	payload, contentType, err := service.ExportWeek(context.Background(), "2025-03-03", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Doctor 01")
	assert.Contains(t, string(payload), "MORNING")
	assert.Contains(t, string(payload), "ON")
}

func TestRotaServiceExportWeekRejectsUnknownFormat(t *testing.T) {
	service := newRotaServiceFixture(t, rotaFixtureConfig{doctors: mockDoctors(1)})

	_, _, err := service.ExportWeek(context.Background(), "2025-03-03", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

type rotaFixtureConfig struct {
	doctors []models.Doctor
	store   *scheduleStoreStub
	cache   reportCache
	tx      txProvider
}

func newRotaServiceFixture(t *testing.T, cfg rotaFixtureConfig) *RotaService {
	t.Helper()
	store := cfg.store
	if store == nil {
		store = newScheduleStoreStub()
	}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}
	return NewRotaService(
		doctorDirectoryStub{doctors: cfg.doctors},
		store,
		cfg.cache,
		nil,
		tx,
		validator.New(),
		zap.NewNop(),
		RotaConfig{MaxDoctorsPerShift: 10, RemainingCacheTTL: time.Minute},
	)
}

type doctorDirectoryStub struct {
	doctors []models.Doctor
}

func (s doctorDirectoryStub) ListAvailable(ctx context.Context) ([]models.Doctor, error) {
	return s.doctors, nil
}

func (s doctorDirectoryStub) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	for _, doctor := range s.doctors {
		if doctor.ID == id {
			return &doctor, nil
		}
	}
	return nil, sql.ErrNoRows
}

type scheduleStoreStub struct {
	existing        []models.ScheduleEntry
	detailed        []models.ScheduleEntryDetail
	created         []models.ScheduleEntry
	counts          map[string]int
	countCalls      int
	swapCalls       int
	windowOccupied  bool
	occupyOnRecheck bool
	createErr       error
}

func newScheduleStoreStub() *scheduleStoreStub {
	return &scheduleStoreStub{counts: map[string]int{}}
}

func (s *scheduleStoreStub) ListInWindow(ctx context.Context, start, end time.Time) ([]models.ScheduleEntry, error) {
	var result []models.ScheduleEntry
	for _, entry := range s.existing {
		if !entry.Date.Before(start) && !entry.Date.After(end) {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *scheduleStoreStub) ListInWindowDetailed(ctx context.Context, start, end time.Time) ([]models.ScheduleEntryDetail, error) {
	return s.detailed, nil
}

func (s *scheduleStoreStub) ExistsInWindow(ctx context.Context, exec sqlx.ExtContext, start, end time.Time) (bool, error) {
	if s.windowOccupied {
		return true, nil
	}
	if s.occupyOnRecheck && exec != nil {
		return true, nil
	}
	return false, nil
}

func (s *scheduleStoreStub) FindByDoctorDateShift(ctx context.Context, doctorID string, date time.Time, shift string) (*models.ScheduleEntry, error) {
	for _, entry := range s.existing {
		if entry.DoctorID == doctorID && entry.Date.Equal(date) && entry.Shift == shift {
			found := entry
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleStoreStub) FindActiveByDoctorDate(ctx context.Context, doctorID string, date time.Time) (*models.ScheduleEntry, error) {
	for _, entry := range s.existing {
		if entry.DoctorID == doctorID && entry.Date.Equal(date) && !entry.IsOff {
			found := entry
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleStoreStub) CountAssigned(ctx context.Context, date time.Time, shift string) (int, error) {
	s.countCalls++
	return s.counts[countKey(date, shift)], nil
}

func (s *scheduleStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	if s.createErr != nil {
		return s.createErr
	}
	entry.ID = fmt.Sprintf("entry-%d", len(s.created)+1)
	s.created = append(s.created, *entry)
	return nil
}

func (s *scheduleStoreStub) FindForUpdate(ctx context.Context, tx *sqlx.Tx, doctorID string, date time.Time, shift string) (*models.ScheduleEntry, error) {
	return s.FindByDoctorDateShift(ctx, doctorID, date, shift)
}

func (s *scheduleStoreStub) SwapPair(ctx context.Context, tx *sqlx.Tx, first, second *models.ScheduleEntry, swappedAt time.Time, updatedBy *string) error {
	s.swapCalls++
	return nil
}

type reportCacheStub struct {
	items map[string][]byte
}

func (c *reportCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *reportCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = raw
	return nil
}

func (c *reportCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.items = map[string][]byte{}
	return nil
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func countKey(date time.Time, shift string) string {
	return FormatDay(date) + ":" + shift
}

// futureMonday returns a YYYY-MM-DD Monday at least a year out, so past-date
// guards never trip.
func futureMonday(t *testing.T) string {
	t.Helper()
	day := Day(time.Now()).AddDate(1, 0, 0)
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, 1)
	}
	return FormatDay(day)
}
