package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/klinikgo/clinic-rota-api/internal/models"
)

const scheduleEntryColumns = "id, doctor_id, date, day_of_week, shift, is_off, swapped_with_id, swapped_at, created_by, updated_by, created_at, updated_at, deleted_at"

// ScheduleEntryRepository manages persistence for rota assignments.
//
// Every mutating method accepts an sqlx.ExtContext so callers can thread a
// transaction through; passing nil falls back to the pooled connection.
type ScheduleEntryRepository struct {
	db *sqlx.DB
}

// NewScheduleEntryRepository constructs a ScheduleEntryRepository.
func NewScheduleEntryRepository(db *sqlx.DB) *ScheduleEntryRepository {
	return &ScheduleEntryRepository{db: db}
}

func (r *ScheduleEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListInWindow returns all live entries dated within [start, end].
func (r *ScheduleEntryRepository) ListInWindow(ctx context.Context, start, end time.Time) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE date >= $1 AND date <= $2 AND deleted_at IS NULL ORDER BY date ASC, shift ASC, doctor_id ASC", scheduleEntryColumns)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, start, end); err != nil {
		return nil, fmt.Errorf("list schedule entries in window: %w", err)
	}
	return entries, nil
}

// ExistsInWindow reports whether any live entry is dated within [start, end].
// It is the generation idempotency guard and runs against the provided
// transaction when one is given.
func (r *ScheduleEntryRepository) ExistsInWindow(ctx context.Context, exec sqlx.ExtContext, start, end time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM schedule_entries WHERE date >= $1 AND date <= $2 AND deleted_at IS NULL)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, start, end); err != nil {
		return false, fmt.Errorf("check schedule entries in window: %w", err)
	}
	return exists, nil
}

// FindByDoctorDateShift loads the entry matching the tuple exactly, off or not.
func (r *ScheduleEntryRepository) FindByDoctorDateShift(ctx context.Context, doctorID string, date time.Time, shift string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE doctor_id = $1 AND date = $2 AND shift = $3 AND deleted_at IS NULL", scheduleEntryColumns)
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, doctorID, date, shift); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindActiveByDoctorDate loads a non-off entry for the doctor on the date,
// whichever shift it holds.
func (r *ScheduleEntryRepository) FindActiveByDoctorDate(ctx context.Context, doctorID string, date time.Time) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE doctor_id = $1 AND date = $2 AND is_off = FALSE AND deleted_at IS NULL ORDER BY shift ASC LIMIT 1", scheduleEntryColumns)
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, doctorID, date); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CountAssigned counts non-off entries occupying a slot.
func (r *ScheduleEntryRepository) CountAssigned(ctx context.Context, date time.Time, shift string) (int, error) {
	const query = `SELECT COUNT(*) FROM schedule_entries WHERE date = $1 AND shift = $2 AND is_off = FALSE AND deleted_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, date, shift); err != nil {
		return 0, fmt.Errorf("count assigned entries: %w", err)
	}
	return count, nil
}

// Create stores a new schedule entry.
func (r *ScheduleEntryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO schedule_entries (id, doctor_id, date, day_of_week, shift, is_off, swapped_with_id, swapped_at, created_by, updated_by, created_at, updated_at)
VALUES (:id, :doctor_id, :date, :day_of_week, :shift, :is_off, :swapped_with_id, :swapped_at, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("create schedule entry: %w", err)
	}
	return nil
}

// FindForUpdate loads an entry by tuple inside a transaction with a row lock.
func (r *ScheduleEntryRepository) FindForUpdate(ctx context.Context, tx *sqlx.Tx, doctorID string, date time.Time, shift string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE doctor_id = $1 AND date = $2 AND shift = $3 AND deleted_at IS NULL FOR UPDATE", scheduleEntryColumns)
	var entry models.ScheduleEntry
	if err := tx.GetContext(ctx, &entry, query, doctorID, date, shift); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SwapPair exchanges the owning doctors of two locked entries and sets
// reciprocal swap links in a single statement, so the (doctor_id, date,
// shift) uniqueness check evaluates both rows together.
func (r *ScheduleEntryRepository) SwapPair(ctx context.Context, tx *sqlx.Tx, first, second *models.ScheduleEntry, swappedAt time.Time, updatedBy *string) error {
	const query = `UPDATE schedule_entries
SET doctor_id = CASE id WHEN $1 THEN $4 WHEN $2 THEN $3 END,
    swapped_with_id = CASE id WHEN $1 THEN $2 WHEN $2 THEN $1 END,
    swapped_at = $5,
    updated_by = $6,
    updated_at = $7
WHERE id IN ($1, $2) AND deleted_at IS NULL`
	result, err := tx.ExecContext(ctx, query, first.ID, second.ID, first.DoctorID, second.DoctorID, swappedAt, updatedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("swap entries %s/%s: %w", first.ID, second.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("swap rows affected: %w", err)
	}
	if affected != 2 {
		return fmt.Errorf("swap touched %d rows, want 2", affected)
	}
	return nil
}

// ListInWindowDetailed joins doctor names onto live entries within [start, end].
func (r *ScheduleEntryRepository) ListInWindowDetailed(ctx context.Context, start, end time.Time) ([]models.ScheduleEntryDetail, error) {
	const query = `SELECT e.id, e.doctor_id, e.date, e.day_of_week, e.shift, e.is_off, e.swapped_with_id, e.swapped_at, e.created_by, e.updated_by, e.created_at, e.updated_at, e.deleted_at,
       d.full_name AS doctor_name, d.specialization
FROM schedule_entries e
JOIN doctors d ON d.id = e.doctor_id
WHERE e.date >= $1 AND e.date <= $2 AND e.deleted_at IS NULL
ORDER BY e.date ASC, e.shift ASC, d.full_name ASC`
	var rows []models.ScheduleEntryDetail
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("list schedule entries with doctors: %w", err)
	}
	return rows, nil
}
