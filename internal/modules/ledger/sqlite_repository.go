package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/rs/zerolog"
)

const entryColumns = `id, date, translator_id, hours, type, start_minute, end_minute,
	task_id, reason, forced, created_at`

// SQLiteRepository stores ledger rows in the allocations table of planner.db
type SQLiteRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteRepository creates a new ledger repository
func NewSQLiteRepository(db *sql.DB, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Insert stores e and returns its ID
func (r *SQLiteRepository) Insert(ctx context.Context, e *domain.AllocationEntry) (int64, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id any
	if e.ID != 0 {
		id = e.ID
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO allocations (id, date, translator_id, hours, type, start_minute, end_minute,
			task_id, reason, forced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		e.Date.Format(time.DateOnly),
		e.TranslatorID,
		e.Hours,
		string(e.Type),
		nullMinute(e.StartTime),
		nullMinute(e.EndTime),
		nullTask(e.Type, e.TaskID),
		e.Reason,
		boolToInt(e.Forced),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert allocation: %w", err)
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get allocation id: %w", err)
	}
	return newID, nil
}

// Get returns one row
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*domain.AllocationEntry, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM allocations WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("allocation %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation %d: %w", id, err)
	}
	return e, nil
}

// Delete removes one row
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM allocations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete allocation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("allocation %d not found", id)
	}
	return nil
}

// Update replaces hours, range and flags of a row
func (r *SQLiteRepository) Update(ctx context.Context, e *domain.AllocationEntry) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE allocations
		SET hours = ?, start_minute = ?, end_minute = ?, reason = ?, forced = ?
		WHERE id = ?`,
		e.Hours, nullMinute(e.StartTime), nullMinute(e.EndTime), e.Reason, boolToInt(e.Forced), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update allocation %d: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("allocation %d not found", e.ID)
	}
	return nil
}

// ListByTranslator returns the translator's rows in [from, to]
func (r *SQLiteRepository) ListByTranslator(ctx context.Context, translatorID string, from, to time.Time) ([]domain.AllocationEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM allocations
		WHERE translator_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, COALESCE(start_minute, -1), id`,
		translatorID, from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for %s: %w", translatorID, err)
	}
	return r.collect(rows)
}

// ListByTask returns every row owned by the task
func (r *SQLiteRepository) ListByTask(ctx context.Context, taskID int64) ([]domain.AllocationEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM allocations
		WHERE type = 'TASK' AND task_id = ?
		ORDER BY date, COALESCE(start_minute, -1), id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for task %d: %w", taskID, err)
	}
	return r.collect(rows)
}

func (r *SQLiteRepository) collect(rows *sql.Rows) ([]domain.AllocationEntry, error) {
	defer rows.Close()

	var entries []domain.AllocationEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*domain.AllocationEntry, error) {
	var (
		e                  domain.AllocationEntry
		date, typ, created string
		start, end         sql.NullInt64
		taskID             sql.NullInt64
		forced             int
	)
	if err := s.Scan(&e.ID, &date, &e.TranslatorID, &e.Hours, &typ, &start, &end,
		&taskID, &e.Reason, &forced, &created); err != nil {
		return nil, err
	}

	d, err := time.ParseInLocation(time.DateOnly, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid allocation date %q: %w", date, err)
	}
	e.Date = d
	e.Type = domain.EntryType(typ)
	if start.Valid {
		e.StartTime = domain.TimeOfDay(start.Int64).Ptr()
	}
	if end.Valid {
		e.EndTime = domain.TimeOfDay(end.Int64).Ptr()
	}
	if taskID.Valid {
		e.TaskID = taskID.Int64
	}
	e.Forced = forced != 0
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

func nullMinute(t *domain.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return int(*t)
}

func nullTask(typ domain.EntryType, id int64) any {
	if typ != domain.EntryTask || id == 0 {
		return nil
	}
	return id
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
