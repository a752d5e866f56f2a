// Package tasks owns task records and the write path that turns a task
// submission into ledger rows.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/rs/zerolog"
)

// Repository stores tasks. Update is a compare-and-swap on Version.
type Repository interface {
	Create(ctx context.Context, t *domain.Task) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Task, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.Task, error)
	// Update writes t only if the stored version equals expected, then
	// bumps t.Version. A mismatch is STALE_VERSION.
	Update(ctx context.Context, t *domain.Task, expected int64) error
	// Restore writes t unconditionally, version included
	Restore(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id int64) error
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	TranslatorID string
	DueFrom      *time.Time
	DueTo        *time.Time
}

func (f ListFilter) match(t *domain.Task) bool {
	if f.TranslatorID != "" && t.TranslatorID != f.TranslatorID {
		return false
	}
	if f.DueFrom != nil && t.Due.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && t.Due.After(*f.DueTo) {
		return false
	}
	return true
}

func staleVersion(id, expected int64) *domain.Error {
	return domain.NewError(domain.CodeStaleVersion, "task %d was modified concurrently (expected version %d)", id, expected).
		WithDetail("task_id", id).
		WithDetail("expected_version", expected)
}

const taskColumns = `id, project_number, translator_id, total_hours, due, priority, mode,
	window_start, window_end, language_pair, client, domain, version, created_at, updated_at`

// SQLiteRepository stores tasks in the tasks table of planner.db
type SQLiteRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteRepository creates a new task repository
func NewSQLiteRepository(db *sql.DB, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		log: log.With().Str("repo", "tasks").Logger(),
	}
}

// Create inserts t with version 1 and returns its ID
func (r *SQLiteRepository) Create(ctx context.Context, t *domain.Task) (int64, error) {
	t.Version = 1
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (project_number, translator_id, total_hours, due, priority, mode,
			window_start, window_end, language_pair, client, domain, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectNumber, t.TranslatorID, t.TotalHours, formatInstant(t.Due), string(t.Priority), string(t.Mode),
		nullDay(t.WindowStart), nullDay(t.WindowEnd), t.LanguagePair, t.Client, t.Domain, t.Version,
		formatInstant(t.CreatedAt), formatInstant(t.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get task id: %w", err)
	}
	t.ID = id
	return id, nil
}

// Get returns one task
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("task %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return t, nil
}

// List returns tasks ordered by due date then ID
func (r *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]*domain.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE 1=1"
	args := []any{}
	if filter.TranslatorID != "" {
		query += " AND translator_id = ?"
		args = append(args, filter.TranslatorID)
	}
	if filter.DueFrom != nil {
		query += " AND due >= ?"
		args = append(args, formatInstant(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		query += " AND due <= ?"
		args = append(args, formatInstant(*filter.DueTo))
	}
	query += " ORDER BY due, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// Update writes t when the stored version still equals expected
func (r *SQLiteRepository) Update(ctx context.Context, t *domain.Task, expected int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET project_number = ?, translator_id = ?, total_hours = ?, due = ?, priority = ?, mode = ?,
			window_start = ?, window_end = ?, language_pair = ?, client = ?, domain = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		t.ProjectNumber, t.TranslatorID, t.TotalHours, formatInstant(t.Due), string(t.Priority), string(t.Mode),
		nullDay(t.WindowStart), nullDay(t.WindowEnd), t.LanguagePair, t.Client, t.Domain,
		formatInstant(t.UpdatedAt), t.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, t.ID); err != nil {
			return err
		}
		r.log.Debug().Int64("task_id", t.ID).Int64("expected", expected).Msg("Stale task version")
		return staleVersion(t.ID, expected)
	}
	t.Version = expected + 1
	return nil
}

// Restore writes every column of t, inserting the row if it was deleted
func (r *SQLiteRepository) Restore(ctx context.Context, t *domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectNumber, t.TranslatorID, t.TotalHours, formatInstant(t.Due), string(t.Priority), string(t.Mode),
		nullDay(t.WindowStart), nullDay(t.WindowEnd), t.LanguagePair, t.Client, t.Domain, t.Version,
		formatInstant(t.CreatedAt), formatInstant(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to restore task %d: %w", t.ID, err)
	}
	return nil
}

// Delete removes one task
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("task %d not found", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*domain.Task, error) {
	var (
		t                      domain.Task
		due, created, updated  string
		priority, mode         string
		windowStart, windowEnd sql.NullString
	)
	if err := s.Scan(&t.ID, &t.ProjectNumber, &t.TranslatorID, &t.TotalHours, &due, &priority, &mode,
		&windowStart, &windowEnd, &t.LanguagePair, &t.Client, &t.Domain, &t.Version, &created, &updated); err != nil {
		return nil, err
	}

	d, err := time.Parse(time.RFC3339, due)
	if err != nil {
		return nil, fmt.Errorf("invalid due %q: %w", due, err)
	}
	t.Due = d
	t.Priority = domain.Priority(priority)
	t.Mode = domain.DistributionMode(mode)
	if t.WindowStart, err = parseNullDay(windowStart); err != nil {
		return nil, err
	}
	if t.WindowEnd, err = parseNullDay(windowEnd); err != nil {
		return nil, err
	}
	if c, err := time.Parse(time.RFC3339, created); err == nil {
		t.CreatedAt = c
	}
	if u, err := time.Parse(time.RFC3339, updated); err == nil {
		t.UpdatedAt = u
	}
	return &t, nil
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullDay(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

func parseNullDay(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s.String, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid window date %q: %w", s.String, err)
	}
	return &d, nil
}

// MemoryRepository is an in-memory Repository for tests
type MemoryRepository struct {
	mu     sync.RWMutex
	tasks  map[int64]domain.Task
	nextID int64
}

// NewMemoryRepository creates an empty in-memory task repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tasks: make(map[int64]domain.Task)}
}

// Create stores t with version 1
func (r *MemoryRepository) Create(_ context.Context, t *domain.Task) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	t.ID = r.nextID
	t.Version = 1
	r.tasks[t.ID] = cloneTask(*t)
	return t.ID, nil
}

// Get returns one task
func (r *MemoryRepository) Get(_ context.Context, id int64) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.NotFound("task %d not found", id)
	}
	out := cloneTask(t)
	return &out, nil
}

// List returns matching tasks ordered by due date then ID
func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filter.match(&t) {
			c := cloneTask(t)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Update writes t when the stored version equals expected
func (r *MemoryRepository) Update(_ context.Context, t *domain.Task, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tasks[t.ID]
	if !ok {
		return domain.NotFound("task %d not found", t.ID)
	}
	if cur.Version != expected {
		return staleVersion(t.ID, expected)
	}
	t.Version = expected + 1
	t.CreatedAt = cur.CreatedAt
	r.tasks[t.ID] = cloneTask(*t)
	return nil
}

// Restore writes t unconditionally
func (r *MemoryRepository) Restore(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[t.ID] = cloneTask(*t)
	if t.ID > r.nextID {
		r.nextID = t.ID
	}
	return nil
}

// Delete removes one task
func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return domain.NotFound("task %d not found", id)
	}
	delete(r.tasks, id)
	return nil
}

func cloneTask(t domain.Task) domain.Task {
	if t.WindowStart != nil {
		ws := *t.WindowStart
		t.WindowStart = &ws
	}
	if t.WindowEnd != nil {
		we := *t.WindowEnd
		t.WindowEnd = &we
	}
	return t
}
