// Package roster provides read access to the translator roster.
// The roster is owned by the admin collaborator; the planner only reads it
// (imports go through Upsert).
package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/rs/zerolog"
)

// Repository is the translator store
type Repository interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
	List(ctx context.Context) ([]*domain.Translator, error)
	Upsert(ctx context.Context, t *domain.Translator) error
}

// ListActive returns the active translators of repo
func ListActive(ctx context.Context, repo Repository) ([]*domain.Translator, error) {
	all, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*domain.Translator, 0, len(all))
	for _, t := range all {
		if t.Active {
			active = append(active, t)
		}
	}
	return active, nil
}

// Validate checks a roster record
func Validate(t *domain.Translator) error {
	if t.ID == "" {
		return domain.InvalidInput("translator id is required")
	}
	if t.DailyCapacity < 0 {
		return domain.InvalidInput("translator %s: daily capacity must not be negative", t.ID)
	}
	if t.WorkEnd <= t.WorkStart {
		return domain.InvalidInput("translator %s: work end %s must be after start %s", t.ID, t.WorkEnd, t.WorkStart)
	}
	return nil
}

// SQLiteRepository reads translators from planner.db
type SQLiteRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteRepository creates a new roster repository
func NewSQLiteRepository(db *sql.DB, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		log: log.With().Str("repo", "roster").Logger(),
	}
}

const translatorColumns = `id, name, divisions, daily_capacity, work_start, work_end,
	language_pairs, domains, active, seeking_work`

// Get returns one translator
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*domain.Translator, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+translatorColumns+" FROM translators WHERE id = ?", id)
	t, err := scanTranslator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("translator %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get translator %s: %w", id, err)
	}
	return t, nil
}

// List returns all translators ordered by id
func (r *SQLiteRepository) List(ctx context.Context) ([]*domain.Translator, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+translatorColumns+" FROM translators ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query translators: %w", err)
	}
	defer rows.Close()

	var out []*domain.Translator
	for rows.Next() {
		t, err := scanTranslator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translator: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating translators: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces a translator (roster import)
func (r *SQLiteRepository) Upsert(ctx context.Context, t *domain.Translator) error {
	if err := Validate(t); err != nil {
		return err
	}

	divisions, _ := json.Marshal(nonNil(t.Divisions))
	pairs, _ := json.Marshal(nonNil(t.LanguagePairs))
	domains, _ := json.Marshal(nonNil(t.Domains))

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO translators (`+translatorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			divisions = excluded.divisions,
			daily_capacity = excluded.daily_capacity,
			work_start = excluded.work_start,
			work_end = excluded.work_end,
			language_pairs = excluded.language_pairs,
			domains = excluded.domains,
			active = excluded.active,
			seeking_work = excluded.seeking_work`,
		t.ID, t.Name, string(divisions), t.DailyCapacity, int(t.WorkStart), int(t.WorkEnd),
		string(pairs), string(domains), boolToInt(t.Active), boolToInt(t.SeekingWork))
	if err != nil {
		return fmt.Errorf("failed to upsert translator %s: %w", t.ID, err)
	}

	r.log.Debug().Str("translator_id", t.ID).Msg("Translator upserted")
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranslator(s scanner) (*domain.Translator, error) {
	var (
		t                      domain.Translator
		divisions, pairs, doms string
		workStart, workEnd     int
		active, seeking        int
	)
	if err := s.Scan(&t.ID, &t.Name, &divisions, &t.DailyCapacity, &workStart, &workEnd,
		&pairs, &doms, &active, &seeking); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(divisions), &t.Divisions); err != nil {
		return nil, fmt.Errorf("invalid divisions for %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(pairs), &t.LanguagePairs); err != nil {
		return nil, fmt.Errorf("invalid language pairs for %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(doms), &t.Domains); err != nil {
		return nil, fmt.Errorf("invalid domains for %s: %w", t.ID, err)
	}
	t.WorkStart = domain.TimeOfDay(workStart)
	t.WorkEnd = domain.TimeOfDay(workEnd)
	t.Active = active != 0
	t.SeekingWork = seeking != 0
	return &t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// MemoryRepository is an in-memory roster for tests
type MemoryRepository struct {
	mu          sync.RWMutex
	translators map[string]domain.Translator
}

// NewMemoryRepository creates a roster holding translators
func NewMemoryRepository(translators ...*domain.Translator) *MemoryRepository {
	r := &MemoryRepository{translators: make(map[string]domain.Translator)}
	for _, t := range translators {
		r.translators[t.ID] = *t
	}
	return r
}

// Get returns a copy of one translator
func (r *MemoryRepository) Get(_ context.Context, id string) (*domain.Translator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.translators[id]
	if !ok {
		return nil, domain.NotFound("translator %s not found", id)
	}
	return &t, nil
}

// List returns copies ordered by id
func (r *MemoryRepository) List(_ context.Context) ([]*domain.Translator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Translator, 0, len(r.translators))
	for _, t := range r.translators {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert stores a copy of t
func (r *MemoryRepository) Upsert(_ context.Context, t *domain.Translator) error {
	if err := Validate(t); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[t.ID] = *t
	return nil
}
