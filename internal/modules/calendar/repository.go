package calendar

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository persists explicit holidays in the planner database
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a holiday repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "holidays").Logger(),
	}
}

// List returns every stored holiday ordered by date
func (r *Repository) List(ctx context.Context) ([]Holiday, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT date, name FROM holidays ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var date, name string
		if err := rows.Scan(&date, &name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		d, err := ParseDay(date)
		if err != nil {
			r.log.Warn().Str("date", date).Msg("Skipping holiday with unparseable date")
			continue
		}
		holidays = append(holidays, Holiday{Date: d, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holidays: %w", err)
	}

	return holidays, nil
}

// Upsert stores or renames a holiday
func (r *Repository) Upsert(ctx context.Context, h Holiday) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO holidays (date, name) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET name = excluded.name`,
		h.Date.Format(time.DateOnly), h.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert holiday: %w", err)
	}
	return nil
}

// Delete removes a stored holiday
func (r *Repository) Delete(ctx context.Context, date time.Time) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM holidays WHERE date = ?", date.Format(time.DateOnly)); err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	return nil
}
