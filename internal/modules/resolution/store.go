package resolution

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store keeps generated suggestions until they are applied, dismissed or expire.
// Suggestions are ephemeral, so the store lives in memory only.
type Store struct {
	suggestions map[string]*domain.Suggestion
	mu          sync.RWMutex
	now         func() time.Time
	log         zerolog.Logger
}

// NewStore creates an empty suggestion store
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		suggestions: make(map[string]*domain.Suggestion),
		now:         time.Now,
		log:         log.With().Str("repository", "suggestion_inmemory").Logger(),
	}
}

// SetClock injects the clock used for timestamps and expiry
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Save assigns an ID and pending status to sug and stores a copy
func (s *Store) Save(sug *domain.Suggestion) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sug.ID = uuid.New().String()
	sug.Status = domain.SuggestionPending
	sug.CreatedAt = s.now().UTC()

	stored := cloneSuggestion(*sug)
	s.suggestions[sug.ID] = &stored
	return sug.ID
}

// Get returns a copy of one suggestion
func (s *Store) Get(id string) (*domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sug, ok := s.suggestions[id]
	if !ok {
		return nil, domain.NotFound("suggestion %s not found", id)
	}
	out := cloneSuggestion(*sug)
	return &out, nil
}

// Claim moves a pending suggestion to applied and returns it. Only one caller
// can claim a given suggestion; Release undoes a claim whose apply failed.
func (s *Store) Claim(id string) (*domain.Suggestion, error) {
	return s.transition(id, domain.SuggestionApplied)
}

// Release puts a claimed suggestion back to pending
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sug, ok := s.suggestions[id]; ok && sug.Status == domain.SuggestionApplied {
		sug.Status = domain.SuggestionPending
	}
}

// Dismiss marks a pending suggestion dismissed
func (s *Store) Dismiss(id string) (*domain.Suggestion, error) {
	return s.transition(id, domain.SuggestionDismissed)
}

func (s *Store) transition(id string, to domain.SuggestionStatus) (*domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sug, ok := s.suggestions[id]
	if !ok {
		return nil, domain.NotFound("suggestion %s not found", id)
	}
	if sug.Status != domain.SuggestionPending {
		return nil, domain.InvalidInput("suggestion %s is already %s", id, sug.Status)
	}
	sug.Status = to
	out := cloneSuggestion(*sug)
	return &out, nil
}

// DismissForTask dismisses every pending suggestion of a task, e.g. after the
// task was rewritten and the proposals went stale. It returns the count.
func (s *Store) DismissForTask(taskID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sug := range s.suggestions {
		if sug.TaskID == taskID && sug.Status == domain.SuggestionPending {
			sug.Status = domain.SuggestionDismissed
			count++
		}
	}
	return count
}

// Pending lists pending suggestions, oldest first
func (s *Store) Pending() []domain.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]domain.Suggestion, 0)
	for _, sug := range s.suggestions {
		if sug.Status == domain.SuggestionPending {
			pending = append(pending, cloneSuggestion(*sug))
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// Expire drops suggestions older than ttl, whatever their status, and
// returns how many were removed.
func (s *Store) Expire(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-ttl)
	removed := 0
	for id, sug := range s.suggestions {
		if sug.CreatedAt.Before(cutoff) {
			delete(s.suggestions, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("Expired suggestions")
	}
	return removed
}

// Len returns the number of stored suggestions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.suggestions)
}

func cloneSuggestion(sug domain.Suggestion) domain.Suggestion {
	if sug.ConflictIDs != nil {
		sug.ConflictIDs = append(make([]string, 0, len(sug.ConflictIDs)), sug.ConflictIDs...)
	}
	if sug.Allocations != nil {
		sug.Allocations = append(make([]domain.Slot, 0, len(sug.Allocations)), sug.Allocations...)
	}
	if sug.Candidates != nil {
		sug.Candidates = append(make([]domain.Candidate, 0, len(sug.Candidates)), sug.Candidates...)
	}
	return sug
}
