package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// SuggestionStore is the expiry side of the suggestion store
type SuggestionStore interface {
	Expire(ttl time.Duration) int
	Len() int
}

// SuggestionGCJob drops suggestions older than the TTL
type SuggestionGCJob struct {
	store SuggestionStore
	ttl   time.Duration
	log   zerolog.Logger
}

// NewSuggestionGCJob creates a new suggestion GC job
func NewSuggestionGCJob(store SuggestionStore, ttl time.Duration, log zerolog.Logger) *SuggestionGCJob {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SuggestionGCJob{
		store: store,
		ttl:   ttl,
		log:   log.With().Str("job", "suggestion_gc").Logger(),
	}
}

// Name returns the job name
func (j *SuggestionGCJob) Name() string {
	return "suggestion_gc"
}

// Run executes the expiry
func (j *SuggestionGCJob) Run() error {
	removed := j.store.Expire(j.ttl)
	if removed > 0 {
		j.log.Info().
			Int("removed", removed).
			Int("remaining", j.store.Len()).
			Dur("ttl", j.ttl).
			Msg("Expired suggestions")
	}
	return nil
}
