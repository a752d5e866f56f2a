package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/rs/zerolog"
)

// Write outcomes
const (
	StatusOK               = "OK"
	StatusConflictDetected = string(domain.CodeConflictDetected)
)

// Roster resolves translators
type Roster interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
}

// Submission is a create or update request for one task.
//
// Either AutoDistribute is set (the task's mode computes the allocation) or
// Allocations carries a manual allocation that is only validated.
type Submission struct {
	ProjectNumber  string
	TranslatorID   string
	TotalHours     float64
	Due            time.Time
	Priority       domain.Priority
	Mode           domain.DistributionMode
	WindowStart    *time.Time
	WindowEnd      *time.Time
	LanguagePair   string
	Client         string
	Domain         string
	AutoDistribute bool
	Allocations    []domain.Slot
	// Force writes rows over capacity, flagged as forced
	Force bool
	// Confirm accepts a past-date or after-due-date warning
	Confirm bool
	// Version is the version the caller last read; zero skips the check
	Version int64
}

// Result is the outcome of a successful write
type Result struct {
	Task      *domain.Task             `json:"task"`
	Entries   []domain.AllocationEntry `json:"allocations"`
	Conflicts []domain.Conflict        `json:"conflicts"`
	Status    string                   `json:"status"`
	Warning   *distribution.Warning    `json:"warning,omitempty"`
}

// Service runs task writes as ledger units
type Service struct {
	repo     Repository
	ledger   *ledger.Ledger
	engine   *distribution.Engine
	detector *conflicts.Detector
	roster   Roster
	store    *resolution.Store
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a task service. A nil store skips suggestion bookkeeping.
func NewService(
	repo Repository,
	l *ledger.Ledger,
	engine *distribution.Engine,
	detector *conflicts.Detector,
	roster Roster,
	store *resolution.Store,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		ledger:   l,
		engine:   engine,
		detector: detector,
		roster:   roster,
		store:    store,
		now:      engine.Now,
		log:      log.With().Str("service", "tasks").Logger(),
	}
}

// Get returns one task
func (s *Service) Get(ctx context.Context, id int64) (*domain.Task, error) {
	return s.repo.Get(ctx, id)
}

// List returns tasks matching filter
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*domain.Task, error) {
	return s.repo.List(ctx, filter)
}

// Entries returns a task's ledger rows
func (s *Service) Entries(ctx context.Context, id int64) ([]domain.AllocationEntry, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.EntriesForTask(ctx, id)
}

// Create validates sub, computes or checks its allocation and writes the task
// with its rows as one unit.
func (s *Service) Create(ctx context.Context, sub Submission) (*Result, error) {
	task, err := s.taskFrom(sub)
	if err != nil {
		return nil, err
	}
	t, err := s.roster.Get(ctx, task.TranslatorID)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = s.ledger.Update(ctx, []string{t.ID}, func(w *ledger.Writer) error {
		slots, warning, err := s.allocate(ctx, w, t, task, sub)
		if err != nil {
			return err
		}

		id, err := s.repo.Create(ctx, task)
		if err != nil {
			return err
		}
		w.OnRollback(fmt.Sprintf("delete task %d", id), func(ctx context.Context) error {
			return s.repo.Delete(ctx, id)
		})

		res, err = s.write(ctx, w, t, task, slots, sub.Force, nil)
		if err != nil {
			return err
		}
		res.Warning = warning
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("task_id", res.Task.ID).
		Str("translator_id", t.ID).
		Float64("hours", task.TotalHours).
		Str("mode", string(task.Mode)).
		Str("status", res.Status).
		Msg("Task created")
	return res, nil
}

// Update rewrites a task and replaces its rows. The old translator (if the
// task moves) and the new one are locked together.
func (s *Service) Update(ctx context.Context, id int64, sub Submission) (*Result, error) {
	prev, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := prev.Version
	if sub.Version != 0 {
		if sub.Version != prev.Version {
			return nil, staleVersion(id, sub.Version)
		}
		expected = sub.Version
	}

	task, err := s.taskFrom(sub)
	if err != nil {
		return nil, err
	}
	task.ID = id
	task.CreatedAt = prev.CreatedAt

	t, err := s.roster.Get(ctx, task.TranslatorID)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = s.ledger.Update(ctx, []string{prev.TranslatorID, t.ID}, func(w *ledger.Writer) error {
		oldRows, err := w.EntriesForTask(ctx, id)
		if err != nil {
			return err
		}
		for _, e := range oldRows {
			if err := w.RemoveAllocation(ctx, e.ID); err != nil {
				return err
			}
		}

		slots, warning, err := s.allocate(ctx, w, t, task, sub)
		if err != nil {
			return err
		}

		if err := s.repo.Update(ctx, task, expected); err != nil {
			return err
		}
		w.OnRollback(fmt.Sprintf("restore task %d", id), func(ctx context.Context) error {
			return s.repo.Restore(ctx, prev)
		})

		var touched []time.Time
		if prev.TranslatorID == t.ID {
			for _, e := range oldRows {
				touched = append(touched, e.Date)
			}
		}
		res, err = s.write(ctx, w, t, task, slots, sub.Force, touched)
		if err != nil {
			return err
		}
		res.Warning = warning
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dismissStale(id)
	s.log.Info().
		Int64("task_id", id).
		Int64("version", res.Task.Version).
		Str("translator_id", t.ID).
		Str("status", res.Status).
		Msg("Task updated")
	return res, nil
}

// Delete removes a task and its rows
func (s *Service) Delete(ctx context.Context, id int64) error {
	prev, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.ledger.Update(ctx, []string{prev.TranslatorID}, func(w *ledger.Writer) error {
		rows, err := w.EntriesForTask(ctx, id)
		if err != nil {
			return err
		}
		for _, e := range rows {
			if err := w.RemoveAllocation(ctx, e.ID); err != nil {
				return err
			}
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		w.OnRollback(fmt.Sprintf("restore task %d", id), func(ctx context.Context) error {
			return s.repo.Restore(ctx, prev)
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.dismissStale(id)
	s.log.Info().Int64("task_id", id).Msg("Task deleted")
	return nil
}

// ApplyOptions controls how a suggestion is committed
type ApplyOptions struct {
	// Force writes the proposal even if the target days filled up after it
	// was computed; the rows are flagged as forced
	Force bool
}

// ApplySuggestion commits a stored suggestion through the task write path:
// its allocation becomes the task's manual payload on its target translator.
// Capacity is checked like any other write, so a proposal gone stale fails
// with CAPACITY_EXCEEDED and the suggestion stays pending.
func (s *Service) ApplySuggestion(ctx context.Context, suggestionID string, opts ApplyOptions) (*Result, error) {
	if s.store == nil {
		return nil, domain.NotFound("suggestion %s not found", suggestionID)
	}
	sug, err := s.store.Claim(suggestionID)
	if err != nil {
		return nil, err
	}
	if sug.Type == domain.SuggestionImpossible {
		s.store.Release(suggestionID)
		return nil, domain.InvalidInput("suggestion %s needs manual intervention and cannot be applied", suggestionID)
	}

	res, err := s.applySuggestion(ctx, sug, opts)
	if err != nil {
		s.store.Release(suggestionID)
		return nil, err
	}

	s.log.Info().
		Str("suggestion_id", suggestionID).
		Str("type", string(sug.Type)).
		Int64("task_id", sug.TaskID).
		Str("translator_id", sug.TranslatorID).
		Bool("forced", opts.Force).
		Msg("Suggestion applied")
	return res, nil
}

func (s *Service) applySuggestion(ctx context.Context, sug *domain.Suggestion, opts ApplyOptions) (*Result, error) {
	task, err := s.repo.Get(ctx, sug.TaskID)
	if err != nil {
		return nil, err
	}

	sub := SubmissionFromTask(task)
	sub.TranslatorID = sug.TranslatorID
	sub.Allocations = sug.Allocations
	sub.AutoDistribute = false
	sub.Force = opts.Force
	sub.Confirm = true
	sub.Version = task.Version
	return s.Update(ctx, task.ID, sub)
}

// SubmissionFromTask returns a submission that rewrites task as it stands
func SubmissionFromTask(t *domain.Task) Submission {
	return Submission{
		ProjectNumber:  t.ProjectNumber,
		TranslatorID:   t.TranslatorID,
		TotalHours:     t.TotalHours,
		Due:            t.Due,
		Priority:       t.Priority,
		Mode:           t.Mode,
		WindowStart:    t.WindowStart,
		WindowEnd:      t.WindowEnd,
		LanguagePair:   t.LanguagePair,
		Client:         t.Client,
		Domain:         t.Domain,
		AutoDistribute: t.Mode != domain.ModeManual,
		Version:        t.Version,
	}
}

func (s *Service) taskFrom(sub Submission) (*domain.Task, error) {
	if strings.TrimSpace(sub.ProjectNumber) == "" {
		return nil, domain.InvalidInput("project number is required")
	}
	if sub.TranslatorID == "" {
		return nil, domain.InvalidInput("translator is required")
	}
	if sub.TotalHours <= 0 {
		return nil, domain.InvalidInput("total hours must be positive, got %.2f", sub.TotalHours)
	}
	if sub.Due.IsZero() {
		return nil, domain.InvalidInput("due date is required")
	}

	mode := sub.Mode
	if len(sub.Allocations) > 0 && mode == "" {
		mode = domain.ModeManual
	}
	if !mode.Valid() {
		return nil, domain.InvalidInput("unknown distribution mode %q", sub.Mode)
	}
	if !sub.AutoDistribute && len(sub.Allocations) == 0 {
		return nil, domain.InvalidInput("either automatic distribution or a manual allocation is required")
	}
	if sub.AutoDistribute && mode == domain.ModeManual {
		return nil, domain.InvalidInput("MANUAL tasks need an explicit allocation")
	}

	priority := sub.Priority
	if priority == "" {
		priority = domain.PriorityRegular
	}
	now := s.now().UTC()
	return &domain.Task{
		ProjectNumber: strings.TrimSpace(sub.ProjectNumber),
		TranslatorID:  sub.TranslatorID,
		TotalHours:    domain.RoundHours(sub.TotalHours),
		Due:           sub.Due,
		Priority:      priority,
		Mode:          mode,
		WindowStart:   sub.WindowStart,
		WindowEnd:     sub.WindowEnd,
		LanguagePair:  sub.LanguagePair,
		Client:        sub.Client,
		Domain:        sub.Domain,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// allocate runs the engine through the unit's view. A warning the caller
// has not confirmed aborts the unit with PAST_DATE_WARNING.
func (s *Service) allocate(ctx context.Context, v ledger.View, t *domain.Translator, task *domain.Task, sub Submission) ([]domain.Slot, *distribution.Warning, error) {
	req := distribution.Request{
		Translator: t,
		TotalHours: task.TotalHours,
		Mode:       task.Mode,
		Due:        task.Due,
		Start:      task.WindowStart,
		End:        task.WindowEnd,
	}
	if !sub.AutoDistribute {
		req.Mode = domain.ModeManual
		req.Manual = sub.Allocations
	}

	res, err := s.engine.Distribute(ctx, v, req)
	if err != nil {
		return nil, nil, err
	}
	if res.Warning != nil && !sub.Confirm {
		w := res.Warning
		dates := make([]string, 0, len(w.Dates))
		for _, d := range w.Dates {
			dates = append(dates, d.Format(time.DateOnly))
		}
		return nil, nil, domain.NewError(domain.CodePastDateWarning, "%s", w.Message).
			WithDetail("kind", w.Kind).
			WithDetail("dates", dates).
			WithDetail("hours", w.Hours).
			WithDetail("allocations", res.Slots)
	}
	return res.Slots, res.Warning, nil
}

// write inserts task rows for slots and re-detects the touched dates with
// the new rows as triggers.
func (s *Service) write(ctx context.Context, w *ledger.Writer, t *domain.Translator, task *domain.Task, slots []domain.Slot, force bool, touched []time.Time) (*Result, error) {
	added := make([]int64, 0, len(slots))
	for _, sl := range slots {
		id, err := w.AddAllocation(ctx, &domain.AllocationEntry{
			Date:         sl.Date,
			TranslatorID: t.ID,
			Hours:        sl.Hours,
			Type:         domain.EntryTask,
			StartTime:    sl.StartTime,
			EndTime:      sl.EndTime,
			TaskID:       task.ID,
		}, force)
		if err != nil {
			return nil, err
		}
		added = append(added, id)
		touched = append(touched, sl.Date)
	}

	entries, err := w.EntriesForTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	found := []domain.Conflict{}
	if len(touched) > 0 {
		sort.Slice(touched, func(i, j int) bool { return touched[i].Before(touched[j]) })
		found, err = s.detector.Detect(ctx, w, t, touched[0], touched[len(touched)-1], conflicts.Options{TriggerIDs: added})
		if err != nil {
			return nil, err
		}
	}

	status := StatusOK
	if len(found) > 0 {
		status = StatusConflictDetected
	}
	if entries == nil {
		entries = []domain.AllocationEntry{}
	}
	return &Result{Task: task, Entries: entries, Conflicts: found, Status: status}, nil
}

func (s *Service) dismissStale(taskID int64) {
	if s.store == nil {
		return
	}
	if n := s.store.DismissForTask(taskID); n > 0 {
		s.log.Debug().Int64("task_id", taskID).Int("dismissed", n).Msg("Dismissed stale suggestions")
	}
}
