// Package resolution proposes ranked remediations for detected conflicts:
// local repair on the same translator, reassignment to a qualified
// colleague, or an explicit IMPOSSIBLE when neither works.
package resolution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LedgerView is the read access the suggester needs
type LedgerView interface {
	ledger.View
	EntriesForTask(ctx context.Context, taskID int64) ([]domain.AllocationEntry, error)
}

// TaskSource resolves tasks
type TaskSource interface {
	Get(ctx context.Context, id int64) (*domain.Task, error)
}

// Roster lists translators
type Roster interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
	List(ctx context.Context) ([]*domain.Translator, error)
}

// Config tunes the suggester
type Config struct {
	Weights            Weights
	MaxCandidates      int
	AlwaysAlternatives bool
	// Parallelism bounds concurrent candidate evaluations
	Parallelism int
}

// Request scopes one Suggest call
type Request struct {
	// Alternatives asks for reassignments even when a local repair exists
	Alternatives bool
	// CandidateIDs restricts the reassignment pool; empty means the whole roster
	CandidateIDs []string
}

// Suggester builds suggestions. It only reads the ledger; proposals are
// simulated on overlays.
type Suggester struct {
	engine   *distribution.Engine
	detector *conflicts.Detector
	ledger   LedgerView
	tasks    TaskSource
	roster   Roster
	store    *Store
	cfg      Config
	log      zerolog.Logger
}

// NewSuggester creates a suggester. A nil store leaves suggestions unsaved.
func NewSuggester(
	engine *distribution.Engine,
	detector *conflicts.Detector,
	view LedgerView,
	tasks TaskSource,
	roster Roster,
	store *Store,
	cfg Config,
	log zerolog.Logger,
) *Suggester {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 3
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Suggester{
		engine:   engine,
		detector: detector,
		ledger:   view,
		tasks:    tasks,
		roster:   roster,
		store:    store,
		cfg:      cfg,
		log:      log.With().Str("service", "resolution").Logger(),
	}
}

// group is the set of conflicts attributed to one task
type group struct {
	taskID      int64
	conflictIDs []string
	otherTasks  map[int64]bool
	conflict    domain.Conflict
}

// Suggest returns suggestions for cs ordered by ascending impact score.
// Stored suggestions get IDs usable with apply and dismiss.
func (s *Suggester) Suggest(ctx context.Context, cs []domain.Conflict, req Request) ([]domain.Suggestion, error) {
	out := []domain.Suggestion{}
	for _, g := range groupByTask(cs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g.taskID == 0 {
			out = append(out, s.impossible(g, nil, nil,
				fmt.Sprintf("%s on %s involves only blocked time; shorten or move the block by hand",
					g.conflict.Type, g.conflict.Date.Format(time.DateOnly))))
			continue
		}
		sugs, err := s.suggestForTask(ctx, g, req)
		if err != nil {
			return nil, err
		}
		out = append(out, sugs...)
	}

	sortSuggestions(out)
	if s.store != nil {
		for i := range out {
			s.store.Save(&out[i])
		}
	}

	s.log.Debug().Int("conflicts", len(cs)).Int("suggestions", len(out)).Msg("Suggestions generated")
	return out, nil
}

// groupByTask attributes each conflict to the most recently created task it
// touches (the highest task ID) and groups conflicts per task.
func groupByTask(cs []domain.Conflict) []*group {
	byTask := make(map[int64]*group)
	var order []*group
	for _, c := range cs {
		target := int64(0)
		for _, id := range c.TaskIDs {
			target = max(target, id)
		}
		if target == 0 {
			order = append(order, &group{conflictIDs: []string{c.ID}, conflict: c})
			continue
		}

		g, ok := byTask[target]
		if !ok {
			g = &group{taskID: target, otherTasks: make(map[int64]bool), conflict: c}
			byTask[target] = g
			order = append(order, g)
		}
		g.conflictIDs = append(g.conflictIDs, c.ID)
		for _, id := range c.TaskIDs {
			if id != target {
				g.otherTasks[id] = true
			}
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].taskID < order[j].taskID })
	return order
}

func (s *Suggester) suggestForTask(ctx context.Context, g *group, req Request) ([]domain.Suggestion, error) {
	task, err := s.tasks.Get(ctx, g.taskID)
	if err != nil {
		if domain.CodeOf(err) == domain.CodeNotFound {
			return []domain.Suggestion{s.impossible(g, nil, nil, fmt.Sprintf("task %d no longer exists", g.taskID))}, nil
		}
		return nil, fmt.Errorf("failed to load task %d: %w", g.taskID, err)
	}
	current, err := s.ledger.EntriesForTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations of task %d: %w", task.ID, err)
	}
	owner, err := s.roster.Get(ctx, task.TranslatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load translator %s: %w", task.TranslatorID, err)
	}

	var out []domain.Suggestion
	repair, ok, err := s.localRepair(ctx, g, task, owner, current)
	if err != nil {
		return nil, err
	}
	if ok {
		out = append(out, repair)
	}

	var ranked []domain.Candidate
	if !ok || req.Alternatives || s.cfg.AlwaysAlternatives {
		reassignments, cands, err := s.reassign(ctx, g, task, current, req.CandidateIDs)
		if err != nil {
			return nil, err
		}
		out = append(out, reassignments...)
		ranked = cands
	}

	if len(out) == 0 {
		out = append(out, s.impossible(g, task, ranked,
			fmt.Sprintf("No local repair for task %d and no qualified translator can absorb %.2fh before %s; manual intervention required",
				task.ID, task.TotalHours, task.Due.In(s.engine.Calendar().Location()).Format("2006-01-02 15:04"))))
	}
	return out, nil
}

// repairMode is the policy used to recompute a task; manual work is
// re-planned just in time.
func repairMode(m domain.DistributionMode) domain.DistributionMode {
	if m == domain.ModeManual {
		return domain.ModeJustInTime
	}
	return m
}

// repairRequest re-plans task for t inside [today, due] without warnings
func (s *Suggester) repairRequest(task *domain.Task, t *domain.Translator) distribution.Request {
	req := distribution.Request{
		Translator: t,
		TotalHours: task.TotalHours,
		Mode:       repairMode(task.Mode),
		Due:        task.Due,
		NoWarnings: true,
	}
	if req.Mode == domain.ModeBalanced {
		cal := s.engine.Calendar()
		today := cal.Today(s.engine.Now())
		dueDay, _ := cal.Clock(task.Due)
		start, end := today, dueDay
		if task.WindowStart != nil && calendar.Day(*task.WindowStart).After(start) {
			start = calendar.Day(*task.WindowStart)
		}
		if task.WindowEnd != nil && calendar.Day(*task.WindowEnd).Before(end) {
			end = calendar.Day(*task.WindowEnd)
		}
		req.Start, req.End = &start, &end
	}
	return req
}

func (s *Suggester) localRepair(ctx context.Context, g *group, task *domain.Task, owner *domain.Translator, current []domain.AllocationEntry) (domain.Suggestion, bool, error) {
	ids := make([]int64, 0, len(current))
	for _, e := range current {
		ids = append(ids, e.ID)
	}
	overlay := ledger.NewOverlay(s.ledger).Hide(ids...)

	res, err := s.engine.Distribute(ctx, overlay, s.repairRequest(task, owner))
	if err != nil {
		if domain.CodeOf(err) != "" {
			s.log.Debug().Err(err).Int64("task_id", task.ID).Msg("Local repair infeasible")
			return domain.Suggestion{}, false, nil
		}
		return domain.Suggestion{}, false, err
	}

	clean, err := s.clean(ctx, overlay, owner, task.ID, res.Slots)
	if err != nil || !clean {
		return domain.Suggestion{}, false, err
	}

	impact := s.cfg.Weights.Score(breakdown(impactInput{
		task:       task,
		current:    current,
		proposed:   res.Slots,
		otherTasks: len(g.otherTasks),
		cal:        s.engine.Calendar(),
	}))
	return domain.Suggestion{
		Type:         domain.SuggestionLocalRepair,
		ConflictIDs:  g.conflictIDs,
		TaskID:       task.ID,
		TranslatorID: owner.ID,
		Allocations:  res.Slots,
		Impact:       impact,
		Justification: fmt.Sprintf("Redistribute task %d for %s (%s) over %d day(s) of free capacity before the due date",
			task.ID, owner.Name, repairMode(task.Mode), res.Days()),
	}, true, nil
}

// clean simulates slots as rows of taskID and reports whether none of them
// takes part in a conflict.
func (s *Suggester) clean(ctx context.Context, overlay *ledger.Overlay, t *domain.Translator, taskID int64, slots []domain.Slot) (bool, error) {
	if len(slots) == 0 {
		return false, nil
	}
	rows := make([]domain.AllocationEntry, 0, len(slots))
	for _, sl := range slots {
		rows = append(rows, domain.AllocationEntry{
			Date:         sl.Date,
			TranslatorID: t.ID,
			Hours:        sl.Hours,
			Type:         domain.EntryTask,
			StartTime:    sl.StartTime,
			EndTime:      sl.EndTime,
			TaskID:       taskID,
		})
	}
	simulated := overlay.Add(rows...)

	found, err := s.detector.Detect(ctx, overlay, t, slots[0].Date, slots[len(slots)-1].Date, conflicts.Options{})
	if err != nil {
		return false, err
	}
	for _, id := range simulated {
		if len(conflicts.Involving(found, id)) > 0 {
			return false, nil
		}
	}
	return true, nil
}

type evaluation struct {
	candidate domain.Candidate
	slots     []domain.Slot
}

// reassign evaluates qualified colleagues in parallel and proposes the best ones
func (s *Suggester) reassign(ctx context.Context, g *group, task *domain.Task, current []domain.AllocationEntry, only []string) ([]domain.Suggestion, []domain.Candidate, error) {
	pool, err := s.candidatePool(ctx, task, only)
	if err != nil {
		return nil, nil, err
	}

	results := make([]*evaluation, len(pool))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Parallelism)
	for i, t := range pool {
		eg.Go(func() error {
			ev, err := s.evaluate(egCtx, task, t)
			if err != nil {
				return fmt.Errorf("failed to evaluate %s for task %d: %w", t.ID, task.ID, err)
			}
			results[i] = ev
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	var evaluated []*evaluation
	for _, ev := range results {
		if ev != nil {
			evaluated = append(evaluated, ev)
		}
	}
	sort.SliceStable(evaluated, func(i, j int) bool {
		a, b := evaluated[i].candidate, evaluated[j].candidate
		if a.CanComplete != b.CanComplete {
			return a.CanComplete
		}
		if a.Margin != b.Margin {
			return a.Margin > b.Margin
		}
		if a.SeekingWork != b.SeekingWork {
			return a.SeekingWork
		}
		return a.TranslatorID < b.TranslatorID
	})

	ranked := make([]domain.Candidate, 0, len(evaluated))
	for _, ev := range evaluated {
		ranked = append(ranked, ev.candidate)
	}

	var out []domain.Suggestion
	for _, ev := range evaluated {
		if len(out) == s.cfg.MaxCandidates {
			break
		}
		if !ev.candidate.CanComplete {
			continue
		}
		impact := s.cfg.Weights.Score(breakdown(impactInput{
			task:       task,
			current:    current,
			proposed:   ev.slots,
			otherTasks: len(g.otherTasks),
			reassigned: true,
			cal:        s.engine.Calendar(),
		}))
		c := ev.candidate
		out = append(out, domain.Suggestion{
			Type:         domain.SuggestionReassignment,
			ConflictIDs:  g.conflictIDs,
			TaskID:       task.ID,
			TranslatorID: c.TranslatorID,
			Allocations:  ev.slots,
			Candidates:   ranked,
			Impact:       impact,
			Justification: fmt.Sprintf("Reassign task %d to %s: %.2fh free before the due date, %.2fh margin",
				task.ID, c.Name, c.AvailableHours, c.Margin),
		})
	}
	return out, ranked, nil
}

// candidatePool returns active translators other than the owner who speak the
// task's language pair and cover its domain
func (s *Suggester) candidatePool(ctx context.Context, task *domain.Task, only []string) ([]*domain.Translator, error) {
	all, err := s.roster.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list translators: %w", err)
	}
	allowed := make(map[string]bool, len(only))
	for _, id := range only {
		allowed[id] = true
	}

	var pool []*domain.Translator
	for _, t := range all {
		if !t.Active || t.ID == task.TranslatorID {
			continue
		}
		if len(allowed) > 0 && !allowed[t.ID] {
			continue
		}
		if !t.Speaks(task.LanguagePair) || !t.Covers(task.Domain) {
			continue
		}
		pool = append(pool, t)
	}
	return pool, nil
}

// evaluate runs the engine for one candidate. Candidates without enough
// cumulative free hours are dropped (nil evaluation).
func (s *Suggester) evaluate(ctx context.Context, task *domain.Task, t *domain.Translator) (*evaluation, error) {
	available, err := s.engine.Allocatable(ctx, s.ledger, t, task.Due)
	if err != nil {
		return nil, err
	}
	if ledger.Centi(available) < ledger.Centi(task.TotalHours) {
		return nil, nil
	}

	ev := &evaluation{candidate: domain.Candidate{
		TranslatorID:   t.ID,
		Name:           t.Name,
		AvailableHours: available,
		Margin:         domain.RoundHours(available - task.TotalHours),
		SeekingWork:    t.SeekingWork,
	}}

	res, err := s.engine.Distribute(ctx, s.ledger, s.repairRequest(task, t))
	if err != nil {
		if domain.CodeOf(err) != "" {
			return ev, nil
		}
		return nil, err
	}
	clean, err := s.clean(ctx, ledger.NewOverlay(s.ledger), t, task.ID, res.Slots)
	if err != nil {
		return nil, err
	}
	ev.candidate.CanComplete = clean
	ev.slots = res.Slots
	return ev, nil
}

func (s *Suggester) impossible(g *group, task *domain.Task, ranked []domain.Candidate, why string) domain.Suggestion {
	sug := domain.Suggestion{
		Type:          domain.SuggestionImpossible,
		ConflictIDs:   g.conflictIDs,
		TaskID:        g.taskID,
		TranslatorID:  g.conflict.TranslatorID,
		Allocations:   []domain.Slot{},
		Candidates:    ranked,
		Impact:        impossibleImpact(),
		Justification: why,
	}
	if task != nil {
		sug.TranslatorID = task.TranslatorID
	}
	return sug
}

var typeRank = map[domain.SuggestionType]int{
	domain.SuggestionLocalRepair:  0,
	domain.SuggestionReassignment: 1,
	domain.SuggestionImpossible:   2,
}

func sortSuggestions(sugs []domain.Suggestion) {
	sort.SliceStable(sugs, func(i, j int) bool {
		a, b := sugs[i], sugs[j]
		if a.Impact.Score != b.Impact.Score {
			return a.Impact.Score < b.Impact.Score
		}
		if typeRank[a.Type] != typeRank[b.Type] {
			return typeRank[a.Type] < typeRank[b.Type]
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		return a.TranslatorID < b.TranslatorID
	})
}
