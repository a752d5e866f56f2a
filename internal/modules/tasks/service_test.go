package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/aristath/tradplan/internal/modules/roster"
	testingpkg "github.com/aristath/tradplan/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = testingpkg.Date(2026, 1, 12)

type env struct {
	service   *Service
	repo      *MemoryRepository
	ledger    *ledger.Ledger
	store     *resolution.Store
	suggester *resolution.Suggester
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cal := calendar.New(calendar.Options{})
	rost := roster.NewMemoryRepository(testingpkg.NewRosterFixtures()...)
	l := ledger.New(ledger.NewMemoryRepository(), rost, cal, zerolog.Nop())

	engine := distribution.NewEngine(cal, distribution.Options{}, zerolog.Nop())
	engine.SetClock(testingpkg.FixedClock(testingpkg.At(2026, 1, 12, 8, 0)))
	detector := conflicts.NewDetector(cal, zerolog.Nop())
	store := resolution.NewStore(zerolog.Nop())
	repo := NewMemoryRepository()

	return &env{
		service:   NewService(repo, l, engine, detector, rost, store, zerolog.Nop()),
		repo:      repo,
		ledger:    l,
		store:     store,
		suggester: resolution.NewSuggester(engine, detector, l, repo, rost, store, resolution.Config{}, zerolog.Nop()),
	}
}

func slot(date time.Time, hours float64, start, end string) domain.Slot {
	s := domain.Slot{Date: date, Hours: hours}
	if start != "" {
		s.StartTime = domain.MustParseTimeOfDay(start).Ptr()
		s.EndTime = domain.MustParseTimeOfDay(end).Ptr()
	}
	return s
}

func auto(translatorID string, hours float64, due time.Time) Submission {
	return Submission{
		ProjectNumber:  "P-100",
		TranslatorID:   translatorID,
		TotalHours:     hours,
		Due:            due,
		Mode:           domain.ModeJustInTime,
		LanguagePair:   "EN>FR",
		AutoDistribute: true,
	}
}

func manual(translatorID string, hours float64, due time.Time, slots ...domain.Slot) Submission {
	return Submission{
		ProjectNumber: "P-200",
		TranslatorID:  translatorID,
		TotalHours:    hours,
		Due:           due,
		LanguagePair:  "EN>FR",
		Allocations:   slots,
	}
}

func TestCreate_JustInTime(t *testing.T) {
	e := newEnv(t)

	res, err := e.service.Create(context.Background(), auto("alice", 10, testingpkg.At(2026, 1, 15, 17, 0)))
	require.NoError(t, err)

	assert.Equal(t, StatusOK, res.Status)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, int64(1), res.Task.ID)
	assert.Equal(t, int64(1), res.Task.Version)
	assert.Equal(t, domain.PriorityRegular, res.Task.Priority)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, testingpkg.Date(2026, 1, 14), res.Entries[0].Date)
	assert.Equal(t, 3.0, res.Entries[0].Hours)
	assert.Equal(t, 7.0, res.Entries[1].Hours)

	stored, err := e.service.Get(context.Background(), res.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, "P-100", stored.ProjectNumber)
}

func TestCreate_CapacityExceededLeavesNothingBehind(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	due := testingpkg.At(2026, 1, 12, 17, 0)

	_, err := e.service.Create(ctx, manual("alice", 7, due, slot(monday, 7, "09:00", "17:00")))
	require.NoError(t, err)

	_, err = e.service.Create(ctx, manual("alice", 2, due, slot(monday, 2, "", "")))
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	tasks, err := e.service.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "task row compensated")

	rows, err := e.ledger.EntriesFor(ctx, "alice", monday, monday)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCreate_ForcedOverbookingReportsConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	due := testingpkg.At(2026, 1, 12, 17, 0)

	_, err := e.service.Create(ctx, manual("alice", 7, due, slot(monday, 7, "09:00", "17:00")))
	require.NoError(t, err)

	sub := manual("alice", 2, due, slot(monday, 2, "", ""))
	sub.Force = true
	res, err := e.service.Create(ctx, sub)
	require.NoError(t, err)

	assert.Equal(t, StatusConflictDetected, res.Status)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, domain.ConflictOverAllocation, res.Conflicts[0].Type)
	assert.Equal(t, 9.0, res.Conflicts[0].HoursAllocated)
	require.Len(t, res.Entries, 1)
	assert.True(t, res.Entries[0].Forced)
	assert.Equal(t, domain.ModeManual, res.Task.Mode)
}

func TestCreate_RollbackAcrossDays(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tuesday := monday.AddDate(0, 0, 1)

	_, err := e.service.Create(ctx, manual("alice", 7, testingpkg.At(2026, 1, 13, 17, 0), slot(tuesday, 7, "", "")))
	require.NoError(t, err)

	_, err = e.service.Create(ctx, manual("alice", 6, testingpkg.At(2026, 1, 13, 17, 0),
		slot(monday, 3, "", ""), slot(tuesday, 3, "", "")))
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	rows, err := e.ledger.EntriesFor(ctx, "alice", monday, monday)
	require.NoError(t, err)
	assert.Empty(t, rows, "monday row undone")
}

func TestCreate_PastDateWarningNeedsConfirmation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := auto("alice", 10, testingpkg.At(2026, 1, 12, 17, 0))

	_, err := e.service.Create(ctx, sub)
	require.ErrorIs(t, err, domain.ErrPastDateWarning)
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, []string{"2026-01-09"}, derr.Details["dates"])

	tasks, err := e.service.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	sub.Confirm = true
	res, err := e.service.Create(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, distribution.WarningPastDates, res.Warning.Kind)
	assert.Len(t, res.Entries, 2)
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	due := testingpkg.At(2026, 1, 15, 17, 0)

	tests := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"missing project", func(s *Submission) { s.ProjectNumber = " " }},
		{"zero hours", func(s *Submission) { s.TotalHours = 0 }},
		{"no due", func(s *Submission) { s.Due = time.Time{} }},
		{"bad mode", func(s *Submission) { s.Mode = "RANDOM" }},
		{"nothing to allocate", func(s *Submission) { s.AutoDistribute = false }},
		{"auto manual", func(s *Submission) { s.Mode = domain.ModeManual }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := auto("alice", 5, due)
			tt.mutate(&sub)
			_, err := e.service.Create(context.Background(), sub)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, err := e.service.Create(context.Background(), auto("zoe", 5, due))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate_ReplacesRowsAndChecksVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.service.Create(ctx, auto("alice", 10, testingpkg.At(2026, 1, 15, 17, 0)))
	require.NoError(t, err)
	id := created.Task.ID

	sub := SubmissionFromTask(created.Task)
	sub.TotalHours = 4
	res, err := e.service.Update(ctx, id, sub)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Task.Version)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, testingpkg.Date(2026, 1, 15), res.Entries[0].Date)
	assert.Equal(t, 4.0, res.Entries[0].Hours)

	_, err = e.service.Update(ctx, id, sub)
	assert.ErrorIs(t, err, domain.ErrStaleVersion)

	rows, err := e.service.Entries(ctx, id)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "stale update left rows alone")
}

func TestUpdate_MovesTaskToAnotherTranslator(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.service.Create(ctx, auto("alice", 3, testingpkg.At(2026, 1, 15, 17, 0)))
	require.NoError(t, err)

	sub := SubmissionFromTask(created.Task)
	sub.TranslatorID = "bruno"
	res, err := e.service.Update(ctx, created.Task.ID, sub)
	require.NoError(t, err)
	assert.Equal(t, "bruno", res.Task.TranslatorID)

	aliceRows, err := e.ledger.EntriesFor(ctx, "alice", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, aliceRows)
	brunoRows, err := e.ledger.EntriesFor(ctx, "bruno", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, brunoRows, 1)
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.service.Create(ctx, auto("alice", 10, testingpkg.At(2026, 1, 15, 17, 0)))
	require.NoError(t, err)

	require.NoError(t, e.service.Delete(ctx, created.Task.ID))
	_, err = e.service.Get(ctx, created.Task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rows, err := e.ledger.EntriesFor(ctx, "alice", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.ErrorIs(t, e.service.Delete(ctx, created.Task.ID), domain.ErrNotFound)
}

func TestApplySuggestion_Reassignment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	due := testingpkg.At(2026, 1, 12, 17, 0)

	_, err := e.service.Create(ctx, manual("alice", 7, due, slot(monday, 7, "09:00", "17:00")))
	require.NoError(t, err)
	sub := manual("alice", 2, due, slot(monday, 2, "", ""))
	sub.Force = true
	forced, err := e.service.Create(ctx, sub)
	require.NoError(t, err)

	sugs, err := e.suggester.Suggest(ctx, forced.Conflicts, resolution.Request{})
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	require.Equal(t, domain.SuggestionReassignment, sugs[0].Type)

	res, err := e.service.ApplySuggestion(ctx, sugs[0].ID, ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "bruno", res.Task.TranslatorID)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "bruno", res.Entries[0].TranslatorID)

	aliceRows, err := e.ledger.EntriesFor(ctx, "alice", monday, monday)
	require.NoError(t, err)
	assert.Len(t, aliceRows, 1, "only the first task stays with alice")

	stored, err := e.store.Get(sugs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionApplied, stored.Status)

	_, err = e.service.ApplySuggestion(ctx, sugs[0].ID, ApplyOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplySuggestion_StaleProposalIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	due := testingpkg.At(2026, 1, 12, 17, 0)

	_, err := e.service.Create(ctx, manual("alice", 7, due, slot(monday, 7, "09:00", "17:00")))
	require.NoError(t, err)
	sub := manual("alice", 2, due, slot(monday, 2, "", ""))
	sub.Force = true
	forced, err := e.service.Create(ctx, sub)
	require.NoError(t, err)

	sugs, err := e.suggester.Suggest(ctx, forced.Conflicts, resolution.Request{})
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	require.Equal(t, domain.SuggestionReassignment, sugs[0].Type)
	require.Equal(t, "bruno", sugs[0].TranslatorID)

	// bruno's Monday fills up before the suggestion is applied
	_, err = e.service.Create(ctx, manual("bruno", 7, due, slot(monday, 7, "09:00", "17:00")))
	require.NoError(t, err)

	_, err = e.service.ApplySuggestion(ctx, sugs[0].ID, ApplyOptions{})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	brunoRows, err := e.ledger.EntriesFor(ctx, "bruno", monday, monday)
	require.NoError(t, err)
	require.Len(t, brunoRows, 1, "rejected apply writes nothing")
	assert.False(t, brunoRows[0].Forced)

	task, err := e.service.Get(ctx, forced.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", task.TranslatorID)
	assert.Equal(t, forced.Task.Version, task.Version)

	stored, err := e.store.Get(sugs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionPending, stored.Status, "claim released")

	// the caller may still insist
	res, err := e.service.ApplySuggestion(ctx, sugs[0].ID, ApplyOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, StatusConflictDetected, res.Status)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "bruno", res.Entries[0].TranslatorID)
	assert.True(t, res.Entries[0].Forced)
}

func TestApplySuggestion_ImpossibleIsRejected(t *testing.T) {
	e := newEnv(t)
	sug := &domain.Suggestion{Type: domain.SuggestionImpossible, TaskID: 1, Allocations: []domain.Slot{}}
	id := e.store.Save(sug)

	_, err := e.service.ApplySuggestion(context.Background(), id, ApplyOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	stored, err := e.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionPending, stored.Status, "claim released")

	_, err = e.service.ApplySuggestion(context.Background(), "missing", ApplyOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
