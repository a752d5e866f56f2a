package resolution

import (
	"testing"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	testingpkg "github.com/aristath/tradplan/internal/testing"
	"github.com/stretchr/testify/assert"
)

func TestWeights_Score(t *testing.T) {
	tests := []struct {
		name      string
		breakdown domain.ImpactBreakdown
		expected  int
		band      domain.ImpactBand
	}{
		{"nothing moves", domain.ImpactBreakdown{}, 0, domain.ImpactLow},
		{"everything moves", domain.ImpactBreakdown{HoursDisplaced: 1, OtherTasksTouched: 1, TranslatorChange: 1, DueDateRisk: 1, Fragmentation: 1}, 100, domain.ImpactHigh},
		{"half displaced near due", domain.ImpactBreakdown{HoursDisplaced: 0.5, DueDateRisk: 1}, 35, domain.ImpactModerate},
		{"slack only", domain.ImpactBreakdown{DueDateRisk: 0.25}, 5, domain.ImpactLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultWeights.Score(tt.breakdown)
			assert.Equal(t, tt.expected, got.Score)
			assert.Equal(t, tt.band, got.Band)
			assert.Equal(t, tt.breakdown, got.Breakdown)
		})
	}
}

func TestWeights_ZeroWeightsScoreZero(t *testing.T) {
	got := Weights{}.Score(domain.ImpactBreakdown{HoursDisplaced: 1})
	assert.Equal(t, 0, got.Score)
}

func TestBreakdown(t *testing.T) {
	cal := calendar.New(calendar.Options{})
	task := &domain.Task{ID: 1, TotalHours: 4, Due: testingpkg.At(2026, 1, 16, 17, 0)}
	current := []domain.AllocationEntry{
		{Date: testingpkg.Date(2026, 1, 12), Hours: 2},
		{Date: testingpkg.Date(2026, 1, 13), Hours: 2},
	}
	proposed := []domain.Slot{
		{Date: testingpkg.Date(2026, 1, 12), Hours: 2},
		{Date: testingpkg.Date(2026, 1, 14), Hours: 1},
		{Date: testingpkg.Date(2026, 1, 15), Hours: 1},
	}

	b := breakdown(impactInput{task: task, current: current, proposed: proposed, otherTasks: 2, cal: cal})
	assert.Equal(t, 0.5, b.HoursDisplaced)
	assert.Equal(t, 0.4, b.OtherTasksTouched)
	assert.Equal(t, 0.0, b.TranslatorChange)
	assert.Equal(t, 0.5, b.DueDateRisk, "one business day of slack")
	assert.Equal(t, 0.5, b.Fragmentation)

	moved := breakdown(impactInput{task: task, current: current, proposed: proposed, reassigned: true, cal: cal})
	assert.Equal(t, 1.0, moved.HoursDisplaced)
	assert.Equal(t, 1.0, moved.TranslatorChange)

	empty := breakdown(impactInput{task: task, current: current, cal: cal})
	assert.Equal(t, 1.0, empty.DueDateRisk)
}

func TestImpossibleImpact(t *testing.T) {
	got := impossibleImpact()
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, domain.ImpactHigh, got.Band)
}
