package resolution

import (
	"math"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"gonum.org/v1/gonum/floats"
)

// Weights are the relative importance of each impact sub-score
type Weights struct {
	HoursDisplaced    float64 `json:"hours_displaced"`
	OtherTasksTouched float64 `json:"other_tasks_touched"`
	TranslatorChange  float64 `json:"translator_change"`
	DueDateRisk       float64 `json:"due_date_risk"`
	Fragmentation     float64 `json:"fragmentation"`
}

// DefaultWeights favours keeping work with its translator and away from the due date
var DefaultWeights = Weights{
	HoursDisplaced:    0.30,
	OtherTasksTouched: 0.15,
	TranslatorChange:  0.25,
	DueDateRisk:       0.20,
	Fragmentation:     0.10,
}

func (w Weights) vector() []float64 {
	return []float64{w.HoursDisplaced, w.OtherTasksTouched, w.TranslatorChange, w.DueDateRisk, w.Fragmentation}
}

// otherTasksSaturation is the count of other tasks at which that sub-score tops out
const otherTasksSaturation = 5

// impactInput describes one proposal against the task's current rows
type impactInput struct {
	task       *domain.Task
	current    []domain.AllocationEntry
	proposed   []domain.Slot
	otherTasks int
	reassigned bool
	cal        *calendar.Calendar
}

// Score combines the normalized sub-scores into a 0-100 score:
// round(100 * sum(w_i * s_i) / sum(w_i)).
func (w Weights) Score(b domain.ImpactBreakdown) domain.Impact {
	weights := w.vector()
	total := floats.Sum(weights)
	score := 0
	if total > 0 {
		subs := []float64{b.HoursDisplaced, b.OtherTasksTouched, b.TranslatorChange, b.DueDateRisk, b.Fragmentation}
		score = int(math.Round(100 * floats.Dot(weights, subs) / total))
	}
	score = min(max(score, 0), 100)
	return domain.Impact{Score: score, Band: domain.BandFor(score), Breakdown: b}
}

// impossibleImpact is the fixed impact of a proposal that needs a human
func impossibleImpact() domain.Impact {
	b := domain.ImpactBreakdown{HoursDisplaced: 1, OtherTasksTouched: 1, TranslatorChange: 1, DueDateRisk: 1, Fragmentation: 1}
	return domain.Impact{Score: 100, Band: domain.ImpactHigh, Breakdown: b}
}

func breakdown(in impactInput) domain.ImpactBreakdown {
	var b domain.ImpactBreakdown

	total := ledger.Centi(in.task.TotalHours)
	if in.reassigned {
		b.HoursDisplaced = 1
		b.TranslatorChange = 1
	} else if total > 0 {
		b.HoursDisplaced = clamp01(float64(displaced(in.current, in.proposed)) / float64(total))
	}

	b.OtherTasksTouched = clamp01(float64(in.otherTasks) / otherTasksSaturation)

	if last, ok := lastDate(in.proposed); ok {
		dueDay, _ := in.cal.Clock(in.task.Due)
		slack := 0
		if dueDay.After(last) {
			slack = in.cal.BusinessDaysBetween(last.AddDate(0, 0, 1), dueDay)
		}
		b.DueDateRisk = 1 / float64(1+slack)
	} else {
		b.DueDateRisk = 1
	}

	before, after := len(in.current), len(in.proposed)
	if after > before {
		b.Fragmentation = clamp01(float64(after-before) / float64(max(before, 1)))
	}

	b.HoursDisplaced = domain.RoundHours(b.HoursDisplaced)
	b.OtherTasksTouched = domain.RoundHours(b.OtherTasksTouched)
	b.DueDateRisk = domain.RoundHours(b.DueDateRisk)
	b.Fragmentation = domain.RoundHours(b.Fragmentation)
	return b
}

// displaced returns, in hundredths, the hours that leave their current date
func displaced(current []domain.AllocationEntry, proposed []domain.Slot) int64 {
	before := make(map[time.Time]int64)
	for _, e := range current {
		before[e.Date] += ledger.Centi(e.Hours)
	}
	after := make(map[time.Time]int64)
	for _, s := range proposed {
		after[s.Date] += ledger.Centi(s.Hours)
	}

	var moved int64
	for d, h := range before {
		if h > after[d] {
			moved += h - after[d]
		}
	}
	return moved
}

func lastDate(slots []domain.Slot) (time.Time, bool) {
	var last time.Time
	for _, s := range slots {
		if s.Date.After(last) {
			last = s.Date
		}
	}
	return last, !last.IsZero()
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
