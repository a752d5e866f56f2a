package distribution

import (
	"context"
	"sort"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
)

// maxWalkDays caps any calendar walk so a calendar without business days terminates
func (e *Engine) maxWalkDays() int {
	return e.horizon*3 + 14
}

// justInTime fills the latest free time first, walking back from the due instant
func (e *Engine) justInTime(ctx context.Context, view ledger.View, req Request, total int64) (*Result, error) {
	today, nowTOD := e.cal.Clock(e.now())
	dueDay, dueTOD := e.cal.Clock(req.Due)

	res := &Result{}
	remaining := total
	var (
		past      []time.Time
		pastCenti int64
		pastSeen  int
		lastDay   time.Time
	)

	for d, steps := dueDay, 0; remaining > 0; d, steps = d.AddDate(0, 0, -1), steps+1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		isPast := d.Before(today)
		if isPast && (req.NoWarnings || pastSeen >= e.horizon || steps > e.maxWalkDays()+calendar.DaysBetween(today, dueDay)) {
			break
		}
		if !e.cal.IsBusinessDay(d) {
			continue
		}
		if isPast {
			pastSeen++
		}
		lastDay = d

		plan, err := e.planDay(ctx, view, req.Translator, d, dayBounds(d, today, nowTOD, dueDay, dueTOD))
		if err != nil {
			return nil, err
		}
		c := min(remaining, plan.capacity)
		if c == 0 {
			continue
		}
		res.Slots = append(res.Slots, placeBackward(plan, c)...)
		remaining -= c
		if isPast {
			past = append(past, d)
			pastCenti += c
		}
	}

	if len(past) > 0 {
		sort.Slice(past, func(i, j int) bool { return past[i].Before(past[j]) })
		res.Warning = newWarning(WarningPastDates, past, pastCenti)
	}
	if remaining > 0 && !lastDay.IsZero() {
		res.RanOutOn = &lastDay
	}
	return res, nil
}

// fifo fills the earliest free time first, from now (or the window start)
// towards the due date or window end, then overflows past it with a warning.
// A window start before today is walked from and its past days are listed
// in a past_dates warning, unless NoWarnings clips the start to today.
func (e *Engine) fifo(ctx context.Context, view ledger.View, req Request, total int64) (*Result, error) {
	now := e.now()
	today, nowTOD := e.cal.Clock(now)
	dueDay, dueTOD := e.cal.Clock(req.Due)

	start := today
	if req.Start != nil && (!req.NoWarnings || calendar.Day(*req.Start).After(today)) {
		start = calendar.Day(*req.Start)
	}
	limit, overflowKind := dueDay, WarningAfterDueDate
	if req.End != nil && calendar.Day(*req.End).Before(limit) {
		limit, overflowKind = calendar.Day(*req.End), WarningAfterWindowEnd
	}

	res := &Result{}
	remaining := total
	var (
		past       []time.Time
		pastCenti  int64
		after      []time.Time
		afterCenti int64
		afterSeen  int
		afterSteps int
		lastDay    time.Time
	)

	for d := start; remaining > 0; d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		overflow := d.After(limit)
		if overflow {
			afterSteps++
			if req.NoWarnings || afterSeen >= e.horizon || afterSteps > e.maxWalkDays() {
				break
			}
		}
		if !e.cal.IsBusinessDay(d) {
			continue
		}
		if overflow {
			afterSeen++
		}
		lastDay = d

		plan, err := e.planDay(ctx, view, req.Translator, d, dayBounds(d, today, nowTOD, dueDay, dueTOD))
		if err != nil {
			return nil, err
		}
		c := min(remaining, plan.capacity)
		if c == 0 {
			continue
		}
		res.Slots = append(res.Slots, placeForward(plan, c)...)
		remaining -= c
		switch {
		case d.Before(today):
			past = append(past, d)
			pastCenti += c
		case overflow:
			after = append(after, d)
			afterCenti += c
		}
	}

	if len(past) > 0 {
		res.Warning = newWarning(WarningPastDates, past, pastCenti)
	}
	if len(after) > 0 {
		res.Warning = mergeWarning(res.Warning, newWarning(overflowKind, after, afterCenti))
	}
	if remaining > 0 && !lastDay.IsZero() {
		res.RanOutOn = &lastDay
	}
	return res, nil
}

// balanced spreads hours as evenly as capacities allow over [Start, End].
// Days are visited by ascending capacity; each takes min(cap, remaining/k)
// where k is the number of days left, so tight days give their slack to the
// others and the spread stays within a hundredth of an hour where possible.
func (e *Engine) balanced(ctx context.Context, view ledger.View, req Request, total int64) (*Result, error) {
	if req.Start == nil || req.End == nil {
		return nil, domain.InvalidInput("balanced distribution requires a start and end date")
	}

	today, nowTOD := e.cal.Clock(e.now())
	dueDay, dueTOD := e.cal.Clock(req.Due)
	from, to := calendar.Day(*req.Start), calendar.Day(*req.End)
	if req.NoWarnings && from.Before(today) {
		from = today
	}

	days := e.cal.BusinessDays(from, to)
	plans := make([]dayPlan, 0, len(days))
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plan, err := e.planDay(ctx, view, req.Translator, d, dayBounds(d, today, nowTOD, dueDay, dueTOD))
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	order := make([]int, len(plans))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := plans[order[a]], plans[order[b]]
		if pa.capacity != pb.capacity {
			return pa.capacity < pb.capacity
		}
		return pa.window.Date.Before(pb.window.Date)
	})

	alloc := make([]int64, len(plans))
	remaining := total
	left := int64(len(plans))
	var ranOut *time.Time
	for _, i := range order {
		share := remaining / left
		alloc[i] = min(plans[i].capacity, share)
		if alloc[i] < share && ranOut == nil {
			d := plans[i].window.Date
			ranOut = &d
		}
		remaining -= alloc[i]
		left--
	}

	res := &Result{}
	var (
		past      []time.Time
		pastCenti int64
	)
	for i, p := range plans {
		if alloc[i] == 0 {
			continue
		}
		res.Slots = append(res.Slots, placeForward(p, alloc[i])...)
		if p.window.Date.Before(today) {
			past = append(past, p.window.Date)
			pastCenti += alloc[i]
		}
	}
	if len(past) > 0 {
		res.Warning = newWarning(WarningPastDates, past, pastCenti)
	}
	if remaining > 0 {
		res.RanOutOn = ranOut
	}
	return res, nil
}

// manual validates a caller-supplied allocation; it computes nothing
func (e *Engine) manual(req Request, total int64) (*Result, error) {
	if len(req.Manual) == 0 {
		return nil, domain.InvalidInput("manual distribution requires allocations")
	}

	var sum int64
	slots := make([]domain.Slot, 0, len(req.Manual))
	for i, s := range req.Manual {
		s.Date = calendar.Day(s.Date)
		day := s.Date.Format(time.DateOnly)

		if s.Hours <= 0 {
			return nil, domain.InvalidInput("allocation %d on %s: hours must be positive", i, day).
				WithDetail("index", i)
		}
		if !e.cal.IsBusinessDay(s.Date) {
			return nil, domain.InvalidInput("allocation %d: %s is not a business day", i, day).
				WithDetail("index", i).WithDetail("date", day)
		}

		win := e.cal.WorkingWindow(req.Translator, s.Date)
		if s.Hours > win.UsableHours()+domain.HoursTolerance {
			return nil, domain.InvalidInput("allocation %d on %s: %.2fh exceeds the %.2fh working window",
				i, day, s.Hours, win.UsableHours()).WithDetail("index", i)
		}
		if (s.StartTime == nil) != (s.EndTime == nil) {
			return nil, domain.InvalidInput("allocation %d on %s: start and end time go together", i, day).
				WithDetail("index", i)
		}
		if r, ok := s.Range(); ok {
			if r.End <= r.Start || !win.Contains(r) {
				return nil, domain.InvalidInput("allocation %d on %s: %s is outside working hours %s",
					i, day, r, win.Range()).WithDetail("index", i)
			}
			if win.EndpointInLunch(r) {
				return nil, domain.InvalidInput("allocation %d on %s: %s starts or ends during lunch",
					i, day, r).WithDetail("index", i)
			}
			if ledger.Minutes(s.Hours) > win.Usable(r) {
				return nil, domain.InvalidInput("allocation %d on %s: %.2fh does not fit in %s",
					i, day, s.Hours, r).WithDetail("index", i)
			}
		}

		sum += ledger.Centi(s.Hours)
		slots = append(slots, s)
	}

	if diff := sum - total; diff > 1 || diff < -1 {
		return nil, domain.InvalidInput("manual allocations sum to %.2fh, expected %.2fh",
			float64(sum)/100, float64(total)/100).
			WithDetail("sum", float64(sum)/100).
			WithDetail("total_hours", float64(total)/100)
	}

	sortSlots(slots)
	return &Result{
		Mode:      domain.ModeManual,
		Slots:     slots,
		Total:     float64(total) / 100,
		Allocated: float64(sum) / 100,
	}, nil
}
