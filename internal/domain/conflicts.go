package domain

import "time"

// ConflictType is the rule a conflict violates
type ConflictType string

const (
	ConflictOverAllocation      ConflictType = "OVER_ALLOCATION"
	ConflictTaskOverlap         ConflictType = "TASK_OVERLAP"
	ConflictBlock               ConflictType = "BLOCK_CONFLICT"
	ConflictOutsideWorkingHours ConflictType = "OUTSIDE_WORKING_HOURS"
	ConflictCapacityExceeded    ConflictType = "CAPACITY_EXCEEDED"
)

// IsCapacity reports whether the conflict is about aggregate hours on a day
func (c ConflictType) IsCapacity() bool {
	return c == ConflictCapacityExceeded || c == ConflictOverAllocation
}

// Conflict is a rule violation derived from the ledger. It is never persisted.
type Conflict struct {
	ID             string       `json:"id"`
	Type           ConflictType `json:"type"`
	TranslatorID   string       `json:"translator_id"`
	Date           time.Time    `json:"date"`
	TimeRange      *TimeRange   `json:"time_range,omitempty"`
	HoursInvolved  float64      `json:"hours_involved"`
	HoursAllocated float64      `json:"hours_allocated"`
	Capacity       float64      `json:"capacity"`
	EntryIDs       []int64      `json:"entry_ids"`
	TaskIDs        []int64      `json:"task_ids"`
	Explanation    string       `json:"explanation"`
}

// SuggestionType is the kind of remediation proposed
type SuggestionType string

const (
	SuggestionLocalRepair  SuggestionType = "LOCAL_REPAIR"
	SuggestionReassignment SuggestionType = "REASSIGNMENT"
	SuggestionImpossible   SuggestionType = "IMPOSSIBLE"
)

// ImpactBand is the qualitative reading of an impact score
type ImpactBand string

const (
	ImpactLow      ImpactBand = "LOW"
	ImpactModerate ImpactBand = "MODERATE"
	ImpactHigh     ImpactBand = "HIGH"
)

// BandFor maps a 0-100 score to its band
func BandFor(score int) ImpactBand {
	switch {
	case score <= 33:
		return ImpactLow
	case score <= 66:
		return ImpactModerate
	default:
		return ImpactHigh
	}
}

// ImpactBreakdown holds the normalized (0..1) sub-scores behind an impact score
type ImpactBreakdown struct {
	HoursDisplaced    float64 `json:"hours_displaced"`
	OtherTasksTouched float64 `json:"other_tasks_touched"`
	TranslatorChange  float64 `json:"translator_change"`
	DueDateRisk       float64 `json:"due_date_risk"`
	Fragmentation     float64 `json:"fragmentation"`
}

// Impact is the disruption estimate of applying a suggestion
type Impact struct {
	Score     int             `json:"score"`
	Band      ImpactBand      `json:"band"`
	Breakdown ImpactBreakdown `json:"breakdown"`
}

// Candidate is an alternate translator considered for reassignment
type Candidate struct {
	TranslatorID   string  `json:"translator_id"`
	Name           string  `json:"name"`
	AvailableHours float64 `json:"available_hours"`
	Margin         float64 `json:"margin"`
	CanComplete    bool    `json:"can_complete"`
	SeekingWork    bool    `json:"seeking_work"`
}

// SuggestionStatus tracks a stored suggestion's lifecycle
type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionApplied   SuggestionStatus = "applied"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

// Suggestion is a proposed remediation for one or more conflicts
type Suggestion struct {
	ID            string           `json:"id"`
	Type          SuggestionType   `json:"type"`
	ConflictIDs   []string         `json:"conflict_ids"`
	TaskID        int64            `json:"task_id"`
	TranslatorID  string           `json:"translator_id,omitempty"`
	Allocations   []Slot           `json:"allocations"`
	Candidates    []Candidate      `json:"candidates,omitempty"`
	Impact        Impact           `json:"impact"`
	Justification string           `json:"justification"`
	Status        SuggestionStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}
