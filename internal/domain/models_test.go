package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionMode_Valid(t *testing.T) {
	tests := []struct {
		mode     DistributionMode
		expected bool
	}{
		{ModeJustInTime, true},
		{ModeFIFO, true},
		{ModeBalanced, true},
		{ModeManual, true},
		{DistributionMode("ROUND_ROBIN"), false},
		{DistributionMode(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.mode.Valid())
		})
	}
}

func TestTranslator_Qualification(t *testing.T) {
	tr := Translator{
		LanguagePairs: []string{"EN>FR", "ES>FR"},
		Domains:       []string{"Legal"},
	}

	assert.True(t, tr.Speaks("en>fr"))
	assert.True(t, tr.Speaks(""))
	assert.False(t, tr.Speaks("FR>EN"))
	assert.True(t, tr.Covers("legal"))
	assert.True(t, tr.Covers(""))
	assert.False(t, tr.Covers("Medical"))
}

func TestTimeOfDay_ParseAndFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:00", NewTimeOfDay(9, 0), false},
		{"9:30", NewTimeOfDay(9, 30), false},
		{"17:00", NewTimeOfDay(17, 0), false},
		{"24:00", NewTimeOfDay(24, 0), false},
		{"24:01", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "09:05", NewTimeOfDay(9, 5).String())
}

func TestTimeOfDay_JSON(t *testing.T) {
	type wrapper struct {
		Start TimeOfDay  `json:"start"`
		End   *TimeOfDay `json:"end,omitempty"`
	}

	data, err := json.Marshal(wrapper{Start: NewTimeOfDay(14, 0), End: NewTimeOfDay(17, 0).Ptr()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"14:00","end":"17:00"}`, string(data))

	var back wrapper
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, NewTimeOfDay(14, 0), back.Start)
	require.NotNil(t, back.End)
	assert.Equal(t, NewTimeOfDay(17, 0), *back.End)

	assert.Error(t, json.Unmarshal([]byte(`{"start":900}`), &back))
}

func TestTimeRange(t *testing.T) {
	morning := TimeRange{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(12, 0)}
	late := TimeRange{Start: NewTimeOfDay(11, 0), End: NewTimeOfDay(14, 0)}
	afternoon := TimeRange{Start: NewTimeOfDay(12, 0), End: NewTimeOfDay(17, 0)}

	assert.True(t, morning.Intersects(late))
	assert.False(t, morning.Intersects(afternoon), "touching ranges do not intersect")
	assert.Equal(t, 60, morning.Overlap(late))
	assert.Equal(t, 0, morning.Overlap(afternoon))
	assert.Equal(t, 180, morning.Minutes())
	assert.True(t, TimeRange{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(17, 0)}.Contains(late))
	assert.True(t, afternoon.StrictlyInside(NewTimeOfDay(12, 30)))
	assert.False(t, afternoon.StrictlyInside(NewTimeOfDay(12, 0)))
}

func TestHoursHelpers(t *testing.T) {
	assert.Equal(t, 3.33, RoundHours(3.3333))
	assert.True(t, HoursEqual(10, 10.01))
	assert.False(t, HoursEqual(10, 10.02))

	slots := []Slot{{Hours: 3}, {Hours: 4.5}, {Hours: 2.5}}
	assert.Equal(t, 10.0, SumSlotHours(slots))
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		score int
		band  ImpactBand
	}{
		{0, ImpactLow},
		{33, ImpactLow},
		{34, ImpactModerate},
		{66, ImpactModerate},
		{67, ImpactHigh},
		{100, ImpactHigh},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.score), func(t *testing.T) {
			assert.Equal(t, tt.band, BandFor(tt.score))
		})
	}
}

func TestError_IsAndCode(t *testing.T) {
	err := NewError(CodeCapacityExceeded, "day %s is full", "2026-01-12").WithDetail("available", 0.0)
	wrapped := fmt.Errorf("add allocation: %w", err)

	assert.True(t, errors.Is(wrapped, ErrCapacityExceeded))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, CodeCapacityExceeded, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, "CAPACITY_EXCEEDED: day 2026-01-12 is full", err.Error())
	assert.Equal(t, 0.0, err.Details["available"])
}
