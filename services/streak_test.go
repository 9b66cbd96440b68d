package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func daySet(days ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}

func TestMissedDaysNeverCheckedIn(t *testing.T) {
	// Users with no checkin history are not scanned at all.
	assert.Equal(t, 0, MissedDays(daySet(), "", "2024-06-10"))
}

func TestMissedDaysAlreadyCurrent(t *testing.T) {
	days := daySet("2024-06-10")
	assert.Equal(t, 0, MissedDays(days, "2024-06-10", "2024-06-10"))
	assert.Equal(t, 0, MissedDays(days, "2024-06-10", "2024-06-09"))
	assert.Equal(t, 0, MissedDays(days, "2024-06-10", "2024-05-01"))
}

func TestMissedDaysTrailingGap(t *testing.T) {
	tests := []struct {
		name string
		days []string
		last string
		asOf string
		want int
	}{
		{"one missed day", []string{"2024-06-10"}, "2024-06-10", "2024-06-11", 1},
		{"three missed days", []string{"2024-06-10"}, "2024-06-10", "2024-06-13", 3},
		{
			// A checkin inside the range resets the running count; only the
			// trailing gap ending at asOf is reported.
			"present day resets count",
			[]string{"2024-06-10", "2024-06-11"},
			"2024-06-10", "2024-06-13", 2,
		},
		{
			"reset then single trailing miss",
			[]string{"2024-06-10", "2024-06-12"},
			"2024-06-10", "2024-06-13", 1,
		},
		{
			"checkin on asOf day itself",
			[]string{"2024-06-10", "2024-06-13"},
			"2024-06-10", "2024-06-13", 0,
		},
		{
			"long gap across month boundary",
			[]string{"2024-06-29"},
			"2024-06-29", "2024-07-03", 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissedDays(daySet(tt.days...), tt.last, tt.asOf))
		})
	}
}

func TestApplyPenaltyTiers(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		missed int
		want   PenaltyResult
	}{
		{"no misses", 100, 0, PenaltyResult{NewTotalDays: 100}},
		{"one miss costs seven", 100, 1, PenaltyResult{NewTotalDays: 93}},
		{"two misses cost twenty-one", 100, 2, PenaltyResult{NewTotalDays: 79}},
		{"floor at zero", 5, 2, PenaltyResult{NewTotalDays: 0}},
		{"one miss floor", 3, 1, PenaltyResult{NewTotalDays: 0}},
		{"relapse clears", 50, 3, PenaltyResult{NewTotalDays: 0, FailureIncrement: 1, Cleared: true}},
		{"long relapse clears", 200, 30, PenaltyResult{NewTotalDays: 0, FailureIncrement: 1, Cleared: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyPenalty(tt.total, tt.missed))
		})
	}
}

func TestValidateBackfillDay(t *testing.T) {
	today := "2024-06-13"

	assert.NoError(t, ValidateBackfillDay("2024-06-13", today))
	assert.NoError(t, ValidateBackfillDay("2024-06-12", today))
	assert.NoError(t, ValidateBackfillDay("2024-06-11", today))

	// Exactly 4 days back and anything in the future are out of window.
	assert.ErrorIs(t, ValidateBackfillDay("2024-06-10", today), ErrInvalidBackfillWindow)
	assert.ErrorIs(t, ValidateBackfillDay("2024-06-09", today), ErrInvalidBackfillWindow)
	assert.ErrorIs(t, ValidateBackfillDay("2024-06-14", today), ErrInvalidBackfillWindow)
	assert.ErrorIs(t, ValidateBackfillDay("garbage", today), ErrInvalidBackfillWindow)
}

func TestDayHelpers(t *testing.T) {
	assert.Equal(t, "2024-07-01", NextDay("2024-06-30"))
	assert.Equal(t, "2024-02-29", NextDay("2024-02-28")) // leap year
	assert.Equal(t, "2023-12-31", PrevDay("2024-01-01"))
}
