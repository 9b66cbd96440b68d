package services

import "time"

// DayLayout is the canonical YYYY-MM-DD representation used for all checkin day
// arithmetic. Lexicographic comparison of formatted days matches chronological order.
const DayLayout = "2006-01-02"

// FormatDay renders a wall-clock instant as its local calendar day.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// NextDay returns the calendar day after day. Invalid input is returned unchanged.
func NextDay(day string) string {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, 1).Format(DayLayout)
}

// PrevDay returns the calendar day before day. Invalid input is returned unchanged.
func PrevDay(day string) string {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, -1).Format(DayLayout)
}

// ValidateBackfillDay checks that day falls inside the fixed 3-day backfill window
// ending at today: today itself, yesterday, or the day before yesterday. The window
// never slides based on the user's own history.
func ValidateBackfillDay(day, today string) error {
	if day == today || day == PrevDay(today) || day == PrevDay(PrevDay(today)) {
		return nil
	}
	return ErrInvalidBackfillWindow
}

// MissedDays reports the trailing count of consecutive days without a checkin,
// walking each day strictly after lastCheckinDay up to and including asOfDay.
// Any present day inside the range resets the running count to zero, so a single
// checkin anywhere in the scanned range wipes out the misses before it.
//
// A user who has never checked in (lastCheckinDay == "") is not scanned and gets 0;
// absence since the quit date is deliberately not handled here.
func MissedDays(checkinDays map[string]struct{}, lastCheckinDay, asOfDay string) int {
	if lastCheckinDay == "" {
		return 0
	}
	if asOfDay <= lastCheckinDay {
		return 0
	}

	missed := 0
	for day := NextDay(lastCheckinDay); day <= asOfDay; day = NextDay(day) {
		if _, ok := checkinDays[day]; ok {
			missed = 0
		} else {
			missed++
		}
	}
	return missed
}

// PenaltyResult is the outcome of applying the tiered miss penalty.
type PenaltyResult struct {
	NewTotalDays     int
	FailureIncrement int
	Cleared          bool
}

// ApplyPenalty maps consecutive missed days onto the tiered penalty schedule:
// one missed day costs 7 accumulated days, two cost 21, three or more zero the
// total and count one lifetime failure (a relapse event). Totals never go below 0.
func ApplyPenalty(totalDays, missedDays int) PenaltyResult {
	switch {
	case missedDays <= 0:
		return PenaltyResult{NewTotalDays: totalDays}
	case missedDays == 1:
		return PenaltyResult{NewTotalDays: maxInt(0, totalDays-7)}
	case missedDays == 2:
		return PenaltyResult{NewTotalDays: maxInt(0, totalDays-21)}
	default:
		return PenaltyResult{NewTotalDays: 0, FailureIncrement: 1, Cleared: true}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
