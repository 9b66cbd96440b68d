package services

import "errors"

var (
	// ErrInvalidBackfillWindow is returned when a checkin targets a day outside
	// today, yesterday or the day before yesterday. Not retryable.
	ErrInvalidBackfillWindow = errors.New("checkin date outside the 3-day backfill window")

	// ErrStoreUnavailable wraps transient persistence failures. Retryable; the
	// ingress path surfaces it to the caller, the penalty sweep logs and skips.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAggregateDrift marks a user whose aggregate exceeds the checkin log count.
	// Detected by the offline audit only, never auto-corrected.
	ErrAggregateDrift = errors.New("aggregate drifted from checkin log")
)
