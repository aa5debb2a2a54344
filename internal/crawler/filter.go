package crawler

import (
	"time"

	"prowfetch/internal/models"
)

// FilterFailed returns the records whose result is FAILURE, preserving the
// relative order of the input. It is a pure function and idempotent: filtering
// an already-filtered sequence changes nothing.
func FilterFailed(records []models.JobRecord) []models.JobRecord {
	failed := make([]models.JobRecord, 0, len(records))
	for _, rec := range records {
		if rec.Result == models.ResultFailure {
			failed = append(failed, rec)
		}
	}
	return failed
}

// WithinWindow keeps records whose start time falls inside the last hoursBack
// hours before now. hoursBack <= 0 disables the window. Records without a
// start time are dropped when a window is active, since their age is unknown.
func WithinWindow(records []models.JobRecord, hoursBack int, now time.Time) []models.JobRecord {
	if hoursBack <= 0 {
		return records
	}

	cutoff := now.Add(-time.Duration(hoursBack) * time.Hour)
	kept := make([]models.JobRecord, 0, len(records))
	for _, rec := range records {
		if rec.Started.Valid && !rec.Started.Time.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	return kept
}
