package crawler_test

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prowfetch/internal/crawler"
	"prowfetch/internal/models"
)

func TestFilterFailed(t *testing.T) {
	records := []models.JobRecord{
		{ID: "1", Result: models.ResultFailure},
		{ID: "2", Result: models.ResultSuccess},
		{ID: "3", Result: models.ResultFailure},
		{ID: "4", Result: models.ResultAborted},
		{ID: "5", Result: models.ResultUnknown},
		{ID: "6", Result: models.ResultFailure},
	}

	failed := crawler.FilterFailed(records)

	require.Len(t, failed, 3)
	assert.Equal(t, "1", failed[0].ID)
	assert.Equal(t, "3", failed[1].ID)
	assert.Equal(t, "6", failed[2].ID)

	// filtering again changes nothing
	assert.Equal(t, failed, crawler.FilterFailed(failed))

	// input slice is untouched
	assert.Len(t, records, 6)
}

func TestFilterFailedEmpty(t *testing.T) {
	assert.Empty(t, crawler.FilterFailed(nil))
	assert.Empty(t, crawler.FilterFailed([]models.JobRecord{{ID: "1", Result: models.ResultSuccess}}))
}

func TestWithinWindow(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	records := []models.JobRecord{
		{ID: "recent", Started: null.TimeFrom(now.Add(-2 * time.Hour))},
		{ID: "old", Started: null.TimeFrom(now.Add(-30 * time.Hour))},
		{ID: "no-start"},
		{ID: "boundary", Started: null.TimeFrom(now.Add(-24 * time.Hour))},
	}

	t.Run("window active", func(t *testing.T) {
		kept := crawler.WithinWindow(records, 24, now)
		require.Len(t, kept, 2)
		assert.Equal(t, "recent", kept[0].ID)
		// a start time exactly on the cutoff is kept
		assert.Equal(t, "boundary", kept[1].ID)
	})

	t.Run("window disabled", func(t *testing.T) {
		assert.Len(t, crawler.WithinWindow(records, 0, now), 4)
		assert.Len(t, crawler.WithinWindow(records, -1, now), 4)
	})
}
