package handler

import (
	"net/url"
	"testing"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	t.Run("explicit range", func(t *testing.T) {
		q := url.Values{}
		q.Set("startDate", "2025-06-01")
		q.Set("endDate", "2025-06-07")

		start, end, err := parsePeriod(q)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
		// A plain endDate covers its whole day.
		assert.Equal(t, time.Date(2025, 6, 7, 23, 59, 59, 0, time.UTC), end)
	})

	t.Run("rfc3339 values", func(t *testing.T) {
		q := url.Values{}
		q.Set("startDate", "2025-06-01T08:30:00Z")
		q.Set("endDate", "2025-06-01T18:00:00+02:00")

		start, end, err := parsePeriod(q)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC), end)
	})

	t.Run("defaults to the last week", func(t *testing.T) {
		start, end, err := parsePeriod(url.Values{})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), end, time.Minute)
		assert.WithinDuration(t, end.AddDate(0, 0, -defaultPeriodDays), start, time.Minute)
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		q := url.Values{}
		q.Set("startDate", "2025-06-07")
		q.Set("endDate", "2025-06-01")
		_, _, err := parsePeriod(q)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		q := url.Values{}
		q.Set("startDate", "last tuesday")
		_, _, err := parsePeriod(q)
		assert.Error(t, err)
	})
}

func TestParseLogsFilters(t *testing.T) {
	q := url.Values{}
	q.Set("directions", "inbound,internal")
	q.Set("statuses", "answered")
	q.Set("callerSearch", "06*")
	q.Set("queueSearch", "800")
	q.Set("segmentCountMin", "2")
	q.Set("durationMax", "300")

	filters, err := parseLogsFilters(q)
	require.NoError(t, err)

	assert.Equal(t, []domain.CallDirection{domain.DirectionInbound, domain.DirectionInternal}, filters.Directions)
	assert.Equal(t, []domain.CallStatus{domain.StatusAnswered}, filters.Statuses)
	assert.Equal(t, "06*", filters.CallerSearch)
	assert.Equal(t, "800", filters.QueueSearch)
	require.NotNil(t, filters.SegmentCountMin)
	assert.Equal(t, 2, *filters.SegmentCountMin)
	require.NotNil(t, filters.DurationMax)
	assert.Equal(t, 300, *filters.DurationMax)
	assert.Nil(t, filters.SegmentCountMax)
	assert.Nil(t, filters.DurationMin)
}

func TestParseLogsFiltersRejectsUnknownValues(t *testing.T) {
	q := url.Values{}
	q.Set("directions", "sideways")
	_, err := parseLogsFilters(q)
	assert.Error(t, err)

	q = url.Values{}
	q.Set("statuses", "ghosted")
	_, err = parseLogsFilters(q)
	assert.Error(t, err)

	q = url.Values{}
	q.Set("durationMin", "soon")
	_, err = parseLogsFilters(q)
	assert.Error(t, err)
}

func TestParseLogsPage(t *testing.T) {
	assert.Equal(t, domain.LogsPage{Page: 1, PageSize: 25}, parseLogsPage(url.Values{}))

	q := url.Values{}
	q.Set("page", "3")
	q.Set("pageSize", "50")
	assert.Equal(t, domain.LogsPage{Page: 3, PageSize: 50}, parseLogsPage(q))

	q = url.Values{}
	q.Set("page", "-1")
	q.Set("pageSize", "nope")
	assert.Equal(t, domain.LogsPage{Page: 1, PageSize: 25}, parseLogsPage(q))
}
