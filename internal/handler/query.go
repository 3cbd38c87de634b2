package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/domain"
)

// defaultPeriodDays is used when the caller gives no date range.
const defaultPeriodDays = 7

// parsePeriod reads startDate/endDate query parameters. Values may be
// RFC 3339 timestamps or plain dates; a plain endDate covers its whole day.
func parsePeriod(q url.Values) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -defaultPeriodDays)
	end := now

	if raw := q.Get("startDate"); raw != "" {
		t, _, err := parseDateParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid startDate: %w", err)
		}
		start = t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, dateOnly, err := parseDateParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid endDate: %w", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Second)
		}
		end = t
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("endDate is before startDate")
	}
	return start, end, nil
}

func parseDateParam(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}

// parseLogsFilters maps the call log query parameters onto repository filters.
func parseLogsFilters(q url.Values) (domain.LogsFilters, error) {
	filters := domain.LogsFilters{
		CallerSearch:    q.Get("callerSearch"),
		CalleeSearch:    q.Get("calleeSearch"),
		HandledBySearch: q.Get("handledBySearch"),
		QueueSearch:     q.Get("queueSearch"),
		IDSearch:        q.Get("idSearch"),
	}

	for _, raw := range splitCSV(q.Get("directions")) {
		d := domain.CallDirection(raw)
		switch d {
		case domain.DirectionInbound, domain.DirectionOutbound, domain.DirectionInternal, domain.DirectionBridge:
			filters.Directions = append(filters.Directions, d)
		default:
			return filters, fmt.Errorf("unknown direction %q", raw)
		}
	}

	for _, raw := range splitCSV(q.Get("statuses")) {
		s := domain.CallStatus(raw)
		switch s {
		case domain.StatusAnswered, domain.StatusAbandoned, domain.StatusVoicemail, domain.StatusBusy:
			filters.Statuses = append(filters.Statuses, s)
		default:
			return filters, fmt.Errorf("unknown status %q", raw)
		}
	}

	var err error
	if filters.SegmentCountMin, err = optionalInt(q, "segmentCountMin"); err != nil {
		return filters, err
	}
	if filters.SegmentCountMax, err = optionalInt(q, "segmentCountMax"); err != nil {
		return filters, err
	}
	if filters.DurationMin, err = optionalInt(q, "durationMin"); err != nil {
		return filters, err
	}
	if filters.DurationMax, err = optionalInt(q, "durationMax"); err != nil {
		return filters, err
	}

	return filters, nil
}

// parseLogsPage reads pagination parameters; the repository clamps bounds.
func parseLogsPage(q url.Values) domain.LogsPage {
	page := domain.LogsPage{Page: 1, PageSize: 25}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page.Page = v
	}
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil && v > 0 {
		page.PageSize = v
	}
	return page
}

func optionalInt(q url.Values, key string) (*int, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &v, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
