// internal/report/timerange.go
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/campusit/mfpusage/internal/export"
)

// ResolveRange turns the filter flags into a concrete inclusive window.
// month takes YYYY-MM, week takes an ISO week like 2025-W37, and start/end
// accept the same timestamp layouts the device emits. Month and week are
// mutually exclusive and each overrides explicit start/end. Stored
// timestamps have second resolution and the store filter is inclusive on
// both bounds, so a derived window ends at the period's last second; a
// job starting exactly on the next period's first instant stays out.
func ResolveRange(month, week, start, end string) (time.Time, time.Time, error) {
	var zero time.Time

	switch {
	case month != "" && week != "":
		return zero, zero, fmt.Errorf("month and week are mutually exclusive")
	case month != "":
		t, err := time.ParseInLocation("2006-01", month, time.Local)
		if err != nil {
			return zero, zero, fmt.Errorf("invalid month %q: expected YYYY-MM", month)
		}
		return t, t.AddDate(0, 1, 0).Add(-time.Second), nil
	case week != "":
		s, err := parseISOWeek(week)
		if err != nil {
			return zero, zero, err
		}
		return s, s.AddDate(0, 0, 7).Add(-time.Second), nil
	}

	var s, e time.Time
	if start != "" {
		if s = export.ParseTime(start); s.IsZero() {
			return zero, zero, fmt.Errorf("invalid start time %q", start)
		}
	}
	if end != "" {
		if e = export.ParseTime(end); e.IsZero() {
			return zero, zero, fmt.Errorf("invalid end time %q", end)
		}
	}
	if !s.IsZero() && !e.IsZero() && e.Before(s) {
		return zero, zero, fmt.Errorf("end time precedes start time")
	}
	return s, e, nil
}

// parseISOWeek returns the Monday starting ISO week "YYYY-Www".
func parseISOWeek(v string) (time.Time, error) {
	parts := strings.SplitN(strings.ToUpper(v), "-W", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid week %q: expected YYYY-Www", v)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week %q: expected YYYY-Www", v)
	}
	week, err := strconv.Atoi(parts[1])
	if err != nil || week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("invalid week %q: expected YYYY-Www", v)
	}

	// Jan 4 is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.Local)
	wd := int(jan4.Weekday())
	if wd == 0 {
		wd = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-wd)
	return week1Monday.AddDate(0, 0, (week-1)*7), nil
}
