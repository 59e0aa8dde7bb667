// Package timefmt parses the timestamp formats used by the external order system.
package timefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bbus-fleet/backend/pkg/apperr"
)

// OrderLayout documents the external order timestamp format: DD.MM.YYYY HH.MM.SS.
const OrderLayout = "DD.MM.YYYY HH.MM.SS"

// ParseOrderTime parses "DD.MM.YYYY HH.MM.SS" in loc. Leading zeros are optional.
// Wrong separator counts, non-numeric parts and out-of-range fields are rejected, never normalized.
func ParseOrderTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	datePart, timePart, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok || strings.Contains(timePart, " ") {
		return time.Time{}, invalid(s)
	}
	date, err := splitInts(datePart)
	if err != nil {
		return time.Time{}, invalid(s)
	}
	clock, err := splitInts(timePart)
	if err != nil {
		return time.Time{}, invalid(s)
	}
	day, month, year := date[0], date[1], date[2]
	hour, minute, second := clock[0], clock[1], clock[2]

	if year < 1 || month < 1 || month > 12 || day < 1 || day > daysIn(month, year) ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, invalid(s)
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

// ParseBound parses an optional lower filter bound. Empty input yields nil.
// Accepted: RFC3339, 2006-01-02T15:04:05 and 2006-01-02 (both in loc), and the order format.
func ParseBound(s string, loc *time.Location) (*time.Time, error) {
	return parseBound(s, loc, false)
}

// ParseUpperBound is ParseBound for inclusive upper bounds: a date-only value covers the whole day.
func ParseUpperBound(s string, loc *time.Location) (*time.Time, error) {
	return parseBound(s, loc, true)
}

func parseBound(s string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return &t, nil
	}
	if t, err := ParseOrderTime(s, loc); err == nil {
		return &t, nil
	}
	return nil, apperr.Newf(apperr.KindValidation, "invalid timestamp %q", s)
}

func invalid(s string) error {
	return apperr.Newf(apperr.KindValidation, "invalid timestamp %q, expected %s", s, OrderLayout)
}

// splitInts splits "a.b.c" into exactly three non-negative integers.
func splitInts(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return out, fmt.Errorf("want 3 parts, got %d", len(parts))
	}
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return out, fmt.Errorf("part %q is not numeric", p)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, err
		}
		out[i] = n
	}
	return out, nil
}

func daysIn(month, year int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
