package ingest

// dates.go resolves the date strings found in real bank exports.
//
// Resolution order:
//
//  1. ISO-8601 date or timestamp
//  2. D[D]/M[M]/YYYY (also with '-' separators), day first
//  3. the same digits re-read as M[M]/D[D]/YYYY when (2) is not a real
//     calendar date
//
// The day-first policy is ambiguous by construction ("03/04/2024" could
// be either reading); it is a documented behavior and deliberately not
// locale-detected.

import (
	"strconv"
	"strings"
	"time"
)

// isoLayouts cover full ISO dates and the timestamp shapes exports
// commonly attach to them.
var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDate resolves raw into a calendar date. It reports ok=false
// for empty or unparseable input and never panics.
func NormalizeDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	first, second, year, ok := splitNumericDate(raw)
	if !ok {
		return time.Time{}, false
	}

	// Day-month-year first, then month-day-year.
	if t, ok := calendarDate(year, second, first); ok {
		return t, true
	}
	if t, ok := calendarDate(year, first, second); ok {
		return t, true
	}
	return time.Time{}, false
}

// splitNumericDate splits "a/b/yyyy" or "a-b-yyyy" into its three
// numeric parts.
func splitNumericDate(raw string) (first, second, year int, ok bool) {
	sep := "/"
	if !strings.Contains(raw, sep) {
		sep = "-"
	}
	parts := strings.Split(raw, sep)
	if len(parts) != 3 || len(parts[2]) != 4 {
		return 0, 0, 0, false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}

// calendarDate builds a date and rejects values that only exist through
// time.Date normalization (month 13, February 31 and the like).
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
