package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime is returned when a value matches none of the accepted layouts.
var ErrInvalidTime = errors.New("invalid time")

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC3339, RFC3339 without zone, "YYYY-MM-DD HH:MM:SS",
// a bare date or unix seconds. Values without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTime)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// ErrStartAfterEnd represents an invalid time window where start > end.
var ErrStartAfterEnd = errors.New("start is after end")

// ResolveTimeWindow computes [start, end] from optional strings.
//   - both empty: last 24h ending at now
//   - only start: end = now
//   - only end: start = end - 24h
//   - both set: start must not be after end
func ResolveTimeWindow(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		if start, err = ParseTime(startStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
		}
	}
	if endStr != "" {
		if end, err = ParseTime(endStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
		}
	}
	switch {
	case startStr == "" && endStr == "":
		end = now
		start = now.Add(-24 * time.Hour)
	case endStr == "":
		end = now
	case startStr == "":
		start = end.Add(-24 * time.Hour)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrStartAfterEnd
	}
	return start, end, nil
}

// SplitCSV turns a comma-separated string into a slice, trimming empties.
func SplitCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
