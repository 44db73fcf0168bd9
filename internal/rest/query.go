package rest

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// TimeParam reads an optional query parameter as RFC3339 or as a plain date in loc.
// An absent parameter yields fallback.
func TimeParam(r *http.Request, name string, fallback time.Time, loc *time.Location) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := ParseTime(raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %w", name, err)
	}
	return t, nil
}

// ParseTime accepts an RFC3339 timestamp or a YYYY-MM-DD date, which means midnight in loc.
func ParseTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be an RFC3339 timestamp or a YYYY-MM-DD date, got %q", raw)
	}
	return t, nil
}

// BoolParam reads an optional boolean query parameter.
func BoolParam(r *http.Request, name string, fallback bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", name, raw)
	}
	return value, nil
}
