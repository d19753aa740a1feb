package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// flexLayouts are tried in order when decoding timestamps. The data service
// stores naive datetimes, so zone-less layouts are parsed as UTC.
var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FlexTime is a time.Time that accepts RFC 3339, naive ISO datetimes and
// plain dates when decoded from JSON.
type FlexTime struct {
	time.Time
}

// ParseFlexTime parses s using the first matching layout.
func ParseFlexTime(s string) (time.Time, error) {
	for _, layout := range flexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// WallClock returns t's date and clock reading in its own zone, relabelled
// as UTC. Naive service timestamps decode as UTC, so values passed through
// WallClock compare against them by wall clock.
func WallClock(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		f.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding time: %w", err)
	}
	if s == "" {
		f.Time = time.Time{}
		return nil
	}
	t, err := ParseFlexTime(s)
	if err != nil {
		return err
	}
	f.Time = t
	return nil
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Format(time.RFC3339Nano))
}
