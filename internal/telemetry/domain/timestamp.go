package telemetry

import (
	"time"
)

// NormalizeTimestamp converts the raw timestamp carried by an ingest
// entry into an absolute UTC instant. Accepted shapes: ISO-8601 string,
// numeric epoch seconds (JSON numbers arrive as float64) and native
// time.Time. Unparseable values fall back to now.
func NormalizeTimestamp(value any, now time.Time) time.Time {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return now.UTC()
		}
		return v.UTC()
	case string:
		if ts, err := ParseInstant(v); err == nil {
			return ts
		}
		return now.UTC()
	case float64:
		if v <= 0 {
			return now.UTC()
		}
		sec := int64(v)
		nsec := int64((v - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC()
	case int64:
		if v <= 0 {
			return now.UTC()
		}
		return time.Unix(v, 0).UTC()
	case int:
		return NormalizeTimestamp(int64(v), now)
	default:
		return now.UTC()
	}
}

// ParseInstant parses an ISO-8601 timestamp, tolerating the variants
// the field devices actually send (with or without sub-seconds, zone
// offset or trailing Z, and plain date-time without a zone).
func ParseInstant(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FloorToHour truncates an instant to the top of its hour in UTC. The
// result is a bucket's base_date.
func FloorToHour(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, time.UTC)
}

// FormatInstant renders an instant the way readings store their
// per-reading timestamp.
func FormatInstant(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
