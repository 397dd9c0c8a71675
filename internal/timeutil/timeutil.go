package timeutil

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned for values that cannot be read as an instant.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

type asTimer interface {
	AsTime() time.Time
}

type toTimer interface {
	ToTime() time.Time
}

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize converts a stored timestamp into a time.Time.
//
// A nil value means the backend has not assigned the timestamp yet (a pending
// server timestamp), so the current time from now is used. Values exposing
// AsTime or ToTime, such as *timestamppb.Timestamp, are converted through that
// method. Strings and epoch milliseconds are parsed as primitives.
func Normalize(v any, now func() time.Time) (time.Time, error) {
	if now == nil {
		now = time.Now
	}

	switch t := v.(type) {
	case nil:
		return now(), nil
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return now(), nil
		}
		return *t, nil
	case asTimer:
		return t.AsTime(), nil
	case toTimer:
		return t.ToTime(), nil
	case string:
		return parseString(t)
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, t)
		}
		return time.UnixMilli(int64(t)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, v)
	}
}

func parseString(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrInvalidTimestamp)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
}
