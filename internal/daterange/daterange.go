package daterange

import (
	"fmt"
	"time"
)

// NaiveLayout is the backend's timestamp contract: local wall-clock time
// with no offset or zone suffix. The backend interprets it as local time;
// this is a compatibility constraint, not a timezone guarantee.
const NaiveLayout = "2006-01-02T15:04:05"

// Mode selects how the concrete range is derived.
type Mode string

const (
	Last7Days  Mode = "7d"
	Last30Days Mode = "30d"
	Custom     Mode = "custom"
)

// Range is an inclusive pair of instants. Invariant: Start <= End.
type Range struct {
	Start time.Time
	End   time.Time
}

// FormatNaive serializes an instant for the backend, truncated to whole
// seconds.
func FormatNaive(t time.Time) string {
	return t.Format(NaiveLayout)
}

// ParseNaive reads a backend timestamp in the location provided (local time
// for live use; tests pass a fixed zone).
func ParseNaive(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(NaiveLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse naive timestamp %q: %w", s, err)
	}
	return t, nil
}

// StartOfDay truncates t to 00:00:00.000 in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay pins t to 23:59:59.999 in its own location. Sub-second precision
// is dropped again by FormatNaive when the range goes on the wire.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// LastNDays builds the rolling window [start of day N-1 days before now,
// end of day today].
func LastNDays(n int, now time.Time) Range {
	if n < 1 {
		n = 1
	}
	return Range{
		Start: StartOfDay(now.AddDate(0, 0, -(n - 1))),
		End:   EndOfDay(now),
	}
}

// NewCustom normalizes explicit instants to day boundaries. Start after end
// violates the range invariant and is rejected.
func NewCustom(start, end time.Time) (Range, error) {
	r := Range{Start: StartOfDay(start), End: EndOfDay(end)}
	if r.Start.After(r.End) {
		return Range{}, fmt.Errorf("range start %s is after end %s", r.Start.Format(NaiveLayout), r.End.Format(NaiveLayout))
	}
	return r, nil
}

// Resolve computes the concrete range for a mode from "now". Relative modes
// are recomputed on every call; Custom returns the stored range unchanged.
func Resolve(mode Mode, custom Range, now time.Time) Range {
	switch mode {
	case Last7Days:
		return LastNDays(7, now)
	case Last30Days:
		return LastNDays(30, now)
	default:
		return custom
	}
}
