package daterange

import (
	"testing"
	"time"
)

func TestFormatNaiveDropsZoneAndSubSeconds(t *testing.T) {
	loc := time.FixedZone("BOG", -5*3600)
	instant := time.Date(2025, 1, 15, 23, 59, 59, int(999*time.Millisecond), loc)

	got := FormatNaive(instant)
	if got != "2025-01-15T23:59:59" {
		t.Fatalf("expected naive timestamp, got %q", got)
	}
}

func TestParseNaiveRoundTrips(t *testing.T) {
	loc := time.FixedZone("BOG", -5*3600)
	parsed, err := ParseNaive("2025-01-15T08:30:00", loc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.Hour() != 8 || parsed.Minute() != 30 {
		t.Fatalf("unexpected instant %v", parsed)
	}
	if parsed.Location() != loc {
		t.Fatalf("expected provided location, got %v", parsed.Location())
	}
	if FormatNaive(parsed) != "2025-01-15T08:30:00" {
		t.Fatalf("round trip mismatch: %q", FormatNaive(parsed))
	}
}

func TestParseNaiveRejectsOffsets(t *testing.T) {
	if _, err := ParseNaive("2025-01-15T08:30:00Z", time.UTC); err == nil {
		t.Fatalf("expected zoned timestamp to be rejected")
	}
}

func TestLastNDaysWindow(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 30, 45, 0, time.UTC)
	r := LastNDays(7, now)

	if want := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC); !r.Start.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, r.Start)
	}
	if r.End.Day() != 15 || r.End.Hour() != 23 || r.End.Minute() != 59 || r.End.Second() != 59 {
		t.Fatalf("expected end of today, got %v", r.End)
	}
}

func TestLastNDaysClampsToOne(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	r := LastNDays(0, now)
	if r.Start.Day() != 15 {
		t.Fatalf("expected same-day window, got start %v", r.Start)
	}
}

func TestNewCustomNormalizesToDayBounds(t *testing.T) {
	start := time.Date(2025, 1, 10, 14, 22, 0, 0, time.UTC)
	end := time.Date(2025, 1, 12, 9, 5, 0, 0, time.UTC)

	r, err := NewCustom(start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Start.Hour() != 0 || r.Start.Minute() != 0 {
		t.Fatalf("expected start of day, got %v", r.Start)
	}
	if r.End.Hour() != 23 || r.End.Second() != 59 {
		t.Fatalf("expected end of day, got %v", r.End)
	}
}

func TestNewCustomRejectsInvertedRange(t *testing.T) {
	start := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	if _, err := NewCustom(start, end); err == nil {
		t.Fatalf("expected inverted range to be rejected")
	}
}

func TestResolveModes(t *testing.T) {
	now := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)

	r := Resolve(Last30Days, Range{}, now)
	if want := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC); !r.Start.Equal(want) {
		t.Fatalf("expected 30-day start %v, got %v", want, r.Start)
	}

	custom, _ := NewCustom(now.AddDate(0, 0, -2), now)
	if got := Resolve(Custom, custom, now); got != custom {
		t.Fatalf("expected custom range unchanged, got %+v", got)
	}
}
