package scheduler

import (
	"testing"
	"time"

	"staywatch/internal/models"
)

func TestParseDailyRunTime(t *testing.T) {
	if spec := parseDailyRunTime("03:00", "04:00"); spec != "0 3 * * *" {
		t.Errorf("expected '0 3 * * *', got %q", spec)
	}
	if spec := parseDailyRunTime("23:45", "04:00"); spec != "45 23 * * *" {
		t.Errorf("expected '45 23 * * *', got %q", spec)
	}
	// malformed input falls back
	if spec := parseDailyRunTime("not-a-time", "04:30"); spec != "30 4 * * *" {
		t.Errorf("expected fallback '30 4 * * *', got %q", spec)
	}
	if spec := parseDailyRunTime("25:00", "04:00"); spec != "0 4 * * *" {
		t.Errorf("out-of-range hour should fall back, got %q", spec)
	}
}

func TestParseWeeklyRunTime(t *testing.T) {
	if spec := parseWeeklyRunTime("MON", "05:00"); spec != "0 5 * * MON" {
		t.Errorf("expected '0 5 * * MON', got %q", spec)
	}
	if spec := parseWeeklyRunTime("SUN", "12:30"); spec != "30 12 * * SUN" {
		t.Errorf("expected '30 12 * * SUN', got %q", spec)
	}
	if spec := parseWeeklyRunTime("", "bad"); spec != "0 5 * * MON" {
		t.Errorf("expected double fallback '0 5 * * MON', got %q", spec)
	}
}

func TestShiftDailySpec(t *testing.T) {
	if spec := shiftDailySpec("0 3 * * *", 2); spec != "0 5 * * *" {
		t.Errorf("expected '0 5 * * *', got %q", spec)
	}
	// wraps at midnight
	if spec := shiftDailySpec("30 23 * * *", 2); spec != "30 1 * * *" {
		t.Errorf("expected '30 1 * * *', got %q", spec)
	}
}

func TestShiftWeeklySpec(t *testing.T) {
	if spec := shiftWeeklySpec("0 5 * * MON", 1); spec != "0 6 * * MON" {
		t.Errorf("day of week must survive the shift, got %q", spec)
	}
	if spec := shiftWeeklySpec("garbage", 1); spec != "garbage" {
		t.Errorf("unparsable spec should pass through, got %q", spec)
	}
}

func TestDayStart(t *testing.T) {
	in := time.Date(2026, 3, 1, 17, 45, 12, 999, time.UTC)
	got := dayStart(in)
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNextRetryDelayProgression(t *testing.T) {
	want := []time.Duration{
		30 * time.Second,
		2 * time.Minute,
		10 * time.Minute,
		30 * time.Minute,
	}
	for i, w := range want {
		if got := models.NextRetryDelay(i); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i, w, got)
		}
	}
	// past the table it stays at the longest delay
	if got := models.NextRetryDelay(10); got != 30*time.Minute {
		t.Errorf("expected clamp at 30m, got %v", got)
	}
}
