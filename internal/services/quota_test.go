package services

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

var quotaZones = []string{
	"UTC",
	"Asia/Kolkata",        // +05:30
	"Asia/Kathmandu",      // +05:45
	"Australia/Lord_Howe", // 30-minute DST shift
	"America/New_York",
	"America/St_Johns", // -03:30 with DST
	"America/Santiago", // DST transition at midnight
	"Pacific/Chatham",  // +12:45 with DST
	"Pacific/Kiritimati",
	"Pacific/Pago_Pago",
	"Europe/London",
	"Asia/Tehran",
}

func TestComputeWindow_ContainsNowAcrossZones(t *testing.T) {
	// Hourly samples across two years, with a prime minute offset so
	// half-hour and 45-minute zones hit both sides of their midnights.
	start := time.Date(2024, 1, 1, 0, 7, 0, 0, time.UTC)
	for _, tz := range quotaZones {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			t.Fatalf("load %s: %v", tz, err)
		}
		for i := 0; i < 2*365*24; i += 7 {
			now := start.Add(time.Duration(i) * time.Hour)
			w, err := ComputeWindow(now, tz, 3, 0)
			if err != nil {
				t.Fatalf("%s at %s: %v", tz, now, err)
			}
			if now.Before(w.WindowStart) || !now.Before(w.WindowEnd) {
				t.Fatalf("%s: %s not in [%s, %s)", tz, now, w.WindowStart, w.WindowEnd)
			}
			ly, lm, ld := now.In(loc).Date()
			if sy, sm, sd := w.WindowStart.In(loc).Date(); sy != ly || sm != lm || sd != ld {
				t.Fatalf("%s: window start %s is not on local date of %s", tz, w.WindowStart.In(loc), now.In(loc))
			}
			ny, nm, nd := time.Date(ly, lm, ld+1, 12, 0, 0, 0, loc).Date()
			if ey, em, ed := w.WindowEnd.In(loc).Date(); ey != ny || em != nm || ed != nd {
				t.Fatalf("%s: window end %s is not the next local date", tz, w.WindowEnd.In(loc))
			}
			if span := w.WindowEnd.Sub(w.WindowStart); span < 22*time.Hour || span > 26*time.Hour {
				t.Fatalf("%s: window length %s", tz, span)
			}
			if w.WindowStart.Location() != time.UTC || w.WindowEnd.Location() != time.UTC {
				t.Fatalf("%s: boundaries must be UTC", tz)
			}
		}
	}
}

func TestComputeWindow_DSTDayLengths(t *testing.T) {
	ny := "America/New_York"
	loc, _ := time.LoadLocation(ny)

	spring, _ := ComputeWindow(time.Date(2025, 3, 9, 12, 0, 0, 0, loc), ny, 3, 0)
	if got := spring.WindowEnd.Sub(spring.WindowStart); got != 23*time.Hour {
		t.Fatalf("spring-forward day should be 23h, got %s", got)
	}
	fall, _ := ComputeWindow(time.Date(2025, 11, 2, 12, 0, 0, 0, loc), ny, 3, 0)
	if got := fall.WindowEnd.Sub(fall.WindowStart); got != 25*time.Hour {
		t.Fatalf("fall-back day should be 25h, got %s", got)
	}
	normal, _ := ComputeWindow(time.Date(2025, 6, 1, 12, 0, 0, 0, loc), ny, 3, 0)
	if got := normal.WindowEnd.Sub(normal.WindowStart); got != 24*time.Hour {
		t.Fatalf("ordinary day should be 24h, got %s", got)
	}
	if want := time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC); !normal.WindowStart.Equal(want) {
		t.Fatalf("window start = %s; want %s", normal.WindowStart, want)
	}
}

func TestComputeWindow_HalfHourZone(t *testing.T) {
	// 20:00 UTC is 01:30 next day in Kolkata.
	now := time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC)
	w, err := ComputeWindow(now, "Asia/Kolkata", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC); !w.WindowStart.Equal(want) {
		t.Fatalf("start = %s; want %s", w.WindowStart, want)
	}
	if w.Timezone != "Asia/Kolkata" {
		t.Fatalf("timezone = %q", w.Timezone)
	}
}

func TestComputeWindow_EmptyMeansUTC(t *testing.T) {
	now := time.Date(2025, 5, 1, 23, 59, 0, 0, time.UTC)
	w, err := ComputeWindow(now, "", 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if w.Timezone != "UTC" || !w.WindowStart.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %+v", w)
	}
	if w.Remaining != 2 || w.Exhausted() {
		t.Fatalf("remaining = %d", w.Remaining)
	}
}

func TestComputeWindow_InvalidTimezone(t *testing.T) {
	for _, tz := range []string{"Mars/Olympus", "Local", "not a zone", " ", "\t", " Europe/Berlin"} {
		if _, err := ComputeWindow(time.Now(), tz, 3, 0); !errors.Is(err, ErrInvalidTimezone) {
			t.Fatalf("%q: expected ErrInvalidTimezone, got %v", tz, err)
		}
	}
}

func TestComputeWindow_RemainingClamped(t *testing.T) {
	w, _ := ComputeWindow(time.Now(), "UTC", 3, 5)
	if w.Remaining != 0 || !w.Exhausted() {
		t.Fatalf("remaining should clamp to 0, got %d", w.Remaining)
	}
}
