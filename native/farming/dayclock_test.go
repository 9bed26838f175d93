package farming

import (
	"testing"
	"time"
)

func TestCurrentDay(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	clock := DayClock{Start: start, DayLength: 24 * time.Hour}

	cases := []struct {
		name string
		at   time.Time
		want int64
	}{
		{"before start clamps", start.Add(-time.Hour), 0},
		{"exactly start", start, 0},
		{"mid day zero", start.Add(6 * time.Hour), 0},
		{"one second before boundary", start.Add(24*time.Hour - time.Second), 0},
		{"on boundary", start.Add(24 * time.Hour), 1},
		{"several days in", start.Add(73 * time.Hour), 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clock.CurrentDay(tc.at); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestIsNewDay(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	clock := DayClock{Start: start, DayLength: time.Hour}

	if clock.IsNewDay(0, start.Add(30*time.Minute)) {
		t.Fatal("still inside day 0 relative to watermark 0")
	}
	if !clock.IsNewDay(0, start.Add(90*time.Minute)) {
		t.Fatal("day 1 open, watermark 0 is stale")
	}
	if !clock.IsNewDay(-1, start.Add(time.Minute)) {
		t.Fatal("day 0 open, nothing finalized yet")
	}
}

func TestClockForDefaultsDayLength(t *testing.T) {
	clock := ClockFor(nil)
	if clock.DayLength != DefaultDayLength {
		t.Fatalf("got %v, want %v", clock.DayLength, DefaultDayLength)
	}
	clock = ClockFor(&Program{StartTime: 100, DayLengthSeconds: 60})
	if clock.DayLength != time.Minute {
		t.Fatalf("got %v, want 1m", clock.DayLength)
	}
	if !clock.Start.Equal(time.Unix(100, 0)) {
		t.Fatalf("start: got %v", clock.Start)
	}
}
