package farming

import "time"

// DayClock maps wall-clock time to a zero-based day index relative to the
// program start. Pure over its two fields; no state of its own.
type DayClock struct {
	Start     time.Time
	DayLength time.Duration
}

// ClockFor derives the day clock in force for a program record.
func ClockFor(p *Program) DayClock {
	if p == nil {
		return DayClock{DayLength: DefaultDayLength}
	}
	length := time.Duration(p.DayLengthSeconds) * time.Second
	if length <= 0 {
		length = DefaultDayLength
	}
	return DayClock{Start: time.Unix(int64(p.StartTime), 0), DayLength: length}
}

// CurrentDay returns floor((now - start) / dayLength). Times before the
// program start clamp to day 0.
func (c DayClock) CurrentDay(now time.Time) int64 {
	if c.DayLength <= 0 || !now.After(c.Start) {
		return 0
	}
	return int64(now.Sub(c.Start) / c.DayLength)
}

// IsNewDay reports whether the wall clock has advanced past the supplied
// finalized-day watermark.
func (c DayClock) IsNewDay(lastFinalizedDay int64, now time.Time) bool {
	return c.CurrentDay(now) > lastFinalizedDay
}
