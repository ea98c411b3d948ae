package hours

import (
	"fmt"
	"time"
)

// ClockTime is a time-of-day with minute resolution.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	var c ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &c.Hour, &c.Minute); err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	return c, nil
}

// ClockOf extracts the time-of-day from t in t's own location. Entries carry
// the upstream's zone offset, so no conversion happens here.
func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) Before(other ClockTime) bool {
	return c.minutes() < other.minutes()
}

// Window is a half-open time-of-day interval [Start, End). When End is not
// after Start the window wraps past midnight; Start == End covers the whole
// day.
type Window struct {
	Start ClockTime
	End   ClockTime
}

func (w Window) Wraps() bool {
	return !w.Start.Before(w.End)
}

// Contains reports whether c lies within the window. A wrapping window is the
// union of [Start, 24:00) and [00:00, End).
func (w Window) Contains(c ClockTime) bool {
	if !w.Wraps() {
		return !c.Before(w.Start) && c.Before(w.End)
	}
	return !c.Before(w.Start) || c.Before(w.End)
}

func (w Window) ContainsTime(t time.Time) bool {
	return w.Contains(ClockOf(t))
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", w.Start, w.End)
}

// HourStart truncates t to its hour boundary, keeping its location.
func HourStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// NextTick returns the next hour boundary after now plus a small offset, the
// instant upstream prices have rolled over to the next hour.
func NextTick(now time.Time, offset time.Duration) time.Time {
	return HourStart(now).Add(time.Hour + offset)
}
