package detection

import (
	"fmt"
	"time"
)

// WindowPolicy selects how the lookback window for an evaluation instant is
// computed. SlidingHour is the trailing-hour window; CalendarDay runs from
// local midnight to the evaluation instant.
type WindowPolicy int

const (
	PolicySlidingHour WindowPolicy = iota
	PolicyCalendarDay
)

func (p WindowPolicy) String() string {
	switch p {
	case PolicySlidingHour:
		return "sliding_hour"
	case PolicyCalendarDay:
		return "calendar_day"
	default:
		return "unknown"
	}
}

// ParseWindowPolicy converts a configuration string into a WindowPolicy.
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch s {
	case "sliding_hour":
		return PolicySlidingHour, nil
	case "calendar_day":
		return PolicyCalendarDay, nil
	default:
		return PolicySlidingHour, fmt.Errorf("unknown window policy %q", s)
	}
}

// Window is a (Start, End] interval: half-open on the left, inclusive on the
// right.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowEnding computes the window that ends at t under the policy. The result
// is deterministic for a given t and policy.
func (p WindowPolicy) WindowEnding(t time.Time) Window {
	switch p {
	case PolicyCalendarDay:
		y, m, d := t.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		return Window{Start: midnight, End: t}
	default:
		return Window{Start: t.Add(-time.Hour), End: t}
	}
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return ts.After(w.Start) && !ts.After(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// TruncatedToMinute returns the window with both bounds rounded down to the
// whole minute, for display formatting.
func (w Window) TruncatedToMinute() Window {
	return Window{
		Start: w.Start.Truncate(time.Minute),
		End:   w.End.Truncate(time.Minute),
	}
}
