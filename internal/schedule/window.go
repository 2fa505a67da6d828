// Package schedule implements the quiet-hours clock and the send-time
// scheduling function. All inputs and outputs are UTC instants; the
// window's timezone only affects which local times count as quiet.
package schedule

import (
	"fmt"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/domain"
)

// Window is a daily quiet-hours interval, half-open [start, end) in local
// time-of-day. When end <= start the window wraps midnight
// (e.g. 22:00-09:00).
type Window struct {
	loc   *time.Location
	start int // minutes since local midnight
	end   int
}

// ParseWindow builds a Window from an IANA timezone name and two "HH:MM"
// times of day.
func ParseWindow(tz, start, end string) (Window, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Window{}, fmt.Errorf("%w: invalid timezone %q: %v", domain.ErrValidation, tz, err)
	}

	startMin, err := parseMinuteOfDay(start)
	if err != nil {
		return Window{}, fmt.Errorf("%w: invalid quiet start %q", domain.ErrValidation, start)
	}
	endMin, err := parseMinuteOfDay(end)
	if err != nil {
		return Window{}, fmt.Errorf("%w: invalid quiet end %q", domain.ErrValidation, end)
	}

	return Window{loc: loc, start: startMin, end: endMin}, nil
}

func parseMinuteOfDay(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return h*60 + m, nil
}

func (w Window) wraps() bool { return w.end <= w.start }

// Contains reports whether t falls inside the quiet window. The start
// instant is inside, the end instant is outside.
func (w Window) Contains(t time.Time) bool {
	if w.loc == nil {
		return false
	}
	local := t.In(w.loc)
	tod := local.Hour()*60 + local.Minute()

	if w.wraps() {
		return tod >= w.start || tod < w.end
	}
	return tod >= w.start && tod < w.end
}

// NextAllowed returns the earliest instant at or after t at which Contains
// is false: the window's end boundary on the same local day when the
// time-of-day still precedes it, otherwise on the next day. Instants
// already outside the window are returned unchanged.
func (w Window) NextAllowed(t time.Time) time.Time {
	if !w.Contains(t) {
		return t.UTC()
	}

	local := t.In(w.loc)
	tod := local.Hour()*60 + local.Minute()

	day := local
	if tod >= w.end {
		day = day.AddDate(0, 0, 1)
	}

	endLocal := time.Date(day.Year(), day.Month(), day.Day(), w.end/60, w.end%60, 0, 0, w.loc)
	return endLocal.UTC()
}

// After computes a send time: base plus a fractional number of hours,
// deferred past the quiet window when the candidate lands inside it.
// Zero or negative delays mean "as soon as possible", still subject to
// deferral.
func (w Window) After(base time.Time, hours float64) time.Time {
	candidate := base.Add(time.Duration(hours * float64(time.Hour))).UTC()
	return w.NextAllowed(candidate)
}
