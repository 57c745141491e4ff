// Package timecalc turns local calendar dates and wall-clock times into UTC
// intervals. Everything here is pure: no clock reads, no shared state.
package timecalc

import (
	"fmt"
	"strings"
	"time"

	"addtocal/internal/model"
)

// DateLayout is the ISO calendar date form used by event records.
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// Clock is a wall-clock time of day, in minutes after midnight [0, 1440).
type Clock int

// ParseClock parses "HH:MM" (24-hour). "HH:MM:SS" is accepted as well since
// browser time inputs may send seconds; they are discarded.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("%w: time %q is not HH:MM", model.ErrInvalidField, s)
}

// String renders the clock as zero-padded "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add performs wall-clock addition, wrapping past midnight.
func (c Clock) Add(minutes int) Clock {
	m := (int(c) + minutes) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return Clock(m)
}

// ParseDate parses a YYYY-MM-DD calendar date. The result is the civil date at
// midnight UTC and carries no timezone meaning of its own.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", model.ErrInvalidField, s)
	}
	return d, nil
}

// ComputeAllDayInterval spans date from local midnight up to local midnight of
// the following calendar date. Start/End are UTC instants; StartDay/EndDay
// keep the civil dates for the compact serialized form.
func ComputeAllDayInterval(date string, loc *time.Location) (model.CalendarInterval, error) {
	day, err := ParseDate(date)
	if err != nil {
		return model.CalendarInterval{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	next := day.AddDate(0, 0, 1)

	start := atLocal(day, 0, loc)
	end := atLocal(next, 0, loc)
	if !end.After(start) {
		return model.CalendarInterval{}, fmt.Errorf("%w: all-day %s", model.ErrInvalidInterval, date)
	}

	return model.CalendarInterval{
		Start:    start.UTC(),
		End:      end.UTC(),
		AllDay:   true,
		StartDay: day,
		EndDay:   next,
	}, nil
}

// ComputeTimedInterval combines date with start and end wall-clock times.
//
// An end earlier than the start belongs to the following calendar date
// (23:30 -> 00:15). This is a wall-clock heuristic: events are assumed never
// to exceed 24 hours.
func ComputeTimedInterval(date, start, end string, loc *time.Location) (model.CalendarInterval, error) {
	day, err := ParseDate(date)
	if err != nil {
		return model.CalendarInterval{}, err
	}
	s, err := ParseClock(start)
	if err != nil {
		return model.CalendarInterval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return model.CalendarInterval{}, err
	}
	if loc == nil {
		loc = time.Local
	}

	endDay := day
	if e < s {
		endDay = day.AddDate(0, 0, 1)
	}

	startAt := atLocal(day, s, loc)
	endAt := atLocal(endDay, e, loc)

	// Equal clocks; DST normalization can also collapse the span.
	if !endAt.After(startAt) {
		return model.CalendarInterval{}, fmt.Errorf("%w: %s %s-%s in %s",
			model.ErrInvalidInterval, date, s, e, loc)
	}

	return model.CalendarInterval{
		Start: startAt.UTC(),
		End:   endAt.UTC(),
	}, nil
}

// DurationMinutes is the wall-clock length from start to end. An end earlier
// than the start is measured across midnight on a synthetic two-day span.
func DurationMinutes(start, end Clock) int {
	if end < start {
		return int(end) + minutesPerDay - int(start)
	}
	return int(end - start)
}

// ShiftEndTimeWithStart moves the end along with an edited start so the
// original duration is preserved.
func ShiftEndTimeWithStart(oldStart, oldEnd, newStart string) (string, error) {
	from, err := ParseClock(oldStart)
	if err != nil {
		return "", err
	}
	to, err := ParseClock(oldEnd)
	if err != nil {
		return "", err
	}
	shifted, err := ParseClock(newStart)
	if err != nil {
		return "", err
	}
	return shifted.Add(DurationMinutes(from, to)).String(), nil
}

// AddMinutes adds minutes to an "HH:MM" clock, rolling into the next day.
func AddMinutes(clock string, minutes int) (string, error) {
	c, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	return c.Add(minutes).String(), nil
}

// Display12h renders "HH:MM" as "6:30 PM". Unparseable input yields "".
func Display12h(clock string) string {
	c, err := ParseClock(clock)
	if err != nil {
		return ""
	}
	h := int(c) / 60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, int(c)%60, suffix)
}

func atLocal(day time.Time, c Clock, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), int(c)/60, int(c)%60, 0, 0, loc)
}
