// Package normalize bridges loosely-specified extracted or edited fields and
// the strict model.NormalizedEvent contract.
package normalize

import (
	"fmt"
	"strings"

	"addtocal/internal/model"
	"addtocal/internal/timecalc"
)

// Editable field names, as used by ApplyEdit and the HTTP API.
const (
	FieldTitle       = "title"
	FieldDate        = "date"
	FieldTime        = "time"
	FieldEndTime     = "endTime"
	FieldDescription = "description"
	FieldLocation    = "location"
)

// Validate checks that title and date are present and that every clock/date
// value parses. Blank clock strings count as absent; an end time without a
// start time is dropped, making the event all-day.
func Validate(raw model.RawEventFields) (model.NormalizedEvent, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return model.NormalizedEvent{}, fmt.Errorf("%w: title", model.ErrMissingRequiredField)
	}
	date := strings.TrimSpace(raw.Date)
	if date == "" {
		return model.NormalizedEvent{}, fmt.Errorf("%w: date", model.ErrMissingRequiredField)
	}
	if _, err := timecalc.ParseDate(date); err != nil {
		return model.NormalizedEvent{}, err
	}

	start, err := normalizeClock(raw.Time)
	if err != nil {
		return model.NormalizedEvent{}, err
	}
	end, err := normalizeClock(raw.EndTime)
	if err != nil {
		return model.NormalizedEvent{}, err
	}
	if start == nil {
		end = nil
	}

	return model.NormalizedEvent{
		Title:       title,
		Date:        date,
		Time:        start,
		EndTime:     end,
		Description: raw.Description,
		Location:    raw.Location,
	}, nil
}

// ResolveEndTime completes a timed event that has no end by adding
// defaultMinutes to the start on the wall clock (rolling past midnight).
// Events that are all-day or already complete are returned unchanged.
func ResolveEndTime(ev model.NormalizedEvent, defaultMinutes int) (model.NormalizedEvent, error) {
	if !ev.Incomplete() {
		return ev, nil
	}
	end, err := timecalc.AddMinutes(*ev.Time, defaultMinutes)
	if err != nil {
		return ev, err
	}
	ev.EndTime = model.Ptr(end)
	return ev, nil
}

// ApplyEdit replaces a single field. Editing the start of a complete timed
// event shifts its end so the duration is kept. On error the original event
// is returned untouched.
func ApplyEdit(ev model.NormalizedEvent, field, value string) (model.NormalizedEvent, error) {
	out := ev

	switch field {
	case FieldTitle:
		out.Title = value
	case FieldDescription:
		out.Description = value
	case FieldLocation:
		out.Location = value

	case FieldDate:
		date := strings.TrimSpace(value)
		if date != "" {
			if _, err := timecalc.ParseDate(date); err != nil {
				return ev, err
			}
		}
		out.Date = date

	case FieldTime:
		start, err := normalizeClock(&value)
		if err != nil {
			return ev, err
		}
		if start == nil {
			// Cleared start: the event becomes all-day.
			out.Time, out.EndTime = nil, nil
			break
		}
		if ev.Time != nil && ev.EndTime != nil {
			end, err := timecalc.ShiftEndTimeWithStart(*ev.Time, *ev.EndTime, *start)
			if err != nil {
				return ev, err
			}
			out.EndTime = model.Ptr(end)
		}
		out.Time = start

	case FieldEndTime:
		end, err := normalizeClock(&value)
		if err != nil {
			return ev, err
		}
		if end != nil && ev.Time == nil {
			return ev, fmt.Errorf("%w: end time needs a start time", model.ErrInvalidField)
		}
		out.EndTime = end

	default:
		return ev, fmt.Errorf("%w: %q", model.ErrUnknownField, field)
	}

	return out, nil
}

// normalizeClock maps blank or "null" to nil and canonicalizes to HH:MM.
func normalizeClock(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil, nil
	}
	c, err := timecalc.ParseClock(v)
	if err != nil {
		return nil, err
	}
	return model.Ptr(c.String()), nil
}
