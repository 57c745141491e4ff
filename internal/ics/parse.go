package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "addtocal/internal/log"
	"addtocal/internal/model"
	"addtocal/internal/timecalc"
)

// LooksLikeCalendar reports whether text is an iCalendar payload rather than
// prose.
func LooksLikeCalendar(text string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "BEGIN:VCALENDAR")
}

// ParseEvents reads every VEVENT in body and expresses its start and end on
// the wall clock of loc.
//
//   - All-day events (VALUE=DATE or a DTSTART without a time part) get no
//     time or end time.
//   - Timed events without DTEND get no end time, leaving it to the default
//     duration policy.
//   - Events that cannot be read are logged and skipped.
func ParseEvents(body []byte, loc *time.Location) ([]model.RawEventFields, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]model.RawEventFields, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.RawEventFields, error) {
	var out model.RawEventFields

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}

	if isDateValue(dtStart) {
		day, err := time.Parse("20060102", strings.TrimSpace(dtStart.Value))
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		out.Date = day.Format(timecalc.DateLayout)
		return out, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	start = start.In(loc)
	out.Date = start.Format(timecalc.DateLayout)
	out.Time = model.Ptr(start.Format("15:04"))

	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		end, err := ve.GetEndAt()
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		if end.Sub(start) >= 24*time.Hour {
			// Only the end's clock time survives; the span is re-derived from
			// the start date.
			appLog.Info("ics event spans a day or more; end date dropped",
				"summary", out.Title, "start", start.Format(time.RFC3339), "end", end.Format(time.RFC3339))
		}
		out.EndTime = model.Ptr(end.In(loc).Format("15:04"))
	}

	return out, nil
}

// isDateValue reports a VALUE=DATE property or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// upstream is the extractor consulted for anything that is not iCalendar.
type upstream interface {
	Extract(ctx context.Context, text string, ref time.Time) (model.RawEventFields, error)
}

// Extractor reads pasted iCalendar text directly and hands anything else to
// Next. Only the first VEVENT of a calendar is used.
type Extractor struct {
	Next upstream
}

// Extract implements the workflow extractor contract.
func (e Extractor) Extract(ctx context.Context, text string, ref time.Time) (model.RawEventFields, error) {
	if !LooksLikeCalendar(text) {
		if e.Next == nil {
			return model.RawEventFields{}, fmt.Errorf("%w: no extractor for free text", model.ErrExtractionFailed)
		}
		return e.Next.Extract(ctx, text, ref)
	}

	events, err := ParseEvents([]byte(text), ref.Location())
	if err != nil {
		return model.RawEventFields{}, fmt.Errorf("%w: %v", model.ErrExtractionFailed, err)
	}
	if len(events) == 0 {
		return model.RawEventFields{}, fmt.Errorf("%w: calendar has no readable events", model.ErrExtractionFailed)
	}
	if len(events) > 1 {
		appLog.Info("calendar holds several events; using the first", "event_count", len(events))
	}
	return events[0], nil
}
