// Package ics reads and writes iCalendar documents for single events.
package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"addtocal/internal/model"
)

const productID = "-//addtocal//addtocal//EN"

// uidDomain is appended to generated UIDs.
const uidDomain = "addtocal"

// EventUID derives a stable UID from the event's identifying fields, so
// exporting the same event twice yields the same UID.
func EventUID(ev model.NormalizedEvent) string {
	key := strings.Join([]string{
		ev.Title,
		ev.Date,
		model.Deref(ev.Time),
		model.Deref(ev.EndTime),
		ev.Location,
	}, "\x1f")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String() + "@" + uidDomain
}

// Export renders ev over iv as a calendar holding one VEVENT. stamp is used
// for DTSTAMP. All-day events are written as VALUE=DATE with an exclusive
// end date; timed events are written in UTC.
func Export(ev model.NormalizedEvent, iv model.CalendarInterval, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	ve := cal.AddEvent(EventUID(ev))
	ve.SetDtStampTime(stamp.UTC())
	ve.SetSummary(ev.Title)
	if strings.TrimSpace(ev.Description) != "" {
		ve.SetDescription(ev.Description)
	}
	if strings.TrimSpace(ev.Location) != "" {
		ve.SetLocation(ev.Location)
	}

	if iv.AllDay {
		ve.SetAllDayStartAt(iv.StartDay)
		ve.SetAllDayEndAt(iv.EndDay)
	} else {
		ve.SetStartAt(iv.Start.UTC())
		ve.SetEndAt(iv.End.UTC())
	}

	return cal.Serialize()
}
