package ics

import (
	"context"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"addtocal/internal/model"
	"addtocal/internal/timecalc"
)

func sydney(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	return loc
}

var stamp = time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

func lines(ls ...string) string {
	return strings.Join(ls, "\r\n") + "\r\n"
}

func TestExportTimed(t *testing.T) {
	ev := model.NormalizedEvent{
		Title:    "Dinner with Sam",
		Date:     "2025-03-10",
		Time:     model.Ptr("18:30"),
		EndTime:  model.Ptr("19:20"),
		Location: "Harbour Kitchen",
	}
	iv, err := timecalc.ComputeTimedInterval(ev.Date, *ev.Time, *ev.EndTime, sydney(t))
	require.NoError(t, err)

	out := Export(ev, iv, stamp)
	assert.Contains(t, out, "DTSTART:20250310T073000Z")
	assert.Contains(t, out, "DTEND:20250310T082000Z")
	assert.Contains(t, out, "SUMMARY:Dinner with Sam")
	assert.Contains(t, out, "LOCATION:Harbour Kitchen")
	assert.NotContains(t, out, "DESCRIPTION")

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 1)
	assert.Equal(t, EventUID(ev), cal.Events()[0].Id())
}

func TestExportAllDay(t *testing.T) {
	ev := model.NormalizedEvent{Title: "Xmas", Date: "2025-12-25"}
	iv, err := timecalc.ComputeAllDayInterval(ev.Date, sydney(t))
	require.NoError(t, err)

	out := Export(ev, iv, stamp)
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20251225")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20251226")
}

func TestEventUIDIsStable(t *testing.T) {
	a := model.NormalizedEvent{Title: "Dinner", Date: "2025-03-10", Time: model.Ptr("18:30")}
	b := a
	assert.Equal(t, EventUID(a), EventUID(b))

	b.Date = "2025-03-11"
	assert.NotEqual(t, EventUID(a), EventUID(b))
	assert.True(t, strings.HasSuffix(EventUID(a), "@addtocal"))
}

func TestExportParseRoundTrip(t *testing.T) {
	loc := sydney(t)
	ev := model.NormalizedEvent{
		Title:       "Late show",
		Date:        "2025-03-10",
		Time:        model.Ptr("23:00"),
		EndTime:     model.Ptr("00:30"),
		Description: "Bring tickets",
	}
	iv, err := timecalc.ComputeTimedInterval(ev.Date, *ev.Time, *ev.EndTime, loc)
	require.NoError(t, err)

	events, err := ParseEvents([]byte(Export(ev, iv, stamp)), loc)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, "Late show", got.Title)
	assert.Equal(t, "Bring tickets", got.Description)
	assert.Equal(t, "2025-03-10", got.Date)
	assert.Equal(t, "23:00", model.Deref(got.Time))
	assert.Equal(t, "00:30", model.Deref(got.EndTime))
}

func TestParseEventsAllDayAndMissingEnd(t *testing.T) {
	body := lines(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:a@test",
		"DTSTAMP:20250301T000000Z",
		"SUMMARY:Xmas",
		"DTSTART;VALUE=DATE:20251225",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:b@test",
		"DTSTAMP:20250301T000000Z",
		"SUMMARY:Call with Alex",
		"DTSTART:20250311T030000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	events, err := ParseEvents([]byte(body), sydney(t))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "2025-12-25", events[0].Date)
	assert.Nil(t, events[0].Time)

	// 03:00 UTC is 14:00 AEDT.
	assert.Equal(t, "2025-03-11", events[1].Date)
	assert.Equal(t, "14:00", model.Deref(events[1].Time))
	assert.Nil(t, events[1].EndTime)
}

func TestParseEventsEmpty(t *testing.T) {
	_, err := ParseEvents([]byte("  "), time.UTC)
	assert.Error(t, err)
}

func TestExtractorRoutesByContent(t *testing.T) {
	var nextCalls int
	next := fakeUpstream(func(context.Context, string, time.Time) (model.RawEventFields, error) {
		nextCalls++
		return model.RawEventFields{Title: "from model"}, nil
	})
	e := Extractor{Next: next}
	ref := time.Date(2025, 3, 7, 9, 0, 0, 0, sydney(t))

	raw, err := e.Extract(context.Background(), "dinner with sam", ref)
	require.NoError(t, err)
	assert.Equal(t, "from model", raw.Title)
	assert.Equal(t, 1, nextCalls)

	body := lines(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:b@test",
		"DTSTAMP:20250301T000000Z",
		"SUMMARY:Call with Alex",
		"DTSTART:20250311T030000Z",
		"DTEND:20250311T032000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	raw, err = e.Extract(context.Background(), body, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, nextCalls)
	assert.Equal(t, "Call with Alex", raw.Title)
	assert.Equal(t, "14:20", model.Deref(raw.EndTime))
}

func TestExtractorWithoutEvents(t *testing.T) {
	body := lines("BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN", "END:VCALENDAR")
	_, err := Extractor{}.Extract(context.Background(), body, stamp)
	assert.ErrorIs(t, err, model.ErrExtractionFailed)

	_, err = Extractor{}.Extract(context.Background(), "dinner", stamp)
	assert.ErrorIs(t, err, model.ErrExtractionFailed)
}

type fakeUpstream func(context.Context, string, time.Time) (model.RawEventFields, error)

func (f fakeUpstream) Extract(ctx context.Context, text string, ref time.Time) (model.RawEventFields, error) {
	return f(ctx, text, ref)
}
