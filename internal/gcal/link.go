// Package gcal builds Google Calendar "add event" deep-links.
package gcal

import (
	"net/url"
	"strings"

	"addtocal/internal/model"
)

// DefaultBaseURL is the render endpoint that opens the add-event template.
const DefaultBaseURL = "https://www.google.com/calendar/render"

// Wire layouts for the dates parameter. These are fixed by the provider.
const (
	allDayLayout = "20060102"
	timedLayout  = "20060102T150405Z"
)

// FormatDates renders the dates parameter value: "YYYYMMDD/YYYYMMDD" for
// all-day intervals, "YYYYMMDDTHHMMSSZ/YYYYMMDDTHHMMSSZ" (UTC) otherwise.
func FormatDates(iv model.CalendarInterval) string {
	if iv.AllDay {
		return iv.StartDay.Format(allDayLayout) + "/" + iv.EndDay.Format(allDayLayout)
	}
	return iv.Start.UTC().Format(timedLayout) + "/" + iv.End.UTC().Format(timedLayout)
}

// Encode builds the deep-link for ev over iv. details and location are only
// present when non-blank. An empty base uses DefaultBaseURL.
func Encode(base string, ev model.NormalizedEvent, iv model.CalendarInterval) (string, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	// Parameters are appended in a fixed order instead of via url.Values,
	// whose Encode sorts keys.
	params := []struct{ key, value string }{
		{"action", "TEMPLATE"},
		{"text", ev.Title},
		{"dates", FormatDates(iv)},
	}
	if strings.TrimSpace(ev.Description) != "" {
		params = append(params, struct{ key, value string }{"details", ev.Description})
	}
	if strings.TrimSpace(ev.Location) != "" {
		params = append(params, struct{ key, value string }{"location", ev.Location})
	}

	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, p := range params {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	u.RawQuery = b.String()

	return u.String(), nil
}
