package model

import "time"

// RawEventFields is the untrusted record produced by the extraction
// collaborator. Nothing here has been validated yet.
type RawEventFields struct {
	Title string `json:"title" mapstructure:"title"`
	// Date is a calendar date in YYYY-MM-DD form.
	Date string `json:"date" mapstructure:"date"`

	// Time is the local start time (HH:MM, 24-hour). nil means all day.
	Time *string `json:"time" mapstructure:"time"`
	// EndTime is the local end time. nil means "not yet determined".
	EndTime *string `json:"endTime" mapstructure:"endTime"`

	Description string `json:"description" mapstructure:"description"`
	Location    string `json:"location" mapstructure:"location"`

	// Brief is set by the collaborator for short-form events (calls, syncs,
	// chats) so the caller can pick the short default duration.
	Brief bool `json:"brief,omitempty" mapstructure:"brief"`
}

// NormalizedEvent has the same shape as RawEventFields, with Title and Date
// non-empty and Time/EndTime either both nil or both set.
//
// A timed event with a nil EndTime is "incomplete": it only exists between
// validation and end-time resolution, or after an edit clears the end.
type NormalizedEvent struct {
	Title string  `json:"title"`
	Date  string  `json:"date"`
	Time  *string `json:"time"`
	// EndTime may be on the following calendar date when it is earlier than Time.
	EndTime *string `json:"endTime"`

	Description string `json:"description"`
	Location    string `json:"location"`
}

// AllDay reports whether the event has no time-of-day.
func (e NormalizedEvent) AllDay() bool {
	return e.Time == nil
}

// Incomplete reports whether a timed event is still missing its end.
func (e NormalizedEvent) Incomplete() bool {
	return e.Time != nil && e.EndTime == nil
}

// CalendarInterval is a resolved [Start, End) span. End is always strictly
// after Start.
type CalendarInterval struct {
	// Start / End are UTC instants.
	Start time.Time
	End   time.Time

	AllDay bool

	// StartDay / EndDay are the civil dates (midnight UTC, location-free) of
	// an all-day span. EndDay is the day after the event date. Zero for timed
	// intervals.
	StartDay time.Time
	EndDay   time.Time
}

// Duration returns the length of the interval.
func (iv CalendarInterval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Ptr returns a pointer to a copy of s. Handy for the nullable clock fields.
func Ptr(s string) *string {
	return &s
}

// Deref returns *s, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
