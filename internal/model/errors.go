package model

import "errors"

// Error kinds surfaced by the event pipeline. Operations wrap these with
// context; match them with errors.Is.
var (
	// ErrMissingRequiredField: empty title or date.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrExtractionFailed: the collaborator failed, replied with something
	// unparseable, or replied without a title/date.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrInvalidInterval: the computed end is not after the start.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrInvalidField: a date or clock value that does not parse.
	ErrInvalidField = errors.New("invalid field value")
	// ErrUnknownField: an edit names a field the event does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrIllegalTransition: an operation was invoked in a state that does not
	// allow it. This is a caller bug, not a user-facing condition.
	ErrIllegalTransition = errors.New("illegal workflow transition")
	// ErrBusy: an extraction is already in flight.
	ErrBusy = errors.New("extraction in progress")
	// ErrStaleResponse: an extraction finished after its session was reset
	// or torn down; the response was dropped.
	ErrStaleResponse = errors.New("stale extraction response")
)
