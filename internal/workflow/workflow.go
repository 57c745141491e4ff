// Package workflow owns a single add-to-calendar session: the draft event,
// the Input -> Preview -> Confirmed state machine, and the one extraction
// call that may be in flight.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"addtocal/internal/gcal"
	appLog "addtocal/internal/log"
	"addtocal/internal/model"
	"addtocal/internal/normalize"
	"addtocal/internal/timecalc"
)

// Extractor turns free text into raw event fields. ref anchors relative
// dates ("next Tuesday"). Implementations may fail for any reason; the
// controller treats every failure as model.ErrExtractionFailed.
type Extractor interface {
	Extract(ctx context.Context, text string, ref time.Time) (model.RawEventFields, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, text string, ref time.Time) (model.RawEventFields, error)

func (f ExtractorFunc) Extract(ctx context.Context, text string, ref time.Time) (model.RawEventFields, error) {
	return f(ctx, text, ref)
}

// State is the workflow position.
type State int

const (
	StateInput State = iota
	StatePreview
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateInput:
		return "input"
	case StatePreview:
		return "preview"
	case StateConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Missing-field errors. Each wraps model.ErrMissingRequiredField.
var (
	// ErrEmptyText is returned by SubmitText for blank input.
	ErrEmptyText = fmt.Errorf("%w: text", model.ErrMissingRequiredField)
	// ErrMissingTitle / ErrMissingDate are returned by Confirm.
	ErrMissingTitle = fmt.Errorf("%w: title", model.ErrMissingRequiredField)
	ErrMissingDate  = fmt.Errorf("%w: date", model.ErrMissingRequiredField)
)

// User-facing messages.
const (
	msgEmptyText        = "Please paste some text to create an event."
	msgNotUnderstood    = "Couldn't understand that. Please provide at least a title and a date."
	msgExtractionFailed = "An error occurred while analysing the text. Please try again."
	msgMissingDate      = "Date is a mandatory field."
	msgMissingTitle     = "Title is a mandatory field."
	msgInvalidInterval  = "The end time must be after the start time."
	msgInvalidField     = "That value is not a valid date or time."
	msgBusy             = "Still analysing your text. Please wait."
	msgUnavailable      = "That action isn't available right now."
	msgGeneric          = "Something went wrong. Please try again."
)

// Message maps an error returned by the controller to text suitable for the
// user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyText):
		return msgEmptyText
	case errors.Is(err, ErrMissingTitle):
		return msgMissingTitle
	case errors.Is(err, model.ErrExtractionFailed) && errors.Is(err, model.ErrMissingRequiredField),
		errors.Is(err, model.ErrExtractionFailed) && errors.Is(err, model.ErrInvalidField):
		return msgNotUnderstood
	case errors.Is(err, model.ErrExtractionFailed):
		return msgExtractionFailed
	case errors.Is(err, model.ErrMissingRequiredField):
		return msgMissingDate
	case errors.Is(err, model.ErrInvalidInterval):
		return msgInvalidInterval
	case errors.Is(err, model.ErrInvalidField):
		return msgInvalidField
	case errors.Is(err, model.ErrBusy):
		return msgBusy
	case errors.Is(err, model.ErrIllegalTransition), errors.Is(err, model.ErrUnknownField),
		errors.Is(err, model.ErrStaleResponse):
		return msgUnavailable
	default:
		return msgGeneric
	}
}

// Options configures a Controller.
type Options struct {
	Extractor Extractor
	// Location is the user's timezone. nil means time.Local.
	Location *time.Location
	// StandardMinutes / ShortMinutes are the default durations for timed
	// events extracted without an end.
	StandardMinutes int
	ShortMinutes    int
	// CalendarBaseURL is passed to gcal.Encode; empty uses the default.
	CalendarBaseURL string
	// Now is the reference clock for extraction. nil means time.Now.
	Now func() time.Time
}

// phase is the tagged workflow state. Only preview and confirmed carry a
// draft.
type phase interface {
	state() State
}

type inputPhase struct{}

type previewPhase struct {
	draft model.NormalizedEvent
}

type confirmedPhase struct {
	draft    model.NormalizedEvent
	interval model.CalendarInterval
	link     string
}

func (inputPhase) state() State     { return StateInput }
func (previewPhase) state() State   { return StatePreview }
func (confirmedPhase) state() State { return StateConfirmed }

// View is an immutable snapshot of a session.
type View struct {
	State State                  `json:"state"`
	Draft *model.NormalizedEvent `json:"draft,omitempty"`
	Link  string                 `json:"link,omitempty"`
	Error string                 `json:"error,omitempty"`
	Busy  bool                   `json:"busy"`
}

// Controller is a single session. It is safe for concurrent use; the lock is
// not held while extraction runs.
type Controller struct {
	opts Options

	mu         sync.Mutex
	phase      phase
	errMsg     string
	pending    bool
	generation uint64
}

// New creates a controller in the Input state.
func New(opts Options) *Controller {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		opts:  opts,
		phase: inputPhase{},
	}
}

// State returns the current workflow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase.state()
}

// Snapshot returns the current view of the session.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State: c.phase.state(),
		Error: c.errMsg,
		Busy:  c.pending,
	}
	switch p := c.phase.(type) {
	case previewPhase:
		d := cloneEvent(p.draft)
		v.Draft = &d
	case confirmedPhase:
		d := cloneEvent(p.draft)
		v.Draft = &d
		v.Link = p.link
	}
	return v
}

// Confirmed returns the confirmed event and its interval.
func (c *Controller) Confirmed() (model.NormalizedEvent, model.CalendarInterval, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.phase.(confirmedPhase)
	if !ok {
		return model.NormalizedEvent{}, model.CalendarInterval{}, false
	}
	return cloneEvent(p.draft), p.interval, true
}

// cloneEvent copies ev including its clock pointers.
func cloneEvent(ev model.NormalizedEvent) model.NormalizedEvent {
	if ev.Time != nil {
		ev.Time = model.Ptr(*ev.Time)
	}
	if ev.EndTime != nil {
		ev.EndTime = model.Ptr(*ev.EndTime)
	}
	return ev
}

// SubmitText runs extraction on text. Legal only in Input. On success the
// validated, end-resolved event becomes the draft and the session moves to
// Preview; on failure it stays in Input with an error message.
//
// If the session is reset or discarded while extraction runs, the response
// is dropped and model.ErrStaleResponse is returned.
func (c *Controller) SubmitText(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return model.ErrBusy
	}
	if _, ok := c.phase.(inputPhase); !ok {
		err := c.illegal("submit")
		c.mu.Unlock()
		return err
	}
	if strings.TrimSpace(text) == "" {
		c.errMsg = msgEmptyText
		c.mu.Unlock()
		return ErrEmptyText
	}
	c.pending = true
	c.errMsg = ""
	gen := c.generation
	ref := c.opts.Now().In(c.opts.Location)
	c.mu.Unlock()

	raw, err := c.opts.Extractor.Extract(ctx, text, ref)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		appLog.Debug("dropping stale extraction response", "generation", gen, "current", c.generation)
		return fmt.Errorf("%w: generation %d, current %d", model.ErrStaleResponse, gen, c.generation)
	}
	c.pending = false

	if err != nil {
		if !errors.Is(err, model.ErrExtractionFailed) {
			err = fmt.Errorf("%w: %w", model.ErrExtractionFailed, err)
		}
		c.errMsg = msgExtractionFailed
		return err
	}

	ev, err := normalize.Validate(raw)
	if err != nil {
		c.errMsg = msgNotUnderstood
		return fmt.Errorf("%w: %w", model.ErrExtractionFailed, err)
	}

	minutes := c.opts.StandardMinutes
	if raw.Brief {
		minutes = c.opts.ShortMinutes
	}
	ev, err = normalize.ResolveEndTime(ev, minutes)
	if err != nil {
		c.errMsg = msgNotUnderstood
		return fmt.Errorf("%w: %w", model.ErrExtractionFailed, err)
	}

	c.phase = previewPhase{draft: ev}
	appLog.Info("event extracted", "title", ev.Title, "date", ev.Date,
		"time", model.Deref(ev.Time), "end_time", model.Deref(ev.EndTime), "brief", raw.Brief)
	return nil
}

// EditField replaces one draft field. Legal only in Preview.
func (c *Controller) EditField(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending {
		return model.ErrBusy
	}
	p, ok := c.phase.(previewPhase)
	if !ok {
		return c.illegal("edit field")
	}

	ev, err := normalize.ApplyEdit(p.draft, field, value)
	if err != nil {
		if errors.Is(err, model.ErrInvalidField) {
			c.errMsg = msgInvalidField
		}
		return err
	}
	c.phase = previewPhase{draft: ev}
	c.errMsg = ""
	return nil
}

// Confirm computes the interval and deep-link for the draft. Legal only in
// Preview. On failure the session stays in Preview with an error message.
func (c *Controller) Confirm() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending {
		return model.ErrBusy
	}
	p, ok := c.phase.(previewPhase)
	if !ok {
		return c.illegal("confirm")
	}
	ev := p.draft

	if strings.TrimSpace(ev.Title) == "" {
		c.errMsg = msgMissingTitle
		return ErrMissingTitle
	}
	if strings.TrimSpace(ev.Date) == "" {
		c.errMsg = msgMissingDate
		return ErrMissingDate
	}

	if ev.Incomplete() {
		// An edit cleared the end; fall back to the standard duration.
		appLog.Info("no end time at confirm; using default duration", "minutes", c.opts.StandardMinutes)
		resolved, err := normalize.ResolveEndTime(ev, c.opts.StandardMinutes)
		if err != nil {
			c.errMsg = Message(err)
			return err
		}
		ev = resolved
	}

	var (
		iv  model.CalendarInterval
		err error
	)
	if ev.AllDay() {
		iv, err = timecalc.ComputeAllDayInterval(ev.Date, c.opts.Location)
	} else {
		iv, err = timecalc.ComputeTimedInterval(ev.Date, *ev.Time, *ev.EndTime, c.opts.Location)
	}
	if err != nil {
		c.errMsg = Message(err)
		return err
	}

	link, err := gcal.Encode(c.opts.CalendarBaseURL, ev, iv)
	if err != nil {
		c.errMsg = msgGeneric
		return err
	}

	c.phase = confirmedPhase{draft: ev, interval: iv, link: link}
	c.errMsg = ""
	appLog.Info("event confirmed", "title", ev.Title, "all_day", iv.AllDay,
		"start", iv.Start.Format(time.RFC3339), "end", iv.End.Format(time.RFC3339),
		"duration", iv.Duration().String())
	return nil
}

// GoBack abandons the draft and returns to Input. Legal only in Preview.
func (c *Controller) GoBack() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.phase.(previewPhase); !ok {
		return c.illegal("go back")
	}
	c.reset()
	return nil
}

// Reopen returns a confirmed event to Preview for further edits.
func (c *Controller) Reopen() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.phase.(confirmedPhase)
	if !ok {
		return c.illegal("reopen")
	}
	c.phase = previewPhase{draft: p.draft}
	c.errMsg = ""
	return nil
}

// StartNew clears the confirmed event and returns to Input.
func (c *Controller) StartNew() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.phase.(confirmedPhase); !ok {
		return c.illegal("start new")
	}
	c.reset()
	return nil
}

// Discard tears the session down. Any extraction still in flight will have
// its response dropped.
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// reset returns to Input and invalidates in-flight extraction. Caller holds mu.
func (c *Controller) reset() {
	c.generation++
	c.pending = false
	c.phase = inputPhase{}
	c.errMsg = ""
}

// illegal reports an out-of-state call. Caller holds mu.
func (c *Controller) illegal(op string) error {
	return fmt.Errorf("%w: %s in state %s", model.ErrIllegalTransition, op, c.phase.state())
}
