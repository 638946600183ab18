// internal/form/session.go
//
// Forms subsystem: per-instance draft and submission state machine.
//
// Context
//   A Session is the server-side twin of one rendered form.  It owns the
//   draft, the definition it validates against, and a small explicit state
//   record.  Submit walks
//
//      Idle → Validating → Invalid → Idle
//                        → Submitting → Submitted → Idle
//                                     → Failed    → Idle
//
//   The Submitting state is the mutual-exclusion guard: while a delivery is
//   in flight every further Submit, Set, or Fill returns ErrInFlight and
//   fires nothing.
//
// Workflow
//   •  Validation failures return *ValidationError and never reach the Sender.
//   •  The Sender is called once, outside the lock, with a snapshot of the
//      trimmed draft.  It gets a context that ignores caller cancellation,
//      since an in-flight submission always runs to completion or failure.
//   •  Success clears the draft.  Failure keeps it and records FailureNotice.
//      A panicking Sender counts as a failure.
//   •  A retired Session (evicted from its cache) accepts nothing further.
//   •  Nothing is retried here.  The user resubmits.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/adept-leads/internal/logger"
	"github.com/yanizio/adept-leads/internal/metrics"
)

// FailureNotice is the single, non-field message shown after a delivery
// failure.
const FailureNotice = "We couldn't send your message.  Please try again later."

var (
	// ErrInFlight is returned while a previous submission is still running.
	ErrInFlight = errors.New("form: submission already in flight")

	// ErrUnknownField is returned when a value targets a field the definition
	// does not declare.
	ErrUnknownField = errors.New("form: unknown field")

	// ErrRetired is returned by a Session that has been retired.  Callers
	// fetch a fresh Session for the same instance and try again.
	ErrRetired = errors.New("form: session retired")
)

// SubmissionError reports a failed delivery.  The draft is preserved and the
// user may resubmit.
type SubmissionError struct {
	Notice string
	Err    error
}

func (e *SubmissionError) Error() string { return "form submission failed: " + e.Err.Error() }
func (e *SubmissionError) Unwrap() error { return e.Err }

// IsSubmissionError reports whether err came from a failed delivery.
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// -----------------------------------------------------------------------------
// State record
// -----------------------------------------------------------------------------

// State is the current phase of a Session.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of the most recent Submit.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeInvalid
	OutcomeSubmitted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Snapshot is a copy of a Session's state record.
type Snapshot struct {
	State   State
	Outcome Outcome
	Draft   Draft
	Errors  ValidationResult
	Notice  string
}

// Submitting reports whether a delivery is in flight.
func (s Snapshot) Submitting() bool { return s.State == StateSubmitting }

// -----------------------------------------------------------------------------
// Lead and Sender
// -----------------------------------------------------------------------------

// Meta carries best-effort request metadata attached to a lead.
type Meta struct {
	IP         string `json:"ip,omitempty"`
	CountryISO string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	Device     string `json:"device,omitempty"`
	Language   string `json:"language,omitempty"`
}

type metaKey struct{}

// WithMeta returns a context carrying m for the next Submit.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// MetaFromContext returns the Meta stored by WithMeta, or the zero value.
func MetaFromContext(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// Lead is the validated payload handed to a Sender.  Def is the definition
// the values were validated against.
type Lead struct {
	ID          string    `json:"id"`
	FormID      string    `json:"form"`
	Values      Draft     `json:"fields"`
	SubmittedAt time.Time `json:"submittedAt"`
	Meta        Meta      `json:"meta"`
	Def         *FormDef  `json:"-"`
}

// Sender delivers a lead.  Any non-nil error is a failed submission.
type Sender interface {
	Send(ctx context.Context, lead Lead) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, lead Lead) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, lead Lead) error { return f(ctx, lead) }

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// Session is safe for concurrent use.  Zero value is invalid; use NewSession.
type Session struct {
	def    *FormDef
	sender Sender

	mu      sync.Mutex
	state   State
	outcome Outcome
	draft   Draft
	errs    ValidationResult
	notice  string
	retired bool
}

// NewSession returns an idle Session with an empty draft.
func NewSession(def *FormDef, sender Sender) *Session {
	return &Session{
		def:    def,
		sender: sender,
		draft:  make(Draft),
	}
}

// Def returns the definition the session validates against.
func (s *Session) Def() *FormDef { return s.def }

// Set replaces one draft value.
func (s *Session) Set(field, value string) error {
	return s.Fill(map[string]string{field: value})
}

// Fill replaces several draft values.  Either all are applied or none.
func (s *Session) Fill(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardLocked(); err != nil {
		return err
	}
	return s.fillLocked(values)
}

// Submit validates the whole draft and, when it passes, delivers it.
//
// It returns nil on success, *ValidationError when any field fails,
// *SubmissionError when the Sender fails, or ErrInFlight when another
// submission is running.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	lead, err := s.beginLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.deliver(ctx, lead)
}

// SubmitValues fills the draft and submits it as one step, so concurrent
// posts for the same form instance cannot interleave their values.
func (s *Session) SubmitValues(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	if err := s.guardLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.fillLocked(values); err != nil {
		s.mu.Unlock()
		return err
	}
	lead, err := s.beginLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.deliver(ctx, lead)
}

// Retire marks the session as no longer usable, unless a delivery is in
// flight.  It reports whether the session is now retired.
func (s *Session) Retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return false
	}
	s.retired = true
	return true
}

// Retired reports whether Retire succeeded earlier.
func (s *Session) Retired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retired
}

// Snapshot returns a copy of the current state record.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:   s.state,
		Outcome: s.outcome,
		Draft:   s.draft.Clone(),
		Notice:  s.notice,
	}
	if s.errs != nil {
		snap.Errors = make(ValidationResult, len(s.errs))
		for k, v := range s.errs {
			snap.Errors[k] = v
		}
	}
	return snap
}

// -----------------------------------------------------------------------------
// internals
// -----------------------------------------------------------------------------

func (s *Session) guardLocked() error {
	switch {
	case s.retired:
		return ErrRetired
	case s.state == StateSubmitting:
		return ErrInFlight
	}
	return nil
}

func (s *Session) fillLocked(values map[string]string) error {
	for name := range values {
		if _, ok := s.def.Field(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}
	for name, v := range values {
		s.draft[name] = v
	}
	return nil
}

// beginLocked runs validation and, on success, flips the guard and builds the
// lead.  Caller holds s.mu.
func (s *Session) beginLocked(ctx context.Context) (Lead, error) {
	if err := s.guardLocked(); err != nil {
		return Lead{}, err
	}

	s.state = StateValidating
	clean, res := Validate(s.def, s.draft)
	if !res.Valid() {
		s.state = StateIdle
		s.outcome = OutcomeInvalid
		s.errs = res
		s.notice = ""
		for field := range res {
			metrics.ValidationFailuresTotal.WithLabelValues(s.def.ID, field).Inc()
		}
		metrics.SubmissionsTotal.WithLabelValues(s.def.ID, OutcomeInvalid.String()).Inc()

		out := make(ValidationResult, len(res))
		for k, v := range res {
			out[k] = v
		}
		return Lead{}, &ValidationError{Result: out}
	}

	s.errs = nil
	s.notice = ""
	s.state = StateSubmitting
	metrics.SubmissionsInFlight.Inc()

	return Lead{
		ID:          uuid.NewString(),
		FormID:      s.def.ID,
		Values:      clean,
		SubmittedAt: time.Now().UTC(),
		Meta:        MetaFromContext(ctx),
		Def:         s.def,
	}, nil
}

// deliver calls the Sender without holding the lock and records the result.
func (s *Session) deliver(ctx context.Context, lead Lead) error {
	start := time.Now()
	err := s.send(context.WithoutCancel(ctx), lead)
	metrics.DeliveryDuration.WithLabelValues(s.def.ID).Observe(time.Since(start).Seconds())
	metrics.SubmissionsInFlight.Dec()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle

	if err != nil {
		s.outcome = OutcomeFailed
		s.notice = FailureNotice
		metrics.SubmissionsTotal.WithLabelValues(s.def.ID, OutcomeFailed.String()).Inc()
		return &SubmissionError{Notice: FailureNotice, Err: err}
	}

	s.outcome = OutcomeSubmitted
	s.draft = make(Draft)
	metrics.SubmissionsTotal.WithLabelValues(s.def.ID, OutcomeSubmitted.String()).Inc()
	return nil
}

// send calls the Sender and turns a panic into an error, so the session
// always leaves StateSubmitting.
func (s *Session) send(ctx context.Context, lead Lead) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Errorw("form sender panic",
				"form", lead.FormID, "lead", lead.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return s.sender.Send(ctx, lead)
}
