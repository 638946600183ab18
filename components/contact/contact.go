// components/contact/contact.go
//
// Contact component: the lead inquiry page and its JSON twin.
//
// Context
// -------
//   - GET  /contact               renders the form with a fresh CSRF token.
//   - POST /contact               HTML post; re-renders with errors or notice.
//   - GET  /api/contact/options   enumerations, channels, and a fresh token.
//   - POST /api/contact           JSON post; same status codes as HTML.
//
// Every post passes through the same pipeline: envelope check (CSRF token
// and render timing), bot rejection, session lookup by form instance, then
// Session.SubmitValues.  Status codes:
//
//	200 submitted · 400 malformed · 409 in flight · 422 invalid · 502 failed
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.
//------------------------------------------------------------------------------

package contact

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/adept-leads/internal/component"
	"github.com/yanizio/adept-leads/internal/config"
	"github.com/yanizio/adept-leads/internal/form"
	"github.com/yanizio/adept-leads/internal/logger"
	"github.com/yanizio/adept-leads/internal/metrics"
	"github.com/yanizio/adept-leads/internal/requestinfo"
	"github.com/yanizio/adept-leads/internal/session"
)

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

// User-facing notices.
const (
	SuccessNotice  = "Thank you!  We'll get back to you within 24 hours."
	InFlightNotice = "Your message is already being sent.  Please wait."
	BotNotice      = "Automated submissions are not accepted."
	ErrorNotice    = "Something went wrong.  Please try again later."
)

// maxBody caps request bodies for both HTML and JSON posts.
const maxBody = 64 << 10

// DefaultChannels is shown when config lists no contact channels.
var DefaultChannels = []config.Channel{
	{Title: "Email Us", Content: "hello@5dsolutions.com",
		Description: "Send us an email and we'll respond within 24 hours", Action: "mailto:hello@5dsolutions.com"},
	{Title: "Call Us", Content: "+1 (234) 567-8900",
		Description: "Mon-Fri from 8am to 6pm EST", Action: "tel:+12345678900"},
	{Title: "Visit Us", Content: "New York, NY",
		Description: "Come say hello at our office headquarters"},
	{Title: "Business Hours", Content: "Mon - Fri: 8am - 6pm",
		Description: "Saturday & Sunday: Closed"},
}

// Component serves the contact routes.  Init must run before Routes serve
// traffic.
type Component struct {
	formID   string
	table    string
	sessions *session.Cache
	cfg      *config.Config
	log      *zap.SugaredLogger
}

// New returns a Component bound to formID.
func New(formID string) *Component { return &Component{formID: formID, table: "lead"} }

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "contact" }

// Migrations creates the table used by the store action.  The name comes
// from config, which only admits plain identifiers.
func (c *Component) Migrations() []string {
	return []string{`CREATE TABLE IF NOT EXISTS ` + c.table + ` (
	id           CHAR(36)     NOT NULL PRIMARY KEY,
	form_id      VARCHAR(128) NOT NULL,
	submitted_at DATETIME(6)  NOT NULL,
	data         JSON         NOT NULL,
	meta         JSON         NULL,
	KEY idx_form_submitted (form_id, submitted_at)
)`}
}

// Init captures the shared session cache and configuration.
func (c *Component) Init(deps component.Deps) error {
	if deps.Sessions == nil {
		return errors.New("contact: session cache is required")
	}
	c.sessions = deps.Sessions
	c.cfg = deps.Config
	if c.cfg != nil && c.cfg.Delivery.Store.Table != "" {
		c.table = c.cfg.Delivery.Store.Table
	}
	c.log = deps.Log
	if c.log == nil {
		c.log = zap.S()
	}
	return nil
}

// Routes builds and returns the router mounted at “/”.
func (c *Component) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/contact", c.handlePageGET)
	r.Post("/contact", c.handlePagePOST)
	r.Route("/api/contact", func(api chi.Router) {
		api.Get("/options", c.handleOptions)
		api.Post("/", c.handleSubmitJSON)
	})
	return r
}

// Register component at program start.
func init() { component.Register(New(form.ContactFormID)) }

/*──────────────────────────── Shared pipeline ─────────────────────────────*/

// def returns the live definition, which Watch may have replaced.
func (c *Component) def() (*form.FormDef, bool) { return form.GetFormDef(c.formID) }

// channels prefers the most recently loaded config.
func (c *Component) channels() []config.Channel {
	cfg := config.Get()
	if cfg == nil {
		cfg = c.cfg
	}
	if cfg != nil && len(cfg.Contact.Channels) > 0 {
		return cfg.Contact.Channels
	}
	return DefaultChannels
}

// result is the outcome of one post, shared by the HTML and JSON handlers.
type result struct {
	status int
	errs   form.ValidationResult
	notice string
	draft  form.Draft // values to re-render
	busy   bool
	token  string // reused on re-render so the instance survives
}

// submit runs the post pipeline for one request.
func (c *Component) submit(ctx context.Context, token string, values map[string]string) result {
	instance, envErrs := form.CheckEnvelope(token)
	if !envErrs.Valid() {
		metrics.RejectedRequestsTotal.WithLabelValues("envelope").Inc()
		return result{status: http.StatusUnprocessableEntity, errs: envErrs, draft: values}
	}

	ri := requestinfo.FromContext(ctx)
	if ri != nil && ri.UA.IsBot {
		metrics.RejectedRequestsTotal.WithLabelValues("bot").Inc()
		return result{
			status: http.StatusUnprocessableEntity,
			errs:   form.ValidationResult{form.FormLevel: BotNotice},
			draft:  values,
		}
	}

	ctx = form.WithMeta(ctx, ri.Meta())
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("form", c.formID, "instance", instance))

	sess, err := c.sessions.SubmitValues(ctx, c.formID, instance, values)
	if sess == nil {
		c.log.Errorw("session lookup failed", "form", c.formID, "err", err)
		return result{status: http.StatusInternalServerError, notice: ErrorNotice, draft: values, token: token}
	}
	res := c.outcome(ctx, sess, values, err)
	if res.status != http.StatusOK {
		res.token = token
	}
	return res
}

// outcome maps a SubmitValues error onto a response.
func (c *Component) outcome(ctx context.Context, sess *form.Session, values map[string]string, err error) result {
	var ve *form.ValidationError
	var se *form.SubmissionError
	switch {
	case err == nil:
		return result{status: http.StatusOK, notice: SuccessNotice}
	case errors.As(err, &ve):
		return result{status: http.StatusUnprocessableEntity, errs: ve.Result, draft: values}
	case errors.As(err, &se):
		logger.FromContext(ctx).Warnw("lead delivery failed", "err", se.Err)
		return result{status: http.StatusBadGateway, notice: se.Notice, draft: sess.Snapshot().Draft}
	case errors.Is(err, form.ErrInFlight):
		return result{status: http.StatusConflict, notice: InFlightNotice, draft: values, busy: true}
	case errors.Is(err, form.ErrUnknownField):
		return result{status: http.StatusBadRequest, notice: err.Error(), draft: values}
	default:
		c.log.Errorw("lead submit failed", "form", c.formID, "err", err)
		return result{status: http.StatusInternalServerError, notice: ErrorNotice, draft: values}
	}
}
