// internal/form/dispatcher.go
//
// Forms subsystem: delivery actions.
//
// Context
//   A FormDef lists the actions that deliver an accepted lead.  Dispatcher is
//   the Sender that runs them: store (SQL insert), webhook (JSON POST), and
//   email (SMTP notification).  Delivery is all-or-nothing.  Store rows are
//   written inside one transaction that commits only after every webhook and
//   e-mail succeeded, so a failed submission leaves no stored lead behind.
//
// Notes
//   •  Any action error fails the whole submission.  It is logged, counted,
//      and returned so the session can keep the user's draft.
//   •  Actions run in definition order, except that store rows are written
//      first so database problems surface before anyone is notified.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/adept-leads/internal/logger"
	"github.com/yanizio/adept-leads/internal/message"
	"github.com/yanizio/adept-leads/internal/metrics"
)

// Dispatcher delivers leads through the actions of their form.  Fields may be
// nil when no registered form uses the matching action type.
type Dispatcher struct {
	DB       *sqlx.DB
	Mailer   message.Mailer
	Webhooks *message.WebhookClient
}

var _ Sender = (*Dispatcher)(nil)

// Send runs every action of the definition the lead was validated against.
// Leads built outside a Session fall back to the registry.
func (d *Dispatcher) Send(ctx context.Context, lead Lead) (err error) {
	fd := lead.Def
	if fd == nil {
		var ok bool
		if fd, ok = GetFormDef(lead.FormID); !ok {
			return fmt.Errorf("dispatch: unknown form %q", lead.FormID)
		}
	}

	var tx *sqlx.Tx
	defer func() {
		if tx != nil && err != nil {
			_ = tx.Rollback()
		}
	}()

	// Store first, uncommitted.
	for _, ac := range fd.Actions {
		if ac.Type != "store" {
			continue
		}
		if tx == nil {
			if d.DB == nil {
				return d.fail(ctx, fd, ac.Type, errors.New("no database configured"))
			}
			if tx, err = d.DB.BeginTxx(ctx, nil); err != nil {
				return d.fail(ctx, fd, ac.Type, err)
			}
		}
		if err = runStore(ctx, tx, ac.Params, lead); err != nil {
			return d.fail(ctx, fd, ac.Type, err)
		}
	}

	for _, ac := range fd.Actions {
		switch ac.Type {
		case "store":
			continue
		case "webhook":
			err = d.runWebhook(ctx, ac.Params, lead)
		case "email":
			err = d.runEmail(ctx, fd, ac.Params, lead)
		default:
			err = fmt.Errorf("unsupported action")
		}
		if err != nil {
			return d.fail(ctx, fd, ac.Type, err)
		}
	}

	if tx != nil {
		if err = tx.Commit(); err != nil {
			return d.fail(ctx, fd, "store", err)
		}
	}

	logger.FromContext(ctx).Infow("lead delivered",
		"form", fd.ID, "lead", lead.ID, "actions", len(fd.Actions))
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, fd *FormDef, action string, err error) error {
	metrics.ActionErrorsTotal.WithLabelValues(action).Inc()
	logger.FromContext(ctx).Errorw("form action failed",
		"form", fd.ID, "action", action, "error", err.Error())
	return fmt.Errorf("%s action: %w", action, err)
}

// -----------------------------------------------------------------------------
// Store action
// -----------------------------------------------------------------------------

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func runStore(ctx context.Context, tx *sqlx.Tx, p map[string]any, lead Lead) error {
	table := stringParam(p, "table")
	if table == "" {
		table = "lead"
	}
	if !identRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	data, err := json.Marshal(lead.Values)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(lead.Meta)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+table+` (id, form_id, submitted_at, data, meta) VALUES (?, ?, ?, ?, ?)`,
		lead.ID, lead.FormID, lead.SubmittedAt, data, meta,
	)
	return err
}

// -----------------------------------------------------------------------------
// Webhook action
// -----------------------------------------------------------------------------

func (d *Dispatcher) runWebhook(ctx context.Context, p map[string]any, lead Lead) error {
	url := stringParam(p, "url")
	if url == "" {
		return errors.New("webhook action requires 'url'")
	}

	hook := message.Webhook{
		URL:     url,
		Method:  stringParam(p, "method"),
		Headers: make(map[string]string),
	}
	for k, v := range p {
		if strings.HasPrefix(k, "header.") {
			hook.Headers[strings.TrimPrefix(k, "header.")] = fmt.Sprint(v)
		}
	}

	client := d.Webhooks
	if client == nil {
		client = &message.WebhookClient{}
	}
	return client.Post(ctx, hook, lead)
}

// -----------------------------------------------------------------------------
// Email action
// -----------------------------------------------------------------------------

var leadEmailTpl = template.Must(template.New("lead").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h1>{{.Title}}</h1>
  <table>
  {{- range .Rows}}
    <tr><td><strong>{{.Label}}</strong></td><td>{{.Value}}</td></tr>
  {{- end}}
  </table>
  <p style="color: #888; font-size: 12px;">Lead {{.ID}} received {{.When}}.</p>
</body>
</html>`))

type emailRow struct{ Label, Value string }

func (d *Dispatcher) runEmail(ctx context.Context, fd *FormDef, p map[string]any, lead Lead) error {
	if d.Mailer == nil {
		return errors.New("no mailer configured")
	}
	to := stringsParam(p, "to")
	if len(to) == 0 {
		return errors.New("'to' parameter missing or empty")
	}

	subject := stringParam(p, "subject")
	if subject == "" {
		subject = "New inquiry: " + fd.Title
	}

	rows := make([]emailRow, 0, len(fd.Fields))
	for _, f := range fd.Fields {
		if v := lead.Values[f.Name]; v != "" {
			rows = append(rows, emailRow{f.Label, v})
		}
	}

	var body bytes.Buffer
	err := leadEmailTpl.Execute(&body, map[string]any{
		"Title": subject,
		"Rows":  rows,
		"ID":    lead.ID,
		"When":  lead.SubmittedAt.Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		return err
	}

	return d.Mailer.SendEmail(ctx, message.Email{
		To:      to,
		ReplyTo: lead.Values["email"],
		Subject: subject,
		HTML:    body.String(),
	})
}

// -----------------------------------------------------------------------------
// Param helpers
// -----------------------------------------------------------------------------

func stringParam(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// stringsParam accepts a single string or a list.
func stringsParam(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
