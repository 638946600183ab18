package main

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/adept-leads/internal/config"
	"github.com/yanizio/adept-leads/internal/database"
	"github.com/yanizio/adept-leads/internal/form"
	"github.com/yanizio/adept-leads/internal/message"
	"github.com/yanizio/adept-leads/internal/session"
)

// contactActions turns the delivery section into actions of the built-in
// contact definition.
func contactActions(cfg *config.Config) []form.ActionDef {
	d := cfg.Delivery
	var out []form.ActionDef
	if d.Store.Enabled {
		out = append(out, form.ActionDef{Type: "store", Params: map[string]any{"table": d.Store.Table}})
	}
	if d.Webhook.URL != "" {
		p := map[string]any{"url": d.Webhook.URL, "method": d.Webhook.Method}
		for k, v := range d.Webhook.Headers {
			p["header."+k] = v
		}
		out = append(out, form.ActionDef{Type: "webhook", Params: p})
	}
	if len(d.Email.To) > 0 {
		out = append(out, form.ActionDef{Type: "email", Params: map[string]any{
			"to":      append([]string(nil), d.Email.To...),
			"subject": d.Email.Subject,
		}})
	}
	return out
}

// registerForms installs the built-in contact definition and then any YAML
// definitions, which may replace it.
func registerForms(cfg *config.Config) error {
	def := form.ContactDef(form.ContactOptions{
		Services: cfg.Contact.Services,
		Budgets:  cfg.Contact.Budgets,
		Actions:  contactActions(cfg),
	})
	if err := form.Register(def); err != nil {
		return err
	}
	ids, err := form.RegisterForms(cfg.Forms.Dirs)
	if err != nil {
		return fmt.Errorf("form definitions: %w", err)
	}
	zap.S().Infow("forms registered", "builtin", def.ID, "yaml", ids)
	return nil
}

// csrfKey accepts a base64url key and falls back to the raw bytes.
func csrfKey(s string) []byte {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil && len(b) >= 32 {
		return b
	}
	return []byte(s)
}

// newMailer returns nil when no relay is configured.
func newMailer(cfg *config.Config) (message.Mailer, error) {
	if cfg.SMTP.Host == "" {
		return nil, nil
	}
	m, err := message.NewSMTPMailer(message.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// sessionFactory picks the sender per form: definitions without actions,
// or every form when simulation is forced, use the simulated sender.
func sessionFactory(cfg *config.Config, real form.Sender) session.Factory {
	sim := form.Simulated{Delay: cfg.Delivery.SimulateDelay}
	return func(formID string) (*form.Session, error) {
		fd, ok := form.GetFormDef(formID)
		if !ok {
			return nil, session.ErrNotFound
		}
		var sender form.Sender = real
		if cfg.Delivery.Simulate || len(fd.Actions) == 0 || real == nil {
			sender = sim
		}
		return form.NewSession(fd, sender), nil
	}
}

// openDB returns nil when no DSN is configured.
func openDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.DSN == "" {
		return nil, nil
	}
	return database.OpenWithOptions(ctx, cfg.Database.DSN, cfg.Database.MaxOpen, cfg.Database.MaxIdle)
}
