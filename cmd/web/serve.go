// cmd/web/serve.go
//
// `web serve`: HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Load configuration (.env → global.yaml → LEADS_ env → vault refs).
//
//  2. Start the daily rotating logger (tees to console in a TTY).
//
//  3. Install the CSRF key and register form definitions.
//
//  4. Open the lead database when a DSN is set; build mailer and webhook
//     client; wrap them in the Dispatcher sender.
//
//  5. Build the session cache (one Session per rendered form instance).
//
//  6. Router: request ID → recoverer → request logger → request info →
//     security headers → /healthz, /metrics, and every component route.
//     ForceHTTPS wraps the whole tree when enabled.
//
//  7. Watch conf/ and the form directories; re-register on change.
//
//  8. Serve until SIGINT/SIGTERM, then shut down gracefully.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/yanizio/adept-leads/internal/component"
	"github.com/yanizio/adept-leads/internal/config"
	"github.com/yanizio/adept-leads/internal/form"
	"github.com/yanizio/adept-leads/internal/logger"
	"github.com/yanizio/adept-leads/internal/message"
	"github.com/yanizio/adept-leads/internal/middleware"
	"github.com/yanizio/adept-leads/internal/requestinfo"
	"github.com/yanizio/adept-leads/internal/server"
	"github.com/yanizio/adept-leads/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	//
	// ── 1.  Configuration ───────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	//
	// ── 2.  Logger ──────────────────────────────────────────────────────
	//
	logOut, err := logger.New(cfg.Paths.Root, runningInTTY(), cfg.Log.Level)
	if err != nil {
		log.Printf("start logger: %v", err)
		return err
	}
	defer logOut.Sync()

	//
	// ── 3.  CSRF key and form definitions ───────────────────────────────
	//
	form.SetSecret(csrfKey(cfg.Security.CSRFKey))
	if err := registerForms(cfg); err != nil {
		return err
	}

	//
	// ── 4.  Delivery ────────────────────────────────────────────────────
	//
	db, err := openDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect lead DB: %w", err)
	}
	if db != nil {
		defer db.Close()
		logOut.Infow("lead DB online", "max_open", cfg.Database.MaxOpen)
	}
	mailer, err := newMailer(cfg)
	if err != nil {
		return err
	}
	dispatcher := &form.Dispatcher{
		DB:       db,
		Mailer:   mailer,
		Webhooks: &message.WebhookClient{},
	}
	if cfg.Delivery.Simulate || !cfg.DeliveryConfigured() {
		logOut.Warnw("no delivery action configured, leads are simulated")
	}

	//
	// ── 5.  Session cache ───────────────────────────────────────────────
	//
	sessions := session.New(sessionFactory(cfg, dispatcher),
		cfg.Sessions.IdleTTL, cfg.Sessions.MaxEntries, cfg.Sessions.EvictInterval, logOut)
	defer sessions.Close()

	if err := requestinfo.InitGeo(cfg.GeoIP.Path); err != nil {
		logOut.Warnw("geoip disabled", "err", err)
	}
	defer requestinfo.CloseGeo()

	//
	// ── 6.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, middleware.RequestLogger(logOut),
		requestinfo.Enrich, middleware.Security)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})

	if err := component.Mount(ctx, r, component.Deps{
		DB:       db,
		Config:   cfg,
		Sessions: sessions,
		Log:      logOut,
	}); err != nil {
		return err
	}

	//
	// ── 7.  Hot reload ──────────────────────────────────────────────────
	//
	go func() {
		err := config.Watch(ctx, nil, func(next *config.Config) {
			if err := registerForms(next); err != nil {
				logOut.Errorw("form reload failed", "err", err)
				return
			}
			logOut.Infow("configuration reloaded")
		})
		if err != nil {
			logOut.Warnw("config watch stopped", "err", err)
		}
	}()

	//
	// ── 8.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP, middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS, r))
	return server.Run(ctx, srv)
}
