// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  cmd/web calls Mount, which
// runs every component's Init and Migrations once and then copies its
// Routes() onto the root router.

package component

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/adept-leads/internal/config"
	"github.com/yanizio/adept-leads/internal/database"
	"github.com/yanizio/adept-leads/internal/session"
)

// Deps exposes process-wide resources to Components during Init.  DB is nil
// when the store action is disabled.
type Deps struct {
	DB       *sqlx.DB
	Config   *config.Config
	Sessions *session.Cache
	Log      *zap.SugaredLogger
}

// Initializer is optional.  If a Component implements it, Mount calls
// Init(deps) once, before Migrations and before mounting routes.
type Initializer interface {
	Init(Deps) error
}

// Component contract.
//
// Migrations() may return nil if the component has no schema changes.
// Routes() should mount BOTH page and API endpoints, e.g:
//
//	r := chi.NewRouter()
//	r.Get("/contact", getContact)
//	r.Route("/api", func(api chi.Router) { ... })
//	return r
type Component interface {
	Name() string
	Routes() chi.Router
	Migrations() []string
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount initialises every registered component and mounts its routes on r.
// Migrations run only when deps.DB is set.
func Mount(ctx context.Context, r chi.Router, deps Deps) error {
	if deps.Log == nil {
		deps.Log = zap.S()
	}
	for _, c := range All() {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(deps); err != nil {
				return fmt.Errorf("component %s init: %w", c.Name(), err)
			}
		}
		if deps.DB != nil {
			if err := database.Migrate(ctx, deps.DB, c.Migrations()); err != nil {
				return fmt.Errorf("component %s: %w", c.Name(), err)
			}
		}
		// Routes are copied onto r one by one; several components cannot
		// all Mount at "/".
		n := 0
		err := chi.Walk(c.Routes(), func(method, route string, h http.Handler, mws ...func(http.Handler) http.Handler) error {
			r.With(mws...).Method(method, route, h)
			n++
			return nil
		})
		if err != nil {
			return fmt.Errorf("component %s routes: %w", c.Name(), err)
		}
		deps.Log.Infow("component mounted", "component", c.Name(), "routes", n)
	}
	return nil
}
