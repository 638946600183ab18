package component

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type stub struct {
	name   string
	path   string
	inited bool
}

func (s *stub) Name() string         { return s.name }
func (s *stub) Migrations() []string { return nil }
func (s *stub) Init(Deps) error      { s.inited = true; return nil }
func (s *stub) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Component", s.name)
			next.ServeHTTP(w, r)
		})
	})
	r.Get(s.path, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	return r
}

func TestMountSeveralComponents(t *testing.T) {
	mu.Lock()
	saved := registry
	registry = map[string]Component{}
	mu.Unlock()
	t.Cleanup(func() { mu.Lock(); registry = saved; mu.Unlock() })

	a := &stub{name: "a", path: "/a"}
	b := &stub{name: "b", path: "/b"}
	Register(b)
	Register(a)

	if got := All(); len(got) != 2 || got[0].Name() != "a" {
		t.Fatalf("All() not sorted: %v", got)
	}

	r := chi.NewRouter()
	if err := Mount(context.Background(), r, Deps{}); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if !a.inited || !b.inited {
		t.Fatal("Init not called")
	}

	for _, p := range []string{"/a", "/b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		if w.Code != http.StatusTeapot {
			t.Fatalf("%s status = %d", p, w.Code)
		}
		if w.Header().Get("X-Component") != p[1:] {
			t.Fatalf("%s middleware lost", p)
		}
	}
}
