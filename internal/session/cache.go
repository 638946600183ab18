// internal/session/cache.go
//
// Form-session cache.
//
// Context
// -------
// Each rendered form carries an instance ID inside its CSRF token.  The
// cache maps (form ID, instance ID) to the *form.Session that owns that
// instance's draft and in-flight guard.  Sessions are created lazily on the
// first post, refreshed on every hit, and evicted by a background loop when
// idle longer than idleTTL or when the map grows past maxEntries.
//
// Notes
// -----
//   - Creation goes through singleflight so two simultaneous first posts for
//     the same instance share one Session, and therefore one guard.
//   - Sessions with a delivery in flight are never evicted.  Eviction retires
//     a session first, and lookups treat retired sessions as missing.
//   - Oxford commas, two spaces after periods.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/adept-leads/internal/form"
	"github.com/yanizio/adept-leads/internal/metrics"
)

// Static defaults.  cmd/web overrides them from config.
const (
	IdleTTL       = 30 * time.Minute
	MaxEntries    = 10000
	EvictInterval = time.Minute
)

// ErrNotFound is returned when the factory does not know the form ID.
var ErrNotFound = errors.New("session: form not found")

// Factory builds a fresh Session for formID.
type Factory func(formID string) (*form.Session, error)

// Cache is safe for concurrent use.  Create with New and stop with Close.
type Cache struct {
	build       Factory
	sfg         singleflight.Group
	m           sync.Map // key → *entry
	idleTTL     time.Duration
	maxEntries  int
	evictTicker *time.Ticker
	stop        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	log         *zap.SugaredLogger
}

type entry struct {
	sess     *form.Session
	lastSeen int64 // UnixNano
}

// New constructs a Cache and starts the background evictor.
func New(build Factory, idleTTL time.Duration, maxEntries int, interval time.Duration, log *zap.SugaredLogger) *Cache {
	if log == nil {
		log = zap.S()
	}
	if interval <= 0 {
		interval = EvictInterval
	}
	c := &Cache{
		build:       build,
		idleTTL:     idleTTL,
		maxEntries:  maxEntries,
		evictTicker: time.NewTicker(interval),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		log:         log,
	}
	go c.evictLoop()
	return c
}

// Get returns the Session for the form instance, creating it on demand.
func (c *Cache) Get(formID, instance string) (*form.Session, error) {
	key := formID + "\x00" + instance
	if s, ok := c.touch(key); ok {
		return s, nil
	}

	v, err, _ := c.sfg.Do(key, func() (any, error) {
		// Double-check after the singleflight barrier.
		if s, ok := c.touch(key); ok {
			return s, nil
		}
		s, err := c.build(formID)
		if err != nil {
			return nil, err
		}
		c.m.Store(key, &entry{sess: s, lastSeen: time.Now().UnixNano()})
		metrics.SessionCreateTotal.Inc()
		metrics.ActiveSessions.Inc()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*form.Session), nil
}

// SubmitValues submits values through the Session of the form instance.  A
// session retired by the evictor between lookup and submit is replaced and
// the submit retried.  The Session used is returned with the result.
func (c *Cache) SubmitValues(ctx context.Context, formID, instance string, values map[string]string) (*form.Session, error) {
	for {
		s, err := c.Get(formID, instance)
		if err != nil {
			return nil, err
		}
		if err = s.SubmitValues(ctx, values); !errors.Is(err, form.ErrRetired) {
			return s, err
		}
	}
}

// Len reports the number of cached sessions.
func (c *Cache) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Close stops the evictor and waits for it to exit.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.evictTicker.Stop()
		close(c.stop)
		<-c.done
	})
}

func (c *Cache) touch(key string) (*form.Session, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		return nil, false
	}
	ent := v.(*entry)
	if ent.sess.Retired() {
		if c.m.CompareAndDelete(key, ent) {
			metrics.SessionEvictTotal.Inc()
			metrics.ActiveSessions.Dec()
		}
		return nil, false
	}
	atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
	return ent.sess, true
}
