// evictor.go houses the eviction loop for Cache.  Every tick it scans the
// map and removes:
//
//   - sessions idle longer than idleTTL
//   - least-recently-used sessions when map size exceeds maxEntries
//
// A session is retired under its own lock before it leaves the map, so one
// with a submission in flight, or one that just started, is never evicted.
package session

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/yanizio/adept-leads/internal/metrics"
)

func (c *Cache) evictLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case now := <-c.evictTicker.C:
			c.sweep(now)
		}
	}
}

// sweep runs one idle pass and one LRU pass.  It returns the number of
// sessions evicted.
func (c *Cache) sweep(now time.Time) int {
	var (
		count   int
		evicted int
	)

	// Idle pass.
	c.m.Range(func(key, value any) bool {
		count++
		ent := value.(*entry)
		idle := time.Duration(now.UnixNano() - atomic.LoadInt64(&ent.lastSeen))
		if idle > c.idleTTL && c.evict(key, ent) {
			count--
			evicted++
		}
		return true
	})

	// LRU pass.
	if c.maxEntries > 0 && count > c.maxEntries {
		type kv struct {
			key string
			at  int64
		}
		var all []kv
		c.m.Range(func(key, value any) bool {
			ent := value.(*entry)
			all = append(all, kv{key: key.(string), at: atomic.LoadInt64(&ent.lastSeen)})
			return true
		})
		sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })

		over := len(all) - c.maxEntries
		for i := 0; i < len(all) && over > 0; i++ {
			v, ok := c.m.Load(all[i].key)
			if !ok || !c.evict(all[i].key, v.(*entry)) {
				continue
			}
			over--
			evicted++
		}
	}

	if evicted > 0 {
		c.log.Debugw("form sessions evicted", "count", evicted)
	}
	return evicted
}

// evict retires ent and removes it from the map.  It reports false when the
// session is busy or the entry was already replaced.
func (c *Cache) evict(key any, ent *entry) bool {
	if !ent.sess.Retire() {
		return false
	}
	if !c.m.CompareAndDelete(key, ent) {
		return false
	}
	metrics.SessionEvictTotal.Inc()
	metrics.ActiveSessions.Dec()
	return true
}
