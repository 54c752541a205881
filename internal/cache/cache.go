/*
Package cache implements the content-addressed-by-URL package cache:
single-flight fetch coalescing, LRU-style lastUsed accounting, and the
mark-and-sweep "flush unused" phase the render orchestrator runs at the
start of every request.

Concurrency is serialized by a mutex over the entry map plus a per-entry
done channel that waiters park on, the same idiom the teacher's sandbox
pool uses for acquire/release coordination, generalized here to
single-flight outcome sharing instead of resource pooling.
*/
package cache

import (
	"sync"
	"time"
)

// Stats receives the per-render counters the cache mutates. Implemented by
// internal/stats.RequestStats; kept as a narrow interface here so this
// package does not depend on internal/stats.
type Stats interface {
	IncFromCache()
	IncPackageFetches()
}

// Recorder receives cache observability events. Implemented by
// internal/monitoring.Metrics; optional (nil-safe no-op when unset).
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheEviction()
	SetCacheSize(bytes int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit()          {}
func (nopRecorder) RecordCacheMiss()         {}
func (nopRecorder) RecordCacheEviction()     {}
func (nopRecorder) SetCacheSize(bytes int64) {}

// entry is one map slot. At most one entry per URL may be Fetching at a
// time; done is closed exactly once, when the fetch resolves, waking every
// waiter parked on it.
type entry struct {
	mu    sync.Mutex
	state State
	pkg   Package
	err   error
	done  chan struct{}
}

// Cache maps URL to CacheEntry with single-flight fetch coalescing.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	fetcher  Fetcher
	recorder Recorder
}

// New creates a package cache backed by the given fetcher.
func New(fetcher Fetcher) *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		fetcher:  fetcher,
		recorder: nopRecorder{},
	}
}

// WithRecorder attaches a metrics recorder and returns the cache for
// chaining.
func (c *Cache) WithRecorder(r Recorder) *Cache {
	if r != nil {
		c.recorder = r
	}
	return c
}

// GetOrFetch returns the content for url, fetching it if necessary.
// fromCache reports whether the content was served from an already-Ready
// entry without this call triggering or waiting on a new attempt's result.
func (c *Cache) GetOrFetch(url string, stats Stats) (content []byte, fromCache bool, err error) {
	c.mu.Lock()
	e, exists := c.entries[url]
	if !exists {
		e = &entry{state: Fetching, done: make(chan struct{})}
		c.entries[url] = e
	}
	c.mu.Unlock()

	if !exists {
		return c.fetchAndResolve(url, e, stats)
	}

	e.mu.Lock()
	if e.state == Ready {
		e.pkg.LastUsed = time.Now()
		content := e.pkg.Content
		e.mu.Unlock()
		stats.IncFromCache()
		c.recorder.RecordCacheHit()
		return content, true, nil
	}
	e.mu.Unlock()

	// Fetching (or a Failed entry read in the narrow window before its
	// cleanup runs): attach as a waiter. No fromCache credit — this is a
	// coalesced fetch, not a cache hit.
	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Ready {
		return e.pkg.Content, false, nil
	}
	return nil, false, e.err
}

func (c *Cache) fetchAndResolve(url string, e *entry, stats Stats) ([]byte, bool, error) {
	stats.IncPackageFetches()
	c.recorder.RecordCacheMiss()

	content, err := c.fetcher.Fetch(url)

	e.mu.Lock()
	if err != nil {
		e.state = Failed
		e.err = err
	} else {
		now := time.Now()
		e.state = Ready
		e.pkg = Package{
			URL:       url,
			Content:   content,
			FetchedAt: now,
			LastUsed:  now,
			SizeBytes: len(content),
		}
	}
	close(e.done)
	e.mu.Unlock()

	if err != nil {
		// Failed entries are not retained beyond waking current waiters.
		c.mu.Lock()
		if cur, ok := c.entries[url]; ok && cur == e {
			delete(c.entries, url)
		}
		c.mu.Unlock()
		return nil, false, err
	}

	c.updateSizeGauge()
	return content, false, nil
}

// FlushAll drops every entry. In-flight Fetching entries are allowed to
// complete — their direct waiters (who hold the entry, not a map lookup)
// still receive the outcome — but the result is not retained in the map.
func (c *Cache) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url := range c.entries {
		delete(c.entries, url)
	}
}

// FlushUnused drops entries last used before batchStart — i.e. packages
// not referenced by the render that is about to start. Entries currently
// Fetching are never evicted: they have no meaningful LastUsed yet and
// evicting them would break single-flight for whichever request is
// waiting on them.
func (c *Cache) FlushUnused(batchStart time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, e := range c.entries {
		e.mu.Lock()
		stale := e.state != Fetching && e.pkg.LastUsed.Before(batchStart)
		e.mu.Unlock()
		if stale {
			delete(c.entries, url)
			c.recorder.RecordCacheEviction()
		}
	}
	c.updateSizeGaugeLocked()
}

// Size returns the sum of sizeBytes across all Ready entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeLocked()
}

func (c *Cache) sizeLocked() int {
	total := 0
	for _, e := range c.entries {
		e.mu.Lock()
		if e.state == Ready {
			total += e.pkg.SizeBytes
		}
		e.mu.Unlock()
	}
	return total
}

func (c *Cache) updateSizeGauge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateSizeGaugeLocked()
}

func (c *Cache) updateSizeGaugeLocked() {
	c.recorder.SetCacheSize(int64(c.sizeLocked()))
}
