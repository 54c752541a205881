/*
Package resource implements the sandbox's outbound-fetch adapter: the
loader a Render Context installs so in-script image/script/xhr requests
never reach the real network directly. Images are always refused.
Scripts and data requests are routed through the Package Cache.

Close discipline mirrors the teacher's sandbox.Pool: a mutex-guarded
closed flag refuses new loads, and a WaitGroup lets Close block until
every in-flight load has finished, so no loader callback can fire after
the owning Render Context has torn down.
*/
package resource

import (
	"errors"
	"sync"

	"github.com/swipswaps/react-render-server/internal/cache"
)

// ErrImageBlocked is returned for every image load. It is not an error
// condition worth logging — the sandbox DOM is told "blocked" and moves
// on.
var ErrImageBlocked = errors.New("image loads are blocked in the render sandbox")

// ErrLoaderClosed is returned when a load is attempted after Close.
var ErrLoaderClosed = errors.New("resource loader is closed")

// Cache is the subset of *cache.Cache the loader depends on.
type Cache interface {
	GetOrFetch(url string, stats cache.Stats) ([]byte, bool, error)
}

// Loader is the per-render resource loader bound to that render's stats.
type Loader struct {
	cache Cache
	stats cache.Stats

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a resource loader for one render, routing script/xhr loads
// through c and crediting fetches to stats.
func New(c Cache, stats cache.Stats) *Loader {
	return &Loader{cache: c, stats: stats}
}

// LoadImage always rejects. Never logged as an error by callers.
func (l *Loader) LoadImage(url string) ([]byte, error) {
	return nil, ErrImageBlocked
}

// LoadScript fetches script or xhr-style data through the package cache.
func (l *Loader) LoadScript(url string) ([]byte, error) {
	if !l.begin() {
		return nil, ErrLoaderClosed
	}
	defer l.end()

	content, _, err := l.cache.GetOrFetch(url, l.stats)
	return content, err
}

// LoadData is an alias for LoadScript: the sandbox's xhr-like requests
// and its script requests both resolve through the same cache path.
func (l *Loader) LoadData(url string) ([]byte, error) {
	return l.LoadScript(url)
}

// Close refuses new loads and blocks until every in-flight load drains.
// Idempotent.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.wg.Wait()
}

func (l *Loader) begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.wg.Add(1)
	return true
}

func (l *Loader) end() {
	l.wg.Done()
}
