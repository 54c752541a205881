/*
Package stats implements the per-render RequestStats record: a small
counter bag created at the start of every render, mutated by the
fetcher and the Render Context Factory as the render progresses, and
logged once at response time as the service's source of truth for
per-render observability.
*/
package stats

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var pending atomic.Int64

// Recorder mirrors the process-global pendingRenderRequests count onto a
// dashboard gauge. Implemented by internal/monitoring.Metrics; the log
// line written by Log remains the source of truth for scraping.
type Recorder interface {
	SetPendingRenders(n int)
}

type nopRecorder struct{}

func (nopRecorder) SetPendingRenders(int) {}

// Snapshot is the JSON-marshalable view of a RequestStats, logged at
// response time.
type Snapshot struct {
	PendingRenderRequests int  `json:"pendingRenderRequests"`
	PackageFetches        int  `json:"packageFetches"`
	FromCache             int  `json:"fromCache"`
	VMContextSize         int  `json:"vmContextSize"`
	CreatedVMContext      bool `json:"createdVmContext"`
}

// RequestStats is the per-render counters record threaded through the
// fetcher (via internal/cache.Stats) and the Render Context Factory. It
// is created per render, owned by that render, and discarded after
// response.
type RequestStats struct {
	mu sync.Mutex

	snapshot Snapshot
	recorder Recorder
}

// Begin increments the process-global pending-render counter, captures
// its post-increment value into a fresh RequestStats, and mirrors the
// new count onto recorder. Every Begin must be paired with exactly one
// Finish, on every exit path of the render.
func Begin(recorder Recorder) *RequestStats {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	n := pending.Add(1)
	recorder.SetPendingRenders(int(n))
	return &RequestStats{
		snapshot: Snapshot{PendingRenderRequests: int(n)},
		recorder: recorder,
	}
}

// Finish decrements the process-global pending-render counter.
func (s *RequestStats) Finish() {
	n := pending.Add(-1)
	s.recorder.SetPendingRenders(int(n))
}

// IncFromCache satisfies internal/cache.Stats.
func (s *RequestStats) IncFromCache() {
	s.mu.Lock()
	s.snapshot.FromCache++
	s.mu.Unlock()
}

// IncPackageFetches satisfies internal/cache.Stats.
func (s *RequestStats) IncPackageFetches() {
	s.mu.Lock()
	s.snapshot.PackageFetches++
	s.mu.Unlock()
}

// SetVMContext records the Render Context Factory's accounting once a
// sandbox has finished loading its packages.
func (s *RequestStats) SetVMContext(sizeBytes int) {
	s.mu.Lock()
	s.snapshot.VMContextSize = sizeBytes
	s.snapshot.CreatedVMContext = true
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters, safe to log or embed
// in a response envelope.
func (s *RequestStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Log emits the "render-stats for <entry url>: <json>" line. The render
// orchestrator writes it once per render that reaches the render
// callback, on success and on a failed or timed-out render; requests
// that fail earlier (input, limiter, fetch or context build) are not
// logged with stats.
func (s *RequestStats) Log(log *zap.Logger, entryURL string) {
	if log == nil {
		return
	}
	body, err := json.Marshal(s.Snapshot())
	if err != nil {
		log.Warn("failed to marshal render stats", zap.Error(err))
		return
	}
	log.Info("render-stats for " + entryURL + ": " + string(body))
}
