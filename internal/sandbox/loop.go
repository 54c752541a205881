package sandbox

import (
	"time"

	"github.com/dop251/goja"
)

// loop is the cooperative timer scheduler a Render Context installs in
// place of real setTimeout/setInterval/requestAnimationFrame. There is
// no background goroutine driving it: goja's Runtime is not safe for
// concurrent use, so every timer fires on the same goroutine that is
// awaiting the render promise, interleaved by runUntil.
type loop struct {
	vm     *goja.Runtime
	nextID int64
	timers map[int64]*pendingTimer

	active bool // mirrors __SSR_ACTIVE__

	warnedDangling bool
	onDangling     func()
}

type timerKind int

const (
	kindTimeout timerKind = iota
	kindInterval
	kindAnimationFrame
)

type pendingTimer struct {
	id        int64
	kind      timerKind
	fireAt    time.Time
	interval  time.Duration
	callback  goja.Callable
	cancelled bool
}

func newLoop(vm *goja.Runtime, onDangling func()) *loop {
	return &loop{
		vm:         vm,
		timers:     make(map[int64]*pendingTimer),
		active:     true,
		onDangling: onDangling,
	}
}

func (l *loop) setTimeout(cb goja.Callable, delay time.Duration) int64 {
	l.nextID++
	id := l.nextID
	l.timers[id] = &pendingTimer{id: id, kind: kindTimeout, fireAt: time.Now().Add(delay), callback: cb}
	return id
}

func (l *loop) setInterval(cb goja.Callable, delay time.Duration) int64 {
	l.nextID++
	id := l.nextID
	if delay <= 0 {
		delay = time.Millisecond
	}
	l.timers[id] = &pendingTimer{id: id, kind: kindInterval, fireAt: time.Now().Add(delay), interval: delay, callback: cb}
	return id
}

func (l *loop) requestAnimationFrame(cb goja.Callable) int64 {
	l.nextID++
	id := l.nextID
	// Roughly one frame (~16ms); the sandbox has no real display to sync to.
	l.timers[id] = &pendingTimer{id: id, kind: kindAnimationFrame, fireAt: time.Now().Add(16 * time.Millisecond), callback: cb}
	return id
}

func (l *loop) clear(id int64) {
	if t, ok := l.timers[id]; ok {
		t.cancelled = true
		delete(l.timers, id)
	}
}

// deactivate marks the loop inactive; any timer that fires after this
// point is dropped, with a single warning on the first such drop.
func (l *loop) deactivate() {
	l.active = false
}

// runUntil drains due timers, one at a time, until isSettled reports
// true or deadline passes. It never calls into the VM from more than
// one goroutine: firing a timer callback and checking promise state
// both happen inline on the caller's goroutine.
func (l *loop) runUntil(deadline time.Time, isSettled func() bool) {
	for {
		if isSettled() {
			return
		}
		now := time.Now()
		if !now.Before(deadline) {
			return
		}

		id, due := l.nextDue(now)
		if !due {
			sleep := 2 * time.Millisecond
			if remaining := deadline.Sub(now); remaining < sleep {
				sleep = remaining
			}
			if sleep > 0 {
				time.Sleep(sleep)
			}
			continue
		}
		l.fire(id)
	}
}

func (l *loop) nextDue(now time.Time) (int64, bool) {
	var bestID int64
	var bestAt time.Time
	found := false
	for id, t := range l.timers {
		if t.cancelled {
			continue
		}
		if !t.fireAt.After(now) {
			if !found || t.fireAt.Before(bestAt) {
				bestID, bestAt, found = id, t.fireAt, true
			}
		}
	}
	return bestID, found
}

func (l *loop) fire(id int64) {
	t, ok := l.timers[id]
	if !ok || t.cancelled {
		return
	}

	if t.kind != kindInterval {
		delete(l.timers, id)
	} else {
		t.fireAt = time.Now().Add(t.interval)
	}

	if !l.active {
		if !l.warnedDangling {
			l.warnedDangling = true
			if l.onDangling != nil {
				l.onDangling()
			}
		}
		return
	}

	_, _ = t.callback(goja.Undefined())
}
