package sandbox

import (
	"testing"
	"time"

	"github.com/dop251/goja"
)

func callableFromScript(t *testing.T, vm *goja.Runtime, src string) goja.Callable {
	t.Helper()
	val, err := vm.RunString(src)
	if err != nil {
		t.Fatalf("compiling callback: %v", err)
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		t.Fatalf("expected a callable value")
	}
	return fn
}

func TestLoopFiresDueTimersInOrder(t *testing.T) {
	vm := goja.New()
	var order []int

	l := newLoop(vm, nil)
	_ = vm.Set("record", func(n int) { order = append(order, n) })

	l.setTimeout(callableFromScript(t, vm, `(function() { record(2); })`), 10*time.Millisecond)
	l.setTimeout(callableFromScript(t, vm, `(function() { record(1); })`), 1*time.Millisecond)

	l.runUntil(time.Now().Add(100*time.Millisecond), func() bool { return len(order) == 2 })

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected fire order [1 2], got %v", order)
	}
}

func TestLoopClearCancelsPendingTimer(t *testing.T) {
	vm := goja.New()
	fired := false
	l := newLoop(vm, nil)
	_ = vm.Set("record", func() { fired = true })

	id := l.setTimeout(callableFromScript(t, vm, `(function() { record(); })`), 5*time.Millisecond)
	l.clear(id)

	l.runUntil(time.Now().Add(20*time.Millisecond), func() bool { return false })

	if fired {
		t.Fatal("cleared timer must not fire")
	}
}

func TestLoopIntervalReschedulesUntilCleared(t *testing.T) {
	vm := goja.New()
	count := 0
	l := newLoop(vm, nil)
	_ = vm.Set("record", func() { count++ })

	var id int64
	id = l.setInterval(callableFromScript(t, vm, `(function() { record(); })`), 2*time.Millisecond)

	l.runUntil(time.Now().Add(30*time.Millisecond), func() bool {
		if count >= 3 {
			l.clear(id)
			return true
		}
		return false
	})

	if count < 3 {
		t.Fatalf("expected interval to fire at least 3 times, fired %d", count)
	}
}

func TestLoopDropsCallbackAfterDeactivateAndWarnsOnce(t *testing.T) {
	vm := goja.New()
	warnings := 0
	l := newLoop(vm, func() { warnings++ })

	id1 := l.setTimeout(callableFromScript(t, vm, `(function() {})`), time.Millisecond)
	id2 := l.setTimeout(callableFromScript(t, vm, `(function() {})`), 2*time.Millisecond)

	l.deactivate()
	l.fire(id1)
	l.fire(id2)

	if warnings != 1 {
		t.Fatalf("expected exactly one dangling-timer warning, got %d", warnings)
	}
}
