/*
Package sandbox is the Render Context Factory: it builds one goja VM per
render request, installs a DOM-like surface just complete enough for
isomorphic bundles to execute without crashing, wires the SSR
registration protocol the entry point calls into, and awaits the
resulting render promise via a cooperative timer loop (see loop.go)
instead of a background goroutine, since a goja Runtime may only be
touched from one goroutine at a time.

Generalized from the teacher's browser sandbox runtime: the same
wrap-goja-with-security-controls shape, retargeted from a reusable,
pooled execution sandbox to a single-use, per-request render context
whose globals differ on every call.
*/
package sandbox

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/swipswaps/react-render-server/internal/resource"
)

// RawJSON marks a []byte as JSON text to be parsed with the sandbox's
// own JSON.parse rather than converted via reflection, so object key
// order in the parsed value matches the source text's declaration
// order — the same order real JS engines preserve, and the order the
// render response's JSON.stringify output must reproduce byte-for-byte
// across repeated identical requests. Pass a RawJSON to InvokeRender for
// request props; any other type is converted with the VM's reflection
// based ToValue, whose object key order is not guaranteed.
type RawJSON []byte

var (
	// ErrNotRegistered is returned when a render callback is invoked but
	// the entry point never called __registerForSSR__.
	ErrNotRegistered = errors.New("entry point did not call __registerForSSR__")
	// ErrAlreadyClosed is returned by operations attempted after Close.
	ErrAlreadyClosed = errors.New("render context is closed")
	// ErrRenderTimeout is returned when the render promise has not
	// settled by the deadline passed to InvokeRender.
	ErrRenderTimeout = errors.New("render promise did not settle before the deadline")
)

// Recorder receives vm context size observations. Implemented by
// internal/monitoring.Metrics.
type Recorder interface {
	ObserveVMContextSize(bytes int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveVMContextSize(int) {}

// ApolloInstaller installs the Apollo-like network shim into vm per cfg
// and returns the client value to be passed as the render callback's
// second argument. It does not go through the sandbox's resource
// loader — the DOM's fetch is not used for GraphQL. Implemented by
// internal/apollo.Install.
type ApolloInstaller func(vm *goja.Runtime, cfg ApolloConfig) (goja.Value, error)

// Context is one render's sandboxed DOM-like environment: it owns its
// goja Runtime, its resource loader, and the NEW → LOADED → RENDERING →
// CLOSED state machine.
type Context struct {
	mu    sync.Mutex
	state State

	vm     *goja.Runtime
	loop   *loop
	loader *resource.Loader
	log    *zap.Logger

	renderCallback goja.Callable
	apolloClient   goja.Value
	vmContextSize  int
}

// NewContext builds a Render Context: a minimal DOM, the SSR
// registration protocol, timer patching, an optional Apollo shim, the
// caller-supplied globals (location excluded — the sandbox's own
// location is authoritative), and every package executed in order.
func NewContext(
	location string,
	globals map[string]interface{},
	packages []Package,
	apollo *ApolloConfig,
	installApollo ApolloInstaller,
	loader *resource.Loader,
	log *zap.Logger,
	recorder Recorder,
) (*Context, error) {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	vm := goja.New()
	c := &Context{state: New, vm: vm, loader: loader, log: log}
	c.loop = newLoop(vm, c.warnDangling)

	if err := c.setupDOM(location); err != nil {
		return nil, err
	}
	c.setupTimers()
	c.setupSSRProtocol()

	if apollo != nil && installApollo != nil {
		client, err := installApollo(vm, *apollo)
		if err != nil {
			return nil, fmt.Errorf("installing apollo shim: %w", err)
		}
		c.apolloClient = client
	}

	c.copyGlobals(globals)

	size := 0
	for _, pkg := range packages {
		if _, err := vm.RunScript(pkg.URL, string(pkg.Content)); err != nil {
			return nil, fmt.Errorf("executing %s: %w", pkg.URL, err)
		}
		size += len(pkg.Content) * 2
	}
	c.vmContextSize = size
	recorder.ObserveVMContextSize(size)

	c.mu.Lock()
	c.state = Loaded
	c.mu.Unlock()

	return c, nil
}

// State returns the context's current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// VMContextSize returns the approximate bytes attributed to this
// context's loaded packages (sum(len(content))*2, a deliberate
// approximation).
func (c *Context) VMContextSize() int {
	return c.vmContextSize
}

// InvokeRender calls the registered SSR callback with props and the
// sandbox's Apollo client (or null, when no Apollo network was
// requested), then awaits its promise until it settles or deadline
// passes.
func (c *Context) InvokeRender(props interface{}, deadline time.Time) (*RenderResult, error) {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil, ErrAlreadyClosed
	}
	cb := c.renderCallback
	apolloClient := c.apolloClient
	c.state = Rendering
	c.mu.Unlock()

	if cb == nil {
		return nil, ErrNotRegistered
	}

	propsValue, err := c.toPropsValue(props)
	if err != nil {
		return nil, err
	}

	args := []goja.Value{propsValue}
	if apolloClient != nil {
		args = append(args, apolloClient)
	} else {
		args = append(args, goja.Null())
	}

	out, err := cb(goja.Undefined(), args...)
	if err != nil {
		return nil, err
	}

	settled, err := c.awaitValue(out, deadline)
	if err != nil {
		return nil, err
	}
	return harvestResult(settled)
}

// Close sets __SSR_ACTIVE__ to false, deactivates the timer loop so any
// timer that fires afterward is dropped with a one-time warning, closes
// the resource loader, and disposes the sandbox. Idempotent.
func (c *Context) Close() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	c.mu.Unlock()

	_ = c.vm.Set("__SSR_ACTIVE__", false)
	c.loop.deactivate()
	c.loader.Close()
}

func (c *Context) warnDangling() {
	if c.log != nil {
		c.log.Warn("Dangling timer(s) encountered")
	}
}

func (c *Context) awaitValue(val goja.Value, deadline time.Time) (goja.Value, error) {
	promise, ok := val.Export().(*goja.Promise)
	if !ok {
		return val, nil
	}

	c.loop.runUntil(deadline, func() bool {
		return promise.State() != goja.PromiseStatePending
	})

	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("render promise rejected: %s", promise.Result().String())
	default:
		return nil, ErrRenderTimeout
	}
}

func harvestResult(val goja.Value) (*RenderResult, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return &RenderResult{}, nil
	}

	exported := val.Export()
	m, ok := exported.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("render result was not an object: %T", exported)
	}

	res := &RenderResult{}
	if html, ok := m["html"].(string); ok {
		res.HTML = html
	}
	res.CSS = m["css"]
	return res, nil
}

// toPropsValue converts the render callback's props argument. A RawJSON
// payload is parsed with the sandbox's own JSON.parse so key order
// matches the request body's text; anything else goes through the VM's
// reflection-based ToValue.
func (c *Context) toPropsValue(props interface{}) (goja.Value, error) {
	raw, ok := props.(RawJSON)
	if !ok {
		return c.vm.ToValue(props), nil
	}
	if len(raw) == 0 {
		return goja.Undefined(), nil
	}

	jsonObj := c.vm.GlobalObject().Get("JSON").ToObject(c.vm)
	parse, ok := goja.AssertFunction(jsonObj.Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse is unavailable in this sandbox")
	}
	return parse(goja.Undefined(), c.vm.ToValue(string(raw)))
}

func (c *Context) copyGlobals(globals map[string]interface{}) {
	for k, v := range globals {
		if k == "location" {
			continue
		}
		_ = c.vm.Set(k, v)
	}
}

func (c *Context) setupSSRProtocol() {
	vm := c.vm
	rrs := vm.NewObject()
	_ = vm.Set("__rrs", rrs)
	_ = vm.Set("__SSR_ACTIVE__", true)
	_ = vm.Set("__registerForSSR__", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if ok {
			c.mu.Lock()
			c.renderCallback = fn
			c.mu.Unlock()
			_ = rrs.Set("getRenderPromiseCallback", call.Argument(0))
		}
		return goja.Undefined()
	})
}

func (c *Context) setupTimers() {
	vm := c.vm

	_ = vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		return vm.ToValue(c.loop.setTimeout(fn, delay))
	})
	_ = vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		c.loop.clear(call.Argument(0).ToInteger())
		return goja.Undefined()
	})
	_ = vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		return vm.ToValue(c.loop.setInterval(fn, delay))
	})
	_ = vm.Set("clearInterval", func(call goja.FunctionCall) goja.Value {
		c.loop.clear(call.Argument(0).ToInteger())
		return goja.Undefined()
	})
	_ = vm.Set("requestAnimationFrame", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		return vm.ToValue(c.loop.requestAnimationFrame(fn))
	})
	_ = vm.Set("cancelAnimationFrame", func(call goja.FunctionCall) goja.Value {
		c.loop.clear(call.Argument(0).ToInteger())
		return goja.Undefined()
	})
}

func (c *Context) setupDOM(location string) error {
	vm := c.vm

	loc, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("parsing location %q: %w", location, err)
	}

	locationObj := vm.NewObject()
	_ = locationObj.Set("href", loc.String())
	_ = locationObj.Set("protocol", loc.Scheme+":")
	_ = locationObj.Set("host", loc.Host)
	_ = locationObj.Set("hostname", loc.Hostname())
	_ = locationObj.Set("port", loc.Port())
	_ = locationObj.Set("pathname", loc.Path)
	_ = locationObj.Set("search", loc.RawQuery)
	_ = locationObj.Set("hash", loc.Fragment)
	_ = locationObj.Set("origin", loc.Scheme+"://"+loc.Host)
	_ = vm.Set("location", locationObj)

	// Certain client libraries probe for canvas support; getContext
	// absent on the prototype makes them fall back to a "not supported"
	// code path instead of attempting real canvas rendering.
	canvasProto := vm.NewObject()
	_ = canvasProto.Set("getContext", goja.Undefined())
	canvasElement := vm.NewObject()
	_ = canvasElement.Set("prototype", canvasProto)
	_ = vm.Set("HTMLCanvasElement", canvasElement)

	document := vm.NewObject()
	_ = document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(c.newElement(call.Argument(0).String()))
	})
	_ = document.Set("getElementById", func(call goja.FunctionCall) goja.Value { return goja.Null() })
	_ = document.Set("querySelector", func(call goja.FunctionCall) goja.Value { return goja.Null() })
	_ = document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue([]interface{}{})
	})
	_ = document.Set("addEventListener", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = document.Set("removeEventListener", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = document.Set("body", c.newElement("body"))
	_ = document.Set("head", c.newElement("head"))
	_ = document.Set("documentElement", c.newElement("html"))
	_ = vm.Set("document", document)

	navigator := vm.NewObject()
	_ = navigator.Set("userAgent", "react-render-server")
	_ = vm.Set("navigator", navigator)

	global := vm.GlobalObject()
	_ = vm.Set("window", global)
	_ = vm.Set("global", global)
	_ = vm.Set("self", global)

	c.setupConsole()
	return nil
}

// newElement returns a bare element stub. Images never issue a real
// network request through this stub: setting .src only records the
// attribute, satisfying "images are always rejected" without ever
// writing to the console.
func (c *Context) newElement(tag string) *goja.Object {
	vm := c.vm
	el := vm.NewObject()
	attrs := map[string]string{}

	_ = el.Set("tagName", tag)
	_ = el.Set("nodeName", tag)
	_ = el.Set("src", "")
	_ = el.Set("className", "")
	_ = el.Set("style", vm.NewObject())
	_ = el.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		attrs[call.Argument(0).String()] = call.Argument(1).String()
		return goja.Undefined()
	})
	_ = el.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := attrs[call.Argument(0).String()]
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	_ = el.Set("appendChild", func(call goja.FunctionCall) goja.Value { return call.Argument(0) })
	_ = el.Set("addEventListener", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = el.Set("removeEventListener", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	return el
}

func (c *Context) setupConsole() {
	vm := c.vm
	console := vm.NewObject()
	_ = console.Set("log", c.consoleFn("log"))
	_ = console.Set("info", c.consoleFn("info"))
	_ = console.Set("warn", c.consoleFn("warn"))
	_ = console.Set("error", c.consoleFn("error"))
	_ = vm.Set("console", console)
}

func (c *Context) consoleFn(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if c.log == nil {
			return goja.Undefined()
		}
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		fields := []zap.Field{zap.Strings("args", parts)}
		switch level {
		case "warn":
			c.log.Warn("sandbox console", fields...)
		case "error":
			c.log.Error("sandbox console", fields...)
		default:
			c.log.Debug("sandbox console", fields...)
		}
		return goja.Undefined()
	}
}
