/*
Package apollo implements the Apollo-like GraphQL network shim the
Render Context Factory installs when a request carries an
apolloNetwork block. It exposes a client/cache/link trio into the
sandbox whose link function races a real outbound HTTP request against
a bounded timeout, grounded on the teacher's resty-over-retryablehttp
HTTP client (internal/providers/http/types.go) and its context-based
timeout pattern.
*/
package apollo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dop251/goja"

	"github.com/swipswaps/react-render-server/internal/sandbox"
)

// DefaultTimeout is used when apolloNetwork.timeout is unset.
const DefaultTimeout = time.Second

// BadURLSentinel is a URL value the request body may supply to force a
// deterministic rejection, useful for exercising error handling.
const BadURLSentinel = "BAD_URL"

var (
	errMissingURL = errors.New("apollo link: missing request URL")
	errBadURL     = errors.New("apollo link: BAD_URL")
)

// HTTPDoer is the transport the link issues requests through. Satisfied
// by *http.Client; kept as an interface so tests can substitute a fake.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Install builds the Apollo client/cache/link trio and installs it into
// vm as the global __apolloClient__, returning that value so the Render
// Context can pass it to the render callback. A request uses its first
// argument as the URL when one is given and non-empty, otherwise
// cfg.URL; an empty URL or BadURLSentinel makes that request reject
// immediately.
func Install(vm *goja.Runtime, cfg sandbox.ApolloConfig, doer HTTPDoer) (goja.Value, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if doer == nil {
		doer = http.DefaultClient
	}

	link := vm.NewObject()
	_ = link.Set("request", func(call goja.FunctionCall) goja.Value {
		return requestFunc(vm, doer, cfg, timeout, call)
	})

	cacheObj := vm.NewObject()
	store := map[string]interface{}{}
	_ = cacheObj.Set("readQuery", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		if v, ok := store[key]; ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = cacheObj.Set("writeQuery", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		store[key] = call.Argument(1).Export()
		return goja.Undefined()
	})

	client := vm.NewObject()
	_ = client.Set("link", link)
	_ = client.Set("cache", cacheObj)
	_ = client.Set("query", func(call goja.FunctionCall) goja.Value {
		return requestFunc(vm, doer, cfg, timeout, call)
	})

	if err := vm.Set("__apolloClient__", client); err != nil {
		return nil, fmt.Errorf("installing apollo client: %w", err)
	}
	return client, nil
}

// requestFunc returns a Promise already settled with the response body
// (as a string) or rejected per the link's contract: missing/BAD_URL
// URL, non-200 status, or timeout. Settlement happens synchronously,
// before this call returns, on the same goroutine that is executing
// sandbox script — resolve/reject on a goja promise must never be
// called from any other goroutine while that VM may be in use, so the
// bounded wait for the real HTTP request (the "race against a timeout")
// is expressed with context.WithTimeout rather than a background
// goroutine handing a result back across goroutines.
func requestFunc(vm *goja.Runtime, doer HTTPDoer, cfg sandbox.ApolloConfig, timeout time.Duration, call goja.FunctionCall) goja.Value {
	promise, resolve, reject := vm.NewPromise()

	url := cfg.URL
	if len(call.Arguments) > 0 {
		if v := call.Argument(0).String(); v != "" {
			url = v
		}
	}

	if url == "" {
		reject(errMissingURL)
		return vm.ToValue(promise)
	}
	if url == BadURLSentinel {
		reject(errBadURL)
		return vm.ToValue(promise)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		reject(err)
		return vm.ToValue(promise)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := doer.Do(req)
	if err != nil {
		reject(err)
		return vm.ToValue(promise)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		reject(err)
		return vm.ToValue(promise)
	}
	if resp.StatusCode != http.StatusOK {
		reject(fmt.Errorf("apollo link: status %d", resp.StatusCode))
		return vm.ToValue(promise)
	}

	resolve(string(body))
	return vm.ToValue(promise)
}
