/*
Package render implements the Render Orchestrator: the top-level
coroutine that drives one /render request through
RECEIVED → VALIDATED → FETCHING → CONTEXT_READY → AWAITING_RENDER →
RESPONDED, coordinating the package cache, the sandbox Render Context
Factory, and the Apollo shim, and owning that request's RequestStats
record end to end.
*/
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/swipswaps/react-render-server/internal/apollo"
	"github.com/swipswaps/react-render-server/internal/cache"
	"github.com/swipswaps/react-render-server/internal/logging"
	"github.com/swipswaps/react-render-server/internal/resource"
	"github.com/swipswaps/react-render-server/internal/sandbox"
	"github.com/swipswaps/react-render-server/internal/stats"
	"github.com/swipswaps/react-render-server/internal/validate"
)

// Orchestrator drives the render pipeline described in this package's
// doc comment.
type Orchestrator struct {
	cache *cache.Cache
	log   *logging.Logger

	renderTimeout time.Duration
	apolloTimeout time.Duration

	sandboxRecorder sandbox.Recorder
	statsRecorder   stats.Recorder
	apolloDoer      apollo.HTTPDoer

	limiter *Limiter
}

// Deps bundles the Orchestrator's collaborators.
type Deps struct {
	Cache           *cache.Cache
	Log             *logging.Logger
	RenderTimeout   time.Duration
	ApolloTimeout   time.Duration
	SandboxRecorder sandbox.Recorder
	StatsRecorder   stats.Recorder
	ApolloDoer      apollo.HTTPDoer
	MaxConcurrent   int
}

// New creates a Render Orchestrator.
func New(d Deps) *Orchestrator {
	if d.RenderTimeout <= 0 {
		d.RenderTimeout = 30 * time.Second
	}
	if d.ApolloTimeout <= 0 {
		d.ApolloTimeout = apollo.DefaultTimeout
	}
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	return &Orchestrator{
		cache:           d.Cache,
		log:             d.Log,
		renderTimeout:   d.RenderTimeout,
		apolloTimeout:   d.ApolloTimeout,
		sandboxRecorder: d.SandboxRecorder,
		statsRecorder:   d.StatsRecorder,
		apolloDoer:      d.ApolloDoer,
		limiter:         NewLimiter(d.MaxConcurrent),
	}
}

// Close releases the orchestrator's concurrency limiter. Does not touch
// the cache, which outlives individual orchestrators.
func (o *Orchestrator) Close() {
	o.limiter.Close()
}

// Render runs one request through the full state machine and returns
// the response envelope (html, css, and the request's stats merged in)
// or a typed *InputError / *FetchError / *SandboxError.
func (o *Orchestrator) Render(ctx context.Context, body *validate.RenderBody) (map[string]interface{}, error) {
	reqStats := stats.Begin(o.statsRecorder)
	defer reqStats.Finish()

	jsUrls := validate.JSUrls(body.URLs)
	if len(jsUrls) == 0 {
		return nil, &InputError{Message: "no JavaScript URLs after filtering", Value: body.URLs}
	}
	location := jsUrls[len(jsUrls)-1]

	if err := o.limiter.Acquire(ctx); err != nil {
		return nil, &SandboxError{Location: location, Cause: err}
	}
	defer o.limiter.Release()

	o.cache.FlushUnused(time.Now())

	packages, err := o.fetchAll(ctx, jsUrls, reqStats)
	if err != nil {
		fe := &FetchError{Location: location, Cause: err}
		o.log.FetchFail(location, err)
		return nil, fe
	}

	loader := resource.New(o.cache, reqStats)

	var apolloCfg *sandbox.ApolloConfig
	var installApollo sandbox.ApolloInstaller
	if body.ApolloNetwork != nil {
		timeout := o.apolloTimeout
		if body.ApolloNetwork.Timeout > 0 {
			timeout = time.Duration(body.ApolloNetwork.Timeout) * time.Millisecond
		}
		apolloCfg = &sandbox.ApolloConfig{
			URL:     body.ApolloNetwork.URL,
			Headers: body.ApolloNetwork.Headers,
			Timeout: timeout,
		}
		installApollo = func(vm *goja.Runtime, cfg sandbox.ApolloConfig) (goja.Value, error) {
			return apollo.Install(vm, cfg, o.apolloDoer)
		}
	}

	sandboxLocation := location
	if loc, ok := body.Globals["location"].(string); ok && loc != "" {
		sandboxLocation = loc
	}

	props := sandbox.RawJSON(body.Props)

	renderCtx, err := sandbox.NewContext(
		sandboxLocation,
		body.Globals,
		packages,
		apolloCfg,
		installApollo,
		loader,
		o.log.Logger,
		o.sandboxRecorder,
	)
	if err != nil {
		loader.Close()
		se := &SandboxError{Location: location, Cause: err}
		o.log.RenderFail(location, err)
		return nil, se
	}
	defer renderCtx.Close()
	reqStats.SetVMContext(renderCtx.VMContextSize())

	deadline := time.Now().Add(o.renderTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	result, err := renderCtx.InvokeRender(props, deadline)
	if err != nil {
		se := &SandboxError{Location: location, Cause: err}
		o.log.RenderFail(location, err)
		reqStats.Log(o.log.Logger, location)
		return nil, se
	}

	envelope := map[string]interface{}{
		"html": result.HTML,
		"css":  result.CSS,
	}
	mergeStats(envelope, reqStats.Snapshot())
	reqStats.Log(o.log.Logger, location)

	return envelope, nil
}

// fetchAll fetches every jsUrl through the package cache concurrently,
// returning packages in the same order as jsUrls so execution order is
// preserved even though fetches race. If ctx is cancelled before every
// fetch completes, fetchAll stops waiting and returns ctx.Err() — the
// cache's single-flight entries continue to completion on their own so
// any other request waiting on the same URL is not stranded (see
// internal/cache).
func (o *Orchestrator) fetchAll(ctx context.Context, jsUrls []string, reqStats *stats.RequestStats) ([]sandbox.Package, error) {
	type outcome struct {
		index   int
		content []byte
		err     error
	}

	results := make(chan outcome, len(jsUrls))
	for i, u := range jsUrls {
		go func(i int, u string) {
			content, _, err := o.cache.GetOrFetch(u, reqStats)
			results <- outcome{index: i, content: content, err: err}
		}(i, u)
	}

	packages := make([]sandbox.Package, len(jsUrls))
	received := 0
	for received < len(jsUrls) {
		select {
		case out := <-results:
			if out.err != nil {
				return nil, out.err
			}
			packages[out.index] = sandbox.Package{URL: jsUrls[out.index], Content: out.content}
			received++
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return packages, nil
}

// mergeStats spreads a stats snapshot's fields into the response
// envelope, per the "merge updated stats back into the response
// envelope" step of the AWAITING_RENDER → RESPONDED transition.
func mergeStats(envelope map[string]interface{}, snap stats.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return
	}
	for k, v := range fields {
		envelope[k] = v
	}
}

// LocationOf returns the "entry URL" the Orchestrator uses as a request's
// location: the last JS URL after filtering, or the raw URL list
// formatted with %v when no JS URL remains.
func LocationOf(body *validate.RenderBody) string {
	jsUrls := validate.JSUrls(body.URLs)
	if len(jsUrls) == 0 {
		return fmt.Sprintf("%v", body.URLs)
	}
	return jsUrls[len(jsUrls)-1]
}
