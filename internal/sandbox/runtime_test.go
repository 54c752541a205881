package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipswaps/react-render-server/internal/cache"
	"github.com/swipswaps/react-render-server/internal/resource"
)

type noopFetchCache struct{}

func (noopFetchCache) GetOrFetch(url string, stats cache.Stats) ([]byte, bool, error) {
	return nil, false, nil
}

func newTestContext(t *testing.T, script string) *Context {
	t.Helper()
	loader := resource.New(noopFetchCache{}, &stubStats{})
	ctx, err := NewContext(
		"https://example.com/page",
		nil,
		[]Package{{URL: "entry.js", Content: []byte(script)}},
		nil, nil,
		loader,
		nil,
		nil,
	)
	require.NoError(t, err)
	return ctx
}

type stubStats struct{}

func (stubStats) IncFromCache()      {}
func (stubStats) IncPackageFetches() {}

func TestNewContextReachesLoadedState(t *testing.T) {
	ctx := newTestContext(t, `1 + 1;`)
	assert.Equal(t, Loaded, ctx.State())
}

func TestRegisterForSSRStoresCallback(t *testing.T) {
	ctx := newTestContext(t, `
		__registerForSSR__(function(props) {
			return { html: '<div>' + props.name + '</div>', css: null };
		});
	`)

	res, err := ctx.InvokeRender(map[string]interface{}{"name": "world"}, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "<div>world</div>", res.HTML)
	assert.Equal(t, Rendering, ctx.State())
}

func TestInvokeRenderWithoutRegistrationFails(t *testing.T) {
	ctx := newTestContext(t, `1 + 1;`)
	_, err := ctx.InvokeRender(map[string]interface{}{}, time.Now().Add(time.Second))
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestInvokeRenderAwaitsAsyncPromiseViaTimerLoop(t *testing.T) {
	ctx := newTestContext(t, `
		__registerForSSR__(function(props) {
			return new Promise(function(resolve) {
				setTimeout(function() {
					resolve({ html: 'async-' + props.name, css: 'c' });
				}, 10);
			});
		});
	`)

	res, err := ctx.InvokeRender(map[string]interface{}{"name": "x"}, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "async-x", res.HTML)
	assert.Equal(t, "c", res.CSS)
}

func TestInvokeRenderTimesOutOnSlowPromise(t *testing.T) {
	ctx := newTestContext(t, `
		__registerForSSR__(function(props) {
			return new Promise(function(resolve) {
				setTimeout(function() { resolve({ html: 'too-late' }); }, 200);
			});
		});
	`)

	_, err := ctx.InvokeRender(map[string]interface{}{}, time.Now().Add(20*time.Millisecond))
	assert.ErrorIs(t, err, ErrRenderTimeout)
}

func TestInvokeRenderPropagatesRejection(t *testing.T) {
	ctx := newTestContext(t, `
		__registerForSSR__(function(props) {
			return Promise.reject(new Error('boom'));
		});
	`)

	_, err := ctx.InvokeRender(map[string]interface{}{}, time.Now().Add(time.Second))
	require.Error(t, err)
}

func TestCloseIsIdempotentAndDeactivatesSSR(t *testing.T) {
	ctx := newTestContext(t, `__registerForSSR__(function() { return { html: '' }; });`)
	ctx.Close()
	ctx.Close()
	assert.Equal(t, Closed, ctx.State())
}

func TestCloseDropsDanglingTimerWithOneWarning(t *testing.T) {
	ctx := newTestContext(t, `
		__registerForSSR__(function() {
			setTimeout(function() { /* would run after close */ }, 5);
			return { html: 'ok' };
		});
	`)

	_, err := ctx.InvokeRender(map[string]interface{}{}, time.Now().Add(time.Second))
	require.NoError(t, err)
	ctx.Close()

	// Simulate the dangling timer firing after close: the loop must not
	// panic and must warn exactly once.
	assert.False(t, ctx.loop.warnedDangling)
	ctx.loop.fire(ctx.loop.nextID)
	assert.True(t, ctx.loop.warnedDangling)
}

func TestCanvasGetContextIsNeutralized(t *testing.T) {
	ctx := newTestContext(t, `
		var supported = (typeof HTMLCanvasElement !== 'undefined') &&
			(typeof HTMLCanvasElement.prototype.getContext !== 'undefined');
		__registerForSSR__(function() {
			return { html: supported ? 'yes' : 'no' };
		});
	`)

	res, err := ctx.InvokeRender(map[string]interface{}{}, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "no", res.HTML)
}

func TestVMContextSizeApproximatesDoubleContentLength(t *testing.T) {
	ctx := newTestContext(t, `1;`)
	assert.Equal(t, len([]byte(`1;`))*2, ctx.VMContextSize())
}

func TestGlobalsCopiedExceptLocation(t *testing.T) {
	loader := resource.New(noopFetchCache{}, &stubStats{})
	ctx, err := NewContext(
		"https://example.com/page",
		map[string]interface{}{"location": "should-not-override", "featureFlag": true},
		[]Package{{URL: "entry.js", Content: []byte(`
			__registerForSSR__(function() {
				return { html: (typeof location === 'string') ? 'overridden' : 'kept', flag: featureFlag };
			});
		`)}},
		nil, nil, loader, nil, nil,
	)
	require.NoError(t, err)

	res, err := ctx.InvokeRender(map[string]interface{}{}, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "kept", res.HTML)
}
