package apollo

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipswaps/react-render-server/internal/sandbox"
)

func mustCall(t *testing.T, vm *goja.Runtime, expr string) goja.Value {
	t.Helper()
	val, err := vm.RunString(expr)
	require.NoError(t, err)
	return val
}

func awaitSettled(t *testing.T, val goja.Value) (*goja.Promise, goja.PromiseState) {
	t.Helper()
	promise, ok := val.Export().(*goja.Promise)
	require.True(t, ok, "expected a promise")
	deadline := time.Now().Add(time.Second)
	for promise.State() == goja.PromiseStatePending && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return promise, promise.State()
}

func TestInstallExposesClientCacheAndLink(t *testing.T) {
	vm := goja.New()
	client, err := Install(vm, sandbox.ApolloConfig{URL: "https://example.com/graphql"}, http.DefaultClient)
	require.NoError(t, err)
	assert.NotNil(t, client)

	val := mustCall(t, vm, `typeof __apolloClient__.link === 'object' && typeof __apolloClient__.cache === 'object'`)
	assert.True(t, val.ToBoolean())
}

func TestQueryRejectsOnMissingURL(t *testing.T) {
	vm := goja.New()
	_, err := Install(vm, sandbox.ApolloConfig{}, http.DefaultClient)
	require.NoError(t, err)

	val := mustCall(t, vm, `__apolloClient__.query()`)
	_, state := awaitSettled(t, val)
	assert.Equal(t, goja.PromiseStateRejected, state)
}

func TestQueryRejectsOnBadURLSentinel(t *testing.T) {
	vm := goja.New()
	_, err := Install(vm, sandbox.ApolloConfig{URL: BadURLSentinel}, http.DefaultClient)
	require.NoError(t, err)

	val := mustCall(t, vm, `__apolloClient__.query()`)
	_, state := awaitSettled(t, val)
	assert.Equal(t, goja.PromiseStateRejected, state)
}

func TestQueryResolvesOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer srv.Close()

	vm := goja.New()
	_, err := Install(vm, sandbox.ApolloConfig{URL: srv.URL}, http.DefaultClient)
	require.NoError(t, err)

	val := mustCall(t, vm, `__apolloClient__.query()`)
	promise, state := awaitSettled(t, val)
	require.Equal(t, goja.PromiseStateFulfilled, state)
	assert.Contains(t, promise.Result().String(), "ok")
}

func TestQueryRejectsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	vm := goja.New()
	_, err := Install(vm, sandbox.ApolloConfig{URL: srv.URL}, http.DefaultClient)
	require.NoError(t, err)

	val := mustCall(t, vm, `__apolloClient__.query()`)
	_, state := awaitSettled(t, val)
	assert.Equal(t, goja.PromiseStateRejected, state)
}

func TestQueryCarriesCallerHeaders(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	vm := goja.New()
	_, err := Install(vm, sandbox.ApolloConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	}, http.DefaultClient)
	require.NoError(t, err)

	val := mustCall(t, vm, `__apolloClient__.query()`)
	_, state := awaitSettled(t, val)
	require.Equal(t, goja.PromiseStateFulfilled, state)
	assert.Equal(t, "Bearer token", seen)
}

func TestQueryTimesOutAgainstSlowUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	vm := goja.New()
	_, err := Install(vm, sandbox.ApolloConfig{URL: srv.URL, Timeout: 5 * time.Millisecond}, http.DefaultClient)
	require.NoError(t, err)

	val := mustCall(t, vm, `__apolloClient__.query()`)
	_, state := awaitSettled(t, val)
	assert.Equal(t, goja.PromiseStateRejected, state)
}

func TestCacheReadWriteQuery(t *testing.T) {
	vm := goja.New()
	_, err := Install(vm, sandbox.ApolloConfig{URL: "https://example.com/graphql"}, http.DefaultClient)
	require.NoError(t, err)

	val := mustCall(t, vm, `
		__apolloClient__.cache.writeQuery('k', { hello: 'world' });
		__apolloClient__.cache.readQuery('k').hello;
	`)
	assert.Equal(t, "world", val.String())
}
