package fetcher

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipswaps/react-render-server/internal/config"
	"github.com/swipswaps/react-render-server/internal/resilience"
)

func testConfig() config.FetcherConfig {
	return config.FetcherConfig{
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryWait:  5 * time.Millisecond,
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bundle contents"))
	}))
	defer srv.Close()

	f := New(testConfig())
	content, err := f.Fetch(srv.URL + "/a.js")
	require.NoError(t, err)
	assert.Equal(t, "bundle contents", string(content))
}

func TestFetchNonOKStatusReturnsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testConfig())
	_, err := f.Fetch(srv.URL + "/missing.js")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.LastStatus)
}

func TestFetchRetriesOnServerErrorThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok after retry"))
	}))
	defer srv.Close()

	f := New(testConfig())
	content, err := f.Fetch(srv.URL + "/flaky.js")
	require.NoError(t, err)
	assert.Equal(t, "ok after retry", string(content))
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestFetchUnreachableHostReturnsFetchError(t *testing.T) {
	f := New(config.FetcherConfig{
		Timeout:    200 * time.Millisecond,
		MaxRetries: 1,
		RetryWait:  5 * time.Millisecond,
	})
	_, err := f.Fetch("http://127.0.0.1:1/unreachable.js")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
}

type recordingRecorder struct {
	attempts []string
	retries  int
}

func (r *recordingRecorder) RecordFetchAttempt(result string) { r.attempts = append(r.attempts, result) }
func (r *recordingRecorder) RecordFetchRetry()                { r.retries++ }

func TestFetchRecordsAttemptOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	rec := &recordingRecorder{}
	f := New(testConfig()).WithRecorder(rec)

	_, err := f.Fetch(srv.URL + "/x.js")
	require.NoError(t, err)
	assert.Contains(t, rec.attempts, "success")
}

func TestBreakerOpensAfterRepeatedFailuresOnSameHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(config.FetcherConfig{
		Timeout:    200 * time.Millisecond,
		MaxRetries: 0,
		RetryWait:  time.Millisecond,
	})

	for i := 0; i < 7; i++ {
		_, _ = f.Fetch(srv.URL + "/repeated.js")
	}

	_, err := f.Fetch(srv.URL + "/repeated.js")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
