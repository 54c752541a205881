/*
Package fetcher implements the Package Fetcher: the outbound HTTP
collaborator the cache calls into on a miss. It layers resty over
retryablehttp's transport exactly the way the teacher's HTTP provider
does, adds a per-upstream-host circuit breaker, and reports attempts and
retries to Prometheus.
*/
package fetcher

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/swipswaps/react-render-server/internal/config"
	"github.com/swipswaps/react-render-server/internal/resilience"
)

// FetchError is returned when an upstream fetch exhausts its retries or
// returns a non-2xx response.
type FetchError struct {
	URL        string
	LastStatus int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.LastStatus)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Recorder receives fetch observability events. Implemented by
// internal/monitoring.Metrics.
type Recorder interface {
	RecordFetchAttempt(result string)
	RecordFetchRetry()
}

type nopRecorder struct{}

func (nopRecorder) RecordFetchAttempt(string) {}
func (nopRecorder) RecordFetchRetry()         {}

// Fetcher fetches package content over HTTP with retry and a per-host
// circuit breaker. It satisfies internal/cache.Fetcher.
type Fetcher struct {
	http     *resty.Client
	recorder Recorder

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

// New creates a Fetcher from fetcher configuration. cfg.MaxRetries is
// the retry count resty applies on top of the initial attempt, so
// total attempts per URL is cfg.MaxRetries+1.
func New(cfg config.FetcherConfig) *Fetcher {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = cfg.RetryWait * 4
	retryClient.Logger = nil

	http := resty.New()
	http.SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryWait * 4).
		SetHeader("User-Agent", "react-render-server/1.0").
		SetTransport(retryClient.HTTPClient.Transport)

	f := &Fetcher{
		http:     http,
		recorder: nopRecorder{},
		breakers: make(map[string]*resilience.Breaker),
	}

	// Retry transport errors, 404 and 5xx responses; other 4xx responses
	// fail on the first attempt.
	http.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil || resp == nil {
			return true
		}
		return resp.StatusCode() == 404 || resp.StatusCode() >= 500
	})

	http.AddRetryHook(func(resp *resty.Response, err error) {
		f.recorder.RecordFetchRetry()
	})

	return f
}

// WithRecorder attaches a metrics recorder and returns the fetcher for
// chaining.
func (f *Fetcher) WithRecorder(r Recorder) *Fetcher {
	if r != nil {
		f.recorder = r
	}
	return f
}

// Fetch retrieves the content at url, routed through a circuit breaker
// keyed by the URL's host so one failing upstream host cannot starve
// retry budget meant for the others.
func (f *Fetcher) Fetch(rawURL string) ([]byte, error) {
	breaker := f.breakerFor(rawURL)

	result, err := breaker.Execute(func() (interface{}, error) {
		resp, err := f.http.R().Get(rawURL)
		if err != nil {
			f.recorder.RecordFetchAttempt("error")
			return nil, &FetchError{URL: rawURL, Cause: err}
		}
		if resp.IsError() {
			f.recorder.RecordFetchAttempt("error")
			return nil, &FetchError{URL: rawURL, LastStatus: resp.StatusCode()}
		}
		f.recorder.RecordFetchAttempt("success")
		return resp.Body(), nil
	})

	if err != nil {
		if fe, ok := err.(*FetchError); ok {
			return nil, fe
		}
		return nil, &FetchError{URL: rawURL, Cause: err}
	}
	return result.([]byte), nil
}

func (f *Fetcher) breakerFor(rawURL string) *resilience.Breaker {
	host := hostOf(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.breakers[host]; ok {
		return b
	}

	b := resilience.NewForHost(host)
	f.breakers[host] = b
	return b
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
