/*
Package resilience implements the per-upstream-host circuit breaker the
Package Fetcher (internal/fetcher) opens in front of every host it
fetches JavaScript bundles from, so one repeatedly failing CDN or origin
cannot burn every render request's retry budget waiting on it while
other upstream hosts stay healthy.

# States

	Closed --[consecutive failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                                          |
	                                                    [failure]
	                                                          |
	                                                          v
	                                                        Open

# Usage

internal/fetcher keeps one Breaker per upstream host, created lazily on
first fetch to that host via NewForHost, which bakes in the fetch-sized
defaults (a handful of consecutive failures trips it, a short open
window before probing again):

	breaker := resilience.NewForHost("cdn.example.com")
	content, err := breaker.Execute(func() (interface{}, error) {
		return fetchOnce(url)
	})

Settings/New remain available directly for a caller that needs different
thresholds than the fetch defaults.
*/
package resilience
