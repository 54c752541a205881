package render

import "fmt"

// InputError is a RECEIVED → VALIDATED failure: malformed URL list,
// non-object props, invalid globals.location, an empty jsUrls subset
// after filtering, or a bad secret. Always answered with 400.
type InputError struct {
	Message string
	Value   interface{}
}

func (e *InputError) Error() string { return e.Message }

// FetchError is a VALIDATED → FETCHING failure: a required JS package
// could not be retrieved after exhausting retries. Logged as
// "FETCH FAIL (<location>)" and answered with 500.
type FetchError struct {
	Location string
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Location, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// SandboxError is a CONTEXT_READY/AWAITING_RENDER failure: a package
// threw at top-level load, the entry point never called
// __registerForSSR__, or the SSR callback rejected or timed out. Logged
// as "RENDER FAIL (<location>)" and answered with 500.
type SandboxError struct {
	Location string
	Cause    error
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("render failed for %s: %v", e.Location, e.Cause)
}

func (e *SandboxError) Unwrap() error { return e.Cause }
