package fetcher

import "fmt"

// FetchError reports a failed retrieval of the roster or the job window:
// transport failure, timeout, non-success status or an undecodable body.
// It is fatal to an aggregation run.
type FetchError struct {
	Op         string // "roster" or "jobs"
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s from %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s from %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
