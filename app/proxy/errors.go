package proxy

import "fmt"

// ExhaustedError reports that every candidate route for a single fetch
// failed. Callers should treat it as "unreachable for this cycle" rather
// than fatal.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d fetch candidates failed for %s: %v", e.Attempts, e.URL, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
