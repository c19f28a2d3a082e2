package feed

import (
	"errors"
	"fmt"
)

// ErrNoItems marks a feed document that was retrieved but yielded no
// extractable items. It fails that one feed URL without aborting the
// aggregation of the source's other URLs.
var ErrNoItems = errors.New("no items extracted from feed document")

// FetchError reports that every feed URL configured for a source failed
// during one refresh cycle.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("all feed URLs failed for source %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
