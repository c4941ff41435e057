package feed

import (
	"errors"
	"fmt"
)

// ErrMalformedFeed is wrapped by FeedUnavailableError when a response body
// does not match the expected schema.
var ErrMalformedFeed = errors.New("malformed vehicle feed")

// FeedUnavailableError reports a snapshot that could not be obtained: a
// transport failure, a timeout, a non-2xx status or a malformed body.
type FeedUnavailableError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FeedUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vehicle feed unavailable: HTTP %d from %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("vehicle feed unavailable: %s: %v", e.URL, e.Err)
}

func (e *FeedUnavailableError) Unwrap() error {
	return e.Err
}
