package extract

import (
	"fmt"
	"time"
)

// TransientAPIError is a rate-limit or network-level failure that is
// worth retrying with backoff.
type TransientAPIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration // from the Retry-After header, 0 when absent
}

func (e *TransientAPIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transient API error: %s", e.Message)
	}
	return fmt.Sprintf("transient API error: HTTP %d: %s", e.StatusCode, e.Message)
}

// PermanentAPIError is an invalid-credential or malformed-request
// failure. Never retried; surfaced immediately.
type PermanentAPIError struct {
	StatusCode int
	Message    string
}

func (e *PermanentAPIError) Error() string {
	return fmt.Sprintf("permanent API error: HTTP %d: %s", e.StatusCode, e.Message)
}
