package api

import "github.com/pkg/errors"

// Failure classes for timing lookups. Wrapped errors keep these as their
// cause so callers can classify with errors.Is.
var (
	// ErrNetwork covers timeouts, transport failures and non-2xx statuses
	ErrNetwork = errors.New("timing API request failed")

	// ErrMalformedResponse means the body could not be decoded into the expected shape
	ErrMalformedResponse = errors.New("malformed timing API response")

	// ErrNoMatch means the title or episode is unknown to the timing API. It is never retried.
	ErrNoMatch = errors.New("no timing data for title")
)

// retryable reports whether err is worth another attempt
func retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrNoMatch)
}
