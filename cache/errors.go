package cache

import "github.com/cockroachdb/errors"

var (
	// ErrQuotaExceeded marks a write rejected because the store has no capacity left.
	ErrQuotaExceeded = errors.New("cache: quota exceeded")
	// ErrMalformedEntry is returned by Get when a key holds content that is not a
	// serialized Entry, for example data written by other code sharing the store.
	ErrMalformedEntry = errors.New("cache: malformed entry")
	// ErrNotInitialized is returned by operations on a Facade before Init.
	ErrNotInitialized = errors.New("cache: not initialized")
	// ErrUnavailable is returned by Backend.Available when the store cannot be used.
	ErrUnavailable = errors.New("cache: backend unavailable")
)

// markQuota tags err as a quota failure while keeping the backend's message.
func markQuota(err error) error {
	return errors.Mark(err, ErrQuotaExceeded)
}
