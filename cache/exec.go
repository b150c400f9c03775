package cache

import "context"

// Invoker is a function that produces a value of type T.
// The bool return indicates whether a value was found. Return false to signal
// "not found" without caching a zero value (e.g. sql.ErrNoRows scenarios).
type Invoker[T any] func(ctx context.Context) (T, bool, error)

// Exec is a cache-aside helper. It checks the cache for key first.
// On a hit, it returns the cached value with found=true.
// On a miss, it calls invoke to produce the value. If invoke returns
// found=true, the value is stored and returned with found=true.
// If invoke returns found=false, nothing is cached and found=false is returned.
// Errors from the cache read or from invoke are propagated. A failed Set after
// a successful invoke is swallowed since the caller still gets the value.
func Exec[T any](ctx context.Context, f *Facade, key string, invoke Invoker[T]) (bool, T, error) {
	var zero T
	found, val, err := GetAs[T](ctx, f, key)
	if err != nil {
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	result, ok, err := invoke(ctx)
	if err != nil {
		return false, zero, err
	}
	if !ok {
		return false, zero, nil
	}

	if err := f.Set(ctx, key, result); err != nil {
		f.logger.Debug("exec: failed to cache %q: %s", key, err)
	}
	return true, result, nil
}
