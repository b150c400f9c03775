package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitialized(t *testing.T, backend Backend, opts ...Option) *Facade {
	t.Helper()
	f := New(backend, opts...)
	require.NoError(t, f.Init(context.Background()))
	t.Cleanup(func() { f.Close() })
	return f
}

func TestExecCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := newInitialized(t, nil)

	invoked := false
	found, val, err := Exec(ctx, c, "key", func(ctx context.Context) (string, bool, error) {
		invoked = true
		return "fresh-value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fresh-value", val)
	assert.True(t, invoked)

	// Value should now be cached.
	cachedFound, cached, err := GetAs[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, cachedFound)
	assert.Equal(t, "fresh-value", cached)
}

func TestExecCacheHit(t *testing.T) {
	ctx := context.Background()
	c := newInitialized(t, nil)

	require.NoError(t, c.Set(ctx, "key", "cached-value"))

	invoked := false
	found, val, err := Exec(ctx, c, "key", func(ctx context.Context) (string, bool, error) {
		invoked = true
		return "fresh-value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cached-value", val)
	assert.False(t, invoked)
}

func TestExecInvokerError(t *testing.T) {
	ctx := context.Background()
	c := newInitialized(t, nil)

	expectedErr := fmt.Errorf("invoke failed")
	found, val, err := Exec(ctx, c, "key", func(ctx context.Context) (string, bool, error) {
		return "", false, expectedErr
	})
	assert.ErrorIs(t, err, expectedErr)
	assert.False(t, found)
	assert.Equal(t, "", val)
}

func TestExecNotFoundNotCached(t *testing.T) {
	ctx := context.Background()
	c := newInitialized(t, nil)

	calls := 0
	invoke := func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, nil
	}
	for i := 0; i < 2; i++ {
		found, _, err := Exec(ctx, c, "key", invoke)
		assert.NoError(t, err)
		assert.False(t, found)
	}
	assert.Equal(t, 2, calls)
}

func TestExecSetErrorSwallowed(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(KindDurable)
	c := newInitialized(t, backend)
	backend.writeErr = fmt.Errorf("disk gone")

	found, val, err := Exec(ctx, c, "key", func(ctx context.Context) (string, bool, error) {
		return "value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", val)
}

func TestExecMalformedPropagates(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(KindInMemory)
	c := newInitialized(t, backend)
	require.NoError(t, backend.Backend.Write(ctx, "key", "garbage"))

	_, _, err := Exec(ctx, c, "key", func(ctx context.Context) (string, bool, error) {
		t.Fatal("invoke must not run")
		return "", false, nil
	})
	assert.ErrorIs(t, err, ErrMalformedEntry)
}
