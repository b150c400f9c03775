package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeBackend wraps a memory store, counts calls and injects failures.
type fakeBackend struct {
	Backend
	kind          Kind
	mutex         sync.Mutex
	calls         map[string]int
	unavailable   error
	quotaFailures int
	writeErr      error
	closeErr      error
}

func newFakeBackend(kind Kind) *fakeBackend {
	return &fakeBackend{
		Backend: NewInMemory(),
		kind:    kind,
		calls:   make(map[string]int),
	}
}

func (b *fakeBackend) count(op string) {
	b.mutex.Lock()
	b.calls[op]++
	b.mutex.Unlock()
}

func (b *fakeBackend) Calls(op string) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.calls[op]
}

func (b *fakeBackend) Kind() Kind {
	return b.kind
}

func (b *fakeBackend) Available(ctx context.Context) error {
	b.count("available")
	if b.unavailable != nil {
		return errors.Mark(b.unavailable, ErrUnavailable)
	}
	return b.Backend.Available(ctx)
}

func (b *fakeBackend) Read(ctx context.Context, key string) (string, bool, error) {
	b.count("read")
	return b.Backend.Read(ctx, key)
}

func (b *fakeBackend) Write(ctx context.Context, key string, text string) error {
	b.count("write")
	if b.writeErr != nil {
		return b.writeErr
	}
	if b.quotaFailures > 0 {
		b.quotaFailures--
		return markQuota(errors.New("QuotaExceededError"))
	}
	return b.Backend.Write(ctx, key, text)
}

func (b *fakeBackend) Clear(ctx context.Context) error {
	b.count("clear")
	return b.Backend.Clear(ctx)
}

func (b *fakeBackend) Close() error {
	b.count("close")
	if b.closeErr != nil {
		return b.closeErr
	}
	return b.Backend.Close()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// backendFactories builds one fresh backend of every kind.
func backendFactories(t *testing.T) map[string]func(opts ...Option) Backend {
	t.Helper()
	return map[string]func(opts ...Option) Backend{
		"memory": func(opts ...Option) Backend {
			return NewInMemory(opts...)
		},
		"durable": func(opts ...Option) Backend {
			return NewDurable(":memory:", opts...)
		},
		"session": func(opts ...Option) Backend {
			_, client := newTestRedis(t)
			return NewSession(client, opts...)
		},
	}
}

func TestBackendContract(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			b := factory()
			defer b.Close()
			require.NoError(t, b.Available(ctx))

			_, found, err := b.Read(ctx, "missing")
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, b.Write(ctx, "k", "v1"))
			require.NoError(t, b.Write(ctx, "k", "v2"))
			require.NoError(t, b.Write(ctx, "other", "x"))
			text, found, err := b.Read(ctx, "k")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, "v2", text)

			require.NoError(t, b.Clear(ctx))
			require.NoError(t, b.Clear(ctx))
			for _, key := range []string{"k", "other"} {
				_, found, err = b.Read(ctx, key)
				require.NoError(t, err)
				require.False(t, found)
			}
		})
	}
}

func TestBackendKinds(t *testing.T) {
	_, client := newTestRedis(t)
	require.Equal(t, KindInMemory, NewInMemory().Kind())
	require.Equal(t, KindDurable, NewDurable("").Kind())
	require.Equal(t, KindSession, NewSession(client).Kind())
	require.Equal(t, "memory", KindInMemory.String())
	require.Equal(t, "session", KindSession.String())
	require.Equal(t, "durable", KindDurable.String())
	require.Equal(t, "uninitialized", KindUninitialized.String())
}
