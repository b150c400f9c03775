package cache

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

type inMemoryBackend struct {
	data  map[string]string
	mutex sync.Mutex
	size  int64
	quota int64
}

var _ Backend = (*inMemoryBackend)(nil)

// NewInMemory returns a Backend holding entries in a process-local map. Only
// WithQuota applies.
func NewInMemory(opts ...Option) Backend {
	cfg := applyOptions(opts)
	return &inMemoryBackend{
		data:  make(map[string]string),
		quota: cfg.quota,
	}
}

func (b *inMemoryBackend) Kind() Kind {
	return KindInMemory
}

func (b *inMemoryBackend) Available(_ context.Context) error {
	return nil
}

func (b *inMemoryBackend) Read(_ context.Context, key string) (string, bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	text, ok := b.data[key]
	return text, ok, nil
}

func (b *inMemoryBackend) Write(_ context.Context, key string, text string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	size := b.size + int64(len(key)+len(text))
	if old, ok := b.data[key]; ok {
		size -= int64(len(key) + len(old))
	}
	if b.quota > 0 && size > b.quota {
		return markQuota(errors.Newf("memory store holds %d of %d bytes", b.size, b.quota))
	}
	b.data[key] = text
	b.size = size
	return nil
}

func (b *inMemoryBackend) Clear(_ context.Context) error {
	b.mutex.Lock()
	b.data = make(map[string]string)
	b.size = 0
	b.mutex.Unlock()
	return nil
}

func (b *inMemoryBackend) Close() error {
	return nil
}
