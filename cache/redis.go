package cache

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// clearBatch bounds the keys fetched per SCAN and deleted per DEL.
const clearBatch = 100

type sessionBackend struct {
	client    *redis.Client
	cfg       config
	namespace string
}

var _ Backend = (*sessionBackend)(nil)

// NewSession returns a Backend scoped to one session inside Redis. Every key is
// stored under "<prefix>:<session id>:" so Clear only wipes this session.
// The caller owns the redis.Client lifecycle; Close is a no-op on the client.
func NewSession(client *redis.Client, opts ...Option) Backend {
	cfg := applyOptions(opts)
	if cfg.sessionID == "" {
		cfg.sessionID = uuid.NewString()
	}
	namespace := cfg.sessionID + ":"
	if cfg.prefix != "" {
		namespace = cfg.prefix + ":" + namespace
	}
	return &sessionBackend{
		client:    client,
		cfg:       cfg,
		namespace: namespace,
	}
}

func (b *sessionBackend) Kind() Kind {
	return KindSession
}

func (b *sessionBackend) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, b.cfg.queryTimeout)
}

func (b *sessionBackend) key(key string) string {
	return b.namespace + key
}

func (b *sessionBackend) Available(ctx context.Context) error {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	if err := b.client.Ping(qctx).Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "ping redis"), ErrUnavailable)
	}
	return nil
}

func (b *sessionBackend) Read(ctx context.Context, key string) (string, bool, error) {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	text, err := b.client.Get(qctx, b.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (b *sessionBackend) Write(ctx context.Context, key string, text string) error {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	err := b.client.Set(qctx, b.key(key), text, b.cfg.sessionTTL).Err()
	if isOutOfMemory(err) {
		return markQuota(err)
	}
	return err
}

func (b *sessionBackend) Clear(ctx context.Context) error {
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	iter := b.client.Scan(qctx, 0, escapeGlob(b.namespace)+"*", clearBatch).Iterator()
	keys := make([]string, 0, clearBatch)
	for iter.Next(qctx) {
		keys = append(keys, iter.Val())
		if len(keys) == clearBatch {
			if err := b.client.Del(qctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return b.client.Del(qctx, keys...).Err()
	}
	return nil
}

// Close is a no-op; the caller owns the redis.Client lifecycle.
func (b *sessionBackend) Close() error {
	return nil
}

// isOutOfMemory reports a redis OOM reply, sent when maxmemory is reached.
func isOutOfMemory(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "OOM ")
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
