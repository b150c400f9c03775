package cache

import (
	"context"
	"time"

	"github.com/agentuity/go-kvcache/logger"
	"go.opentelemetry.io/otel/trace"
)

// Kind identifies which storage strategy a Backend implements.
type Kind int

const (
	KindUninitialized Kind = iota
	KindInMemory
	KindSession
	KindDurable
)

func (k Kind) String() string {
	switch k {
	case KindInMemory:
		return "memory"
	case KindSession:
		return "session"
	case KindDurable:
		return "durable"
	default:
		return "uninitialized"
	}
}

// Backend is the capability contract every storage strategy satisfies. Values are
// the text form of a serialized Entry; a Backend never interprets them.
type Backend interface {
	// Kind reports which strategy this backend implements.
	Kind() Kind
	// Available probes the underlying store. A non-nil error means the store
	// cannot be used and the Facade will fall back to memory.
	Available(ctx context.Context) error
	// Read returns the text stored under key and whether it was present.
	Read(ctx context.Context, key string) (string, bool, error)
	// Write stores text under key. Capacity failures match ErrQuotaExceeded.
	Write(ctx context.Context, key string, text string) error
	// Clear removes every entry in the store.
	Clear(ctx context.Context) error
	// Close releases resources held by the backend.
	Close() error
}

// DefaultTimeout is the lifetime of the expiration horizon recorded by Init.
const DefaultTimeout = 900 * time.Second

// DefaultQueryTimeout is the per-operation timeout for backends that perform
// I/O (SQLite, Redis).
const DefaultQueryTimeout = 5 * time.Second

// DefaultPrefix namespaces the keys of the Session backend.
const DefaultPrefix = "kvcache"

// config holds the resolved configuration shared by the Facade and backends.
type config struct {
	timeout        time.Duration
	queryTimeout   time.Duration
	quota          int64
	prefix         string
	sessionID      string
	sessionTTL     time.Duration
	codec          Codec
	logger         logger.Logger
	now            func() time.Time
	tracerProvider trace.TracerProvider
}

// Option configures a Facade or a Backend. Options that do not apply to the
// value being constructed are ignored.
type Option func(*config)

func defaultConfig() config {
	return config{
		timeout:      DefaultTimeout,
		queryTimeout: DefaultQueryTimeout,
		prefix:       DefaultPrefix,
		codec:        MsgpackCodec,
		now:          time.Now,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTimeout sets how long the expiration horizon lasts. Defaults to
// DefaultTimeout (15 minutes).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed stores.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithQuota caps the bytes a store may hold. Writes past the cap fail with
// ErrQuotaExceeded. Zero means unlimited.
func WithQuota(bytes int64) Option {
	return func(c *config) { c.quota = bytes }
}

// WithPrefix sets the key prefix of the Session backend.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithSessionID pins the session namespace. Defaults to a random UUID.
func WithSessionID(id string) Option {
	return func(c *config) { c.sessionID = id }
}

// WithSessionTTL makes every Session write refresh a TTL on the written key.
func WithSessionTTL(d time.Duration) Option {
	return func(c *config) { c.sessionTTL = d }
}

// WithCodec selects the Entry serializer. Defaults to MsgpackCodec.
func WithCodec(codec Codec) Option {
	return func(c *config) { c.codec = codec }
}

// WithLogger sets the logger used by the Facade.
func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.logger = log }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithTracerProvider sets the provider used for operation spans. Defaults to
// the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}
