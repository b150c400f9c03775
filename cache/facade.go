package cache

import (
	"context"
	"sync"
	"time"

	"github.com/agentuity/go-kvcache/logger"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// timeoutKey holds the expiration horizon in Unix milliseconds.
	timeoutKey = "_cacheTimeout"
	// timeoutStringKey holds the horizon formatted as RFC 3339.
	timeoutStringKey = "_cacheTimeoutString"

	tracerName = "github.com/agentuity/go-kvcache/cache"
)

// Cache is the get/set/reset surface of a Facade.
type Cache interface {
	// Init selects the active backend and runs the expiration check.
	Init(ctx context.Context) error
	// Get returns the value stored under key and whether it was present.
	Get(ctx context.Context, key string) (bool, any, error)
	// Set stores value under key, resetting the store and retrying once if
	// the store is full.
	Set(ctx context.Context, key string, value any) error
	// Reset wipes the active store.
	Reset(ctx context.Context) error
	// Kind reports the active backend.
	Kind() Kind
	// Close releases the backends.
	Close() error
}

// Facade routes cache operations to the backend chosen by Init.
type Facade struct {
	preferred Backend
	active    Backend
	fallback  func() Backend
	mutex     sync.RWMutex
	once      sync.Once
	cfg       config
	logger    logger.Logger
	tracer    trace.Tracer
}

var _ Cache = (*Facade)(nil)

// New returns a Facade that prefers the given backend. A nil preferred backend
// selects memory. Init must be called before any other operation.
func New(preferred Backend, opts ...Option) *Facade {
	cfg := applyOptions(opts)
	if preferred == nil {
		preferred = NewInMemory(opts...)
	}
	log := cfg.logger
	if log == nil {
		log = logger.NewConsoleLogger(logger.LevelNone)
	}
	tp := cfg.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Facade{
		preferred: preferred,
		fallback:  func() Backend { return NewInMemory(WithQuota(cfg.quota)) },
		cfg:       cfg,
		logger:    log.WithPrefix("[cache]"),
		tracer:    tp.Tracer(tracerName),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Init probes the preferred backend and falls back to memory when it is
// unavailable. Session and durable backends then get an expiration check:
// the first Init records a horizon of now+timeout, a later Init past that
// horizon wipes the store. A memory backend starts empty. Calling Init again
// re-probes and re-checks.
func (f *Facade) Init(ctx context.Context) (err error) {
	ctx, span := f.tracer.Start(ctx, "cache.Init")
	defer func() { endSpan(span, err) }()

	f.mutex.Lock()
	defer f.mutex.Unlock()

	backend := f.preferred
	if perr := backend.Available(ctx); perr != nil {
		f.logger.Warn("%s backend unavailable, falling back to memory: %s", backend.Kind(), perr)
		backend = f.fallback()
	}
	if f.active != nil && f.active != f.preferred && f.active != backend {
		if cerr := f.active.Close(); cerr != nil {
			f.logger.Debug("closing previous %s backend: %s", f.active.Kind(), cerr)
		}
	}
	f.active = backend
	span.SetAttributes(attribute.String("cache.backend", backend.Kind().String()))
	f.logger.Debug("initialized %s backend", backend.Kind())

	switch backend.Kind() {
	case KindSession, KindDurable:
		return f.checkExpiration(ctx, backend)
	default:
		return backend.Clear(ctx)
	}
}

func (f *Facade) checkExpiration(ctx context.Context, backend Backend) error {
	now := f.cfg.now()
	found, horizon, err := readAs[int64](ctx, f, backend, timeoutKey)
	if err != nil {
		if !errors.Is(err, ErrMalformedEntry) {
			return errors.Wrap(err, "cache: read expiration horizon")
		}
		f.logger.Warn("discarding unreadable expiration horizon: %s", err)
		return f.reset(ctx, backend)
	}
	if !found {
		expires := now.Add(f.cfg.timeout)
		if err := f.write(ctx, backend, timeoutKey, expires.UnixMilli()); err != nil {
			return err
		}
		if err := f.write(ctx, backend, timeoutStringKey, expires.Format(time.RFC3339)); err != nil {
			return err
		}
		f.logger.Debug("expiration horizon set to %s", expires.Format(time.RFC3339))
		return nil
	}
	if elapsed := now.UnixMilli() - horizon; elapsed > 0 {
		f.logger.Info("cache expired %s ago, resetting", time.Duration(elapsed)*time.Millisecond)
		return f.reset(ctx, backend)
	}
	return nil
}

func (f *Facade) backend() (Backend, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	if f.active == nil {
		return nil, ErrNotInitialized
	}
	return f.active, nil
}

// Kind returns the active backend kind, or KindUninitialized before Init.
func (f *Facade) Kind() Kind {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	if f.active == nil {
		return KindUninitialized
	}
	return f.active.Kind()
}

// Get returns the value stored under key. A key that was never set, or was
// wiped, returns found=false and no error. Content that is not a serialized
// Entry returns an error matching ErrMalformedEntry.
func (f *Facade) Get(ctx context.Context, key string) (found bool, val any, err error) {
	ctx, span := f.tracer.Start(ctx, "cache.Get", trace.WithAttributes(attribute.String("cache.key", key)))
	defer func() { endSpan(span, err) }()
	backend, err := f.backend()
	if err != nil {
		return false, nil, err
	}
	return readAs[any](ctx, f, backend, key)
}

// GetAs retrieves the value stored under key decoded into T.
func GetAs[T any](ctx context.Context, f *Facade, key string) (found bool, val T, err error) {
	ctx, span := f.tracer.Start(ctx, "cache.Get", trace.WithAttributes(attribute.String("cache.key", key)))
	defer func() { endSpan(span, err) }()
	backend, err := f.backend()
	if err != nil {
		return false, val, err
	}
	return readAs[T](ctx, f, backend, key)
}

func readAs[T any](ctx context.Context, f *Facade, backend Backend, key string) (bool, T, error) {
	var zero T
	text, ok, err := backend.Read(ctx, key)
	if err != nil {
		return false, zero, errors.Wrapf(err, "cache: read %q", key)
	}
	if !ok {
		return false, zero, nil
	}
	val, err := decodeEntry[T](f.cfg.codec, key, text)
	if err != nil {
		return false, zero, err
	}
	return true, val, nil
}

// Set stores value under key. When the store reports ErrQuotaExceeded the whole
// store is reset and the write retried once; a second failure is returned.
func (f *Facade) Set(ctx context.Context, key string, value any) (err error) {
	ctx, span := f.tracer.Start(ctx, "cache.Set", trace.WithAttributes(attribute.String("cache.key", key)))
	defer func() { endSpan(span, err) }()
	backend, err := f.backend()
	if err != nil {
		return err
	}
	return f.write(ctx, backend, key, value)
}

func (f *Facade) write(ctx context.Context, backend Backend, key string, value any) error {
	text, err := encodeEntry(f.cfg.codec, value)
	if err != nil {
		return errors.Wrapf(err, "cache: encode %q", key)
	}
	err = backend.Write(ctx, key, text)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return errors.Wrapf(err, "cache: write %q", key)
	}
	f.logger.Warn("quota exceeded writing %q, resetting %s store and retrying", key, backend.Kind())
	if err := f.reset(ctx, backend); err != nil {
		return err
	}
	if err := backend.Write(ctx, key, text); err != nil {
		return errors.Wrapf(err, "cache: retry write %q", key)
	}
	return nil
}

// Reset wipes every entry in the active store, including the expiration
// horizon. Resetting an empty store succeeds.
func (f *Facade) Reset(ctx context.Context) (err error) {
	ctx, span := f.tracer.Start(ctx, "cache.Reset")
	defer func() { endSpan(span, err) }()
	backend, err := f.backend()
	if err != nil {
		return err
	}
	return f.reset(ctx, backend)
}

func (f *Facade) reset(ctx context.Context, backend Backend) error {
	if err := backend.Clear(ctx); err != nil {
		return errors.Wrapf(err, "cache: clear %s store", backend.Kind())
	}
	return nil
}

// Horizon returns the recorded expiration horizon, if any.
func (f *Facade) Horizon(ctx context.Context) (bool, time.Time, error) {
	found, ms, err := GetAs[int64](ctx, f, timeoutKey)
	if !found || err != nil {
		return false, time.Time{}, err
	}
	return true, time.UnixMilli(ms), nil
}

// Close closes the preferred and active backends once.
func (f *Facade) Close() error {
	var err error
	f.once.Do(func() {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		err = f.preferred.Close()
		if f.active != nil && f.active != f.preferred {
			err = errors.CombineErrors(err, f.active.Close())
		}
	})
	return err
}
