package main

import (
	"context"

	"github.com/agentuity/go-kvcache/cache"
	"github.com/agentuity/go-kvcache/env"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// openCache builds the facade described by the command's configuration and
// runs Init. The returned close func releases the facade and any client.
func openCache(ctx context.Context, cmd *cobra.Command) (*cache.Facade, func(), error) {
	cfg, err := env.LoadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log := env.NewLogger(cmd)
	codec, err := cache.CodecByName(cfg.Codec)
	if err != nil {
		return nil, nil, err
	}
	tp, shutdown, err := env.NewTelemetry(ctx, cmd, "kvcache")
	if err != nil {
		return nil, nil, err
	}
	opts := []cache.Option{
		cache.WithTimeout(cfg.Timeout),
		cache.WithQuota(cfg.Quota),
		cache.WithCodec(codec),
		cache.WithLogger(log),
		cache.WithSessionID(cfg.SessionID),
	}
	if tp != nil {
		opts = append(opts, cache.WithTracerProvider(tp))
	}

	var (
		backend cache.Backend
		client  *redis.Client
	)
	switch cfg.Backend {
	case env.BackendDurable:
		backend = cache.NewDurable(cfg.Path, opts...)
	case env.BackendSession:
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			shutdown()
			return nil, nil, errors.Wrap(err, "parse redis url")
		}
		client = redis.NewClient(redisOpts)
		backend = cache.NewSession(client, opts...)
	default:
		backend = cache.NewInMemory(opts...)
	}

	f := cache.New(backend, opts...)
	closer := func() {
		if err := f.Close(); err != nil {
			log.Warn("close cache: %s", err)
		}
		if client != nil {
			client.Close()
		}
		shutdown()
	}
	if err := f.Init(ctx); err != nil {
		closer()
		return nil, nil, err
	}
	return f, closer, nil
}
