// Package cache provides a key/value cache facade over three interchangeable
// storage backends with a single time-based expiration horizon.
//
// # Facade
//
// [Facade] exposes [Facade.Init], [Facade.Get], [Facade.Set] and
// [Facade.Reset]. It is constructed with a preferred [Backend]; Init probes
// it with [Backend.Available] and falls back to [NewInMemory] when the probe
// fails. The unavailable backend receives no further calls.
//
//	f := cache.New(cache.NewDurable("app.db"), cache.WithTimeout(15*time.Minute))
//	if err := f.Init(ctx); err != nil {
//	    return err
//	}
//	defer f.Close()
//	_ = f.Set(ctx, "user", User{Name: "ada"})
//	found, user, err := cache.GetAs[User](ctx, f, "user")
//
// # Backends
//
//   - [NewInMemory]: process-local map. Init always starts it empty.
//
//   - [NewSession]: Redis via [github.com/redis/go-redis/v9]. All keys live
//     under "<prefix>:<session id>:", so [Backend.Clear] wipes one session and
//     leaves the rest of the server alone. [WithSessionTTL] lets idle sessions
//     age out on the server side.
//
//   - [NewDurable]: SQLite via [modernc.org/sqlite] (pure Go, no CGO). Opened
//     lazily; the probe also checks the target filesystem has free space.
//
// # Entries
//
// Values are wrapped in an [Entry] recording a type tag ("string", "number",
// "boolean" or "object") and serialized with a [Codec]. [MsgpackCodec] is the
// default; [JSONCodec] writes {"type":...,"value":...} text. The tag is
// metadata only. [Facade.Get] returns the generic decoded value (maps decode
// as map[string]any); [GetAs] decodes into a concrete type.
//
// Get returns numbers the same way for both codecs: integers as int64 (uint64
// above math.MaxInt64) and everything else as float64, including inside maps
// and slices. Set(42) reads back as int64(42). JSON text does not keep the
// int/float distinction, so a whole float such as 2.0 reads back as int64(2)
// under [JSONCodec]; use [GetAs] when the exact Go type matters.
//
// Content under a key that does not decode into exactly one Entry, trailing
// bytes included, is reported as an error matching [ErrMalformedEntry] rather
// than as a miss.
//
// # Expiration
//
// For session and durable backends Init reads the reserved key
// "_cacheTimeout" (Unix milliseconds). When absent it is written as
// now+timeout together with "_cacheTimeoutString". When present and the
// current time is past it, the whole store is reset; the horizon is recorded
// again on the next Init.
//
// # Quota
//
// Backends report capacity failures marked with [ErrQuotaExceeded] (SQLite
// SQLITE_FULL, Redis OOM, or the [WithQuota] cap). [Facade.Set] then resets
// the store and retries the write once.
package cache
