package cache

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/disk"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const memoryPath = ":memory:"

type durableBackend struct {
	path  string
	cfg   config
	db    *sql.DB
	mutex sync.Mutex
	once  sync.Once
}

var _ Backend = (*durableBackend)(nil)

// NewDurable returns a Backend persisted in the SQLite database at path. If path
// is empty or ":memory:", an in-memory database is used. The database is opened
// lazily by Available or the first operation.
func NewDurable(path string, opts ...Option) Backend {
	if path == "" {
		path = memoryPath
	}
	return &durableBackend{
		path: path,
		cfg:  applyOptions(opts),
	}
}

func (b *durableBackend) Kind() Kind {
	return KindDurable
}

func (b *durableBackend) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, b.cfg.queryTimeout)
}

func (b *durableBackend) open(ctx context.Context) (*sql.DB, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.db != nil {
		return b.db, nil
	}

	if b.path != memoryPath {
		if err := checkDisk(ctx, filepath.Dir(b.path)); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", b.path)
	if err != nil {
		return nil, err
	}
	// max_page_count is per connection and ":memory:" is per connection, so
	// keep exactly one.
	db.SetMaxOpenConns(1)

	qctx, cancel := b.queryCtx(ctx)
	defer cancel()

	if _, err := db.ExecContext(qctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(qctx, `CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if b.cfg.quota > 0 {
		var pageSize int64
		if err := db.QueryRowContext(qctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
			db.Close()
			return nil, err
		}
		pages := max(b.cfg.quota/pageSize, 1)
		if _, err := db.ExecContext(qctx, fmt.Sprintf("PRAGMA max_page_count = %d", pages)); err != nil {
			db.Close()
			return nil, err
		}
	}
	b.db = db
	return db, nil
}

// checkDisk fails when dir is missing or its filesystem reports no free space.
func checkDisk(ctx context.Context, dir string) error {
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return errors.Wrapf(err, "stat %s", dir)
	}
	if usage.Free == 0 {
		return errors.Newf("no free space on %s", usage.Path)
	}
	return nil
}

func (b *durableBackend) Available(ctx context.Context) error {
	db, err := b.open(ctx)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "open %s", b.path), ErrUnavailable)
	}
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	if err := db.PingContext(qctx); err != nil {
		return errors.Mark(errors.Wrapf(err, "ping %s", b.path), ErrUnavailable)
	}
	return nil
}

func (b *durableBackend) Read(ctx context.Context, key string) (string, bool, error) {
	db, err := b.open(ctx)
	if err != nil {
		return "", false, err
	}
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	var data []byte
	err = db.QueryRowContext(qctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (b *durableBackend) Write(ctx context.Context, key string, text string) error {
	db, err := b.open(ctx)
	if err != nil {
		return err
	}
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	_, err = db.ExecContext(qctx,
		`INSERT INTO kv_entries (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, []byte(text),
	)
	if isDiskFull(err) {
		return markQuota(err)
	}
	return err
}

func (b *durableBackend) Clear(ctx context.Context) error {
	db, err := b.open(ctx)
	if err != nil {
		return err
	}
	qctx, cancel := b.queryCtx(ctx)
	defer cancel()
	_, err = db.ExecContext(qctx, `DELETE FROM kv_entries`)
	return err
}

func (b *durableBackend) Close() error {
	var dbErr error
	b.once.Do(func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		if b.db != nil {
			dbErr = b.db.Close()
		}
	})
	return dbErr
}

func isDiskFull(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_FULL {
		return true
	}
	return strings.Contains(err.Error(), "database or disk is full")
}
