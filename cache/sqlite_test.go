package cache

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurablePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	b := NewDurable(path)
	require.NoError(t, b.Available(ctx))
	require.NoError(t, b.Write(ctx, "k", "persisted"))
	require.NoError(t, b.Close())

	b = NewDurable(path)
	defer b.Close()
	text, found, err := b.Read(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "persisted", text)
}

func TestDurableUnavailableDirectory(t *testing.T) {
	b := NewDurable(filepath.Join(t.TempDir(), "missing", "dir", "cache.db"))
	defer b.Close()
	err := b.Available(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDurableQuota(t *testing.T) {
	ctx := context.Background()
	b := NewDurable(":memory:", WithQuota(8*4096))
	defer b.Close()
	require.NoError(t, b.Available(ctx))

	err := b.Write(ctx, "big", strings.Repeat("x", 64*1024))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	require.NoError(t, b.Clear(ctx))
	require.NoError(t, b.Write(ctx, "small", "fits"))
}

func TestIsDiskFull(t *testing.T) {
	assert.False(t, isDiskFull(nil))
	assert.False(t, isDiskFull(errors.New("constraint failed")))
	assert.True(t, isDiskFull(errors.New("database or disk is full (13)")))
}
