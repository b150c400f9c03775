package env

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-kvcache/logger"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	for _, name := range []string{"config", "backend", "path", "redis-url", "session-id", "timeout", "quota", "codec", "log-level", "log-format", "otlp-url", "otlp-token"} {
		cmd.Flags().String(name, "", "")
	}
	return cmd
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"KVCACHE_CONFIG", "KVCACHE_BACKEND", "KVCACHE_PATH", "KVCACHE_REDIS_URL", "KVCACHE_SESSION_ID", "KVCACHE_TIMEOUT", "KVCACHE_QUOTA", "KVCACHE_CODEC", "KVCACHE_LOG_LEVEL", "KVCACHE_LOG_FORMAT", "KVCACHE_OTLP_URL", "KVCACHE_OTLP_TOKEN"} {
		t.Setenv(name, "")
	}
}

func TestFlagOrEnv(t *testing.T) {
	clearEnv(t)
	cmd := newTestCommand(t)
	assert.Equal(t, "default", FlagOrEnv(cmd, "backend", "KVCACHE_BACKEND", "default"))

	t.Setenv("KVCACHE_BACKEND", "session")
	assert.Equal(t, "session", FlagOrEnv(cmd, "backend", "KVCACHE_BACKEND", "default"))

	require.NoError(t, cmd.Flags().Set("backend", "memory"))
	assert.Equal(t, "memory", FlagOrEnv(cmd, "backend", "KVCACHE_BACKEND", "default"))
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(newTestCommand(t))
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Backend:   BackendDurable,
		Path:      "kvcache.db",
		RedisURL:  "redis://localhost:6379",
		SessionID: "default",
		Timeout:   15 * time.Minute,
		Quota:     0,
		Codec:     "msgpack",
	}, cfg)
}

func TestLoadConfigPrecedence(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "kvcache.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
backend: session
path: from-file.db
session_id: file-session
timeout: 1d
quota: "4096"
codec: json
`), 0644))

	cmd := newTestCommand(t)
	require.NoError(t, cmd.Flags().Set("config", file))
	t.Setenv("KVCACHE_SESSION_ID", "env-session")
	require.NoError(t, cmd.Flags().Set("path", "flag.db"))

	cfg, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, BackendSession, cfg.Backend)
	assert.Equal(t, "flag.db", cfg.Path)
	assert.Equal(t, "env-session", cfg.SessionID)
	assert.Equal(t, 24*time.Hour, cfg.Timeout)
	assert.Equal(t, int64(4096), cfg.Quota)
	assert.Equal(t, "json", cfg.Codec)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		flag  string
		value string
	}{
		{"backend", "tape"},
		{"timeout", "soon"},
		{"timeout", "0s"},
		{"quota", "-1"},
		{"quota", "lots"},
		{"config", "/does/not/exist.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.flag+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			cmd := newTestCommand(t)
			require.NoError(t, cmd.Flags().Set(tt.flag, tt.value))
			_, err := LoadConfig(cmd)
			assert.Error(t, err)
		})
	}
}

func TestLogLevel(t *testing.T) {
	clearEnv(t)
	cmd := newTestCommand(t)
	assert.Equal(t, logger.LevelInfo, LogLevel(cmd))

	t.Setenv("KVCACHE_LOG_LEVEL", "debug")
	assert.Equal(t, logger.LevelDebug, LogLevel(cmd))

	require.NoError(t, cmd.Flags().Set("log-level", "error"))
	assert.Equal(t, logger.LevelError, LogLevel(cmd))
}

func TestNewLogger(t *testing.T) {
	clearEnv(t)
	cmd := newTestCommand(t)
	assert.NotNil(t, NewLogger(cmd))
	require.NoError(t, cmd.Flags().Set("log-format", "json"))
	assert.NotNil(t, NewLogger(cmd))
}

func TestNewTelemetry(t *testing.T) {
	clearEnv(t)
	cmd := newTestCommand(t)
	provider, shutdown, err := NewTelemetry(context.Background(), cmd, "kvcache")
	require.NoError(t, err)
	assert.Nil(t, provider)
	shutdown()

	require.NoError(t, cmd.Flags().Set("otlp-url", "http://127.0.0.1:4318"))
	provider, shutdown, err = NewTelemetry(context.Background(), cmd, "kvcache")
	require.NoError(t, err)
	assert.NotNil(t, provider)
	shutdown()

	require.NoError(t, cmd.Flags().Set("otlp-url", "ftp://collector"))
	_, _, err = NewTelemetry(context.Background(), cmd, "kvcache")
	assert.Error(t, err)
}
