package env

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/agentuity/go-kvcache/logger"
	"github.com/agentuity/go-kvcache/telemetry"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by --backend.
const (
	BackendDurable = "durable"
	BackendSession = "session"
	BackendMemory  = "memory"
)

// Config is the resolved CLI configuration.
type Config struct {
	Backend   string
	Path      string
	RedisURL  string
	SessionID string
	Timeout   time.Duration
	Quota     int64
	Codec     string
}

// fileConfig mirrors Config in the YAML config file. Durations are strings in
// str2duration syntax, e.g. "15m" or "1d".
type fileConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	RedisURL  string `yaml:"redis_url"`
	SessionID string `yaml:"session_id"`
	Timeout   string `yaml:"timeout"`
	Quota     string `yaml:"quota"`
	Codec     string `yaml:"codec"`
}

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok && val != "" {
		return val
	}
	return defaultValue
}

func orDefault(val string, def string) string {
	if val == "" {
		return def
	}
	return val
}

func readConfigFile(filename string) (fileConfig, error) {
	var fc fileConfig
	if filename == "" {
		return fc, nil
	}
	buf, err := os.ReadFile(filename)
	if err != nil {
		return fc, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(buf, &fc); err != nil {
		return fc, errors.Wrapf(err, "parse config file %s", filename)
	}
	return fc, nil
}

// LoadConfig resolves every setting with the precedence flag, environment,
// YAML file named by --config / KVCACHE_CONFIG, then the built-in default.
func LoadConfig(cmd *cobra.Command) (*Config, error) {
	fc, err := readConfigFile(FlagOrEnv(cmd, "config", "KVCACHE_CONFIG", ""))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Backend:   FlagOrEnv(cmd, "backend", "KVCACHE_BACKEND", orDefault(fc.Backend, BackendDurable)),
		Path:      FlagOrEnv(cmd, "path", "KVCACHE_PATH", orDefault(fc.Path, "kvcache.db")),
		RedisURL:  FlagOrEnv(cmd, "redis-url", "KVCACHE_REDIS_URL", orDefault(fc.RedisURL, "redis://localhost:6379")),
		SessionID: FlagOrEnv(cmd, "session-id", "KVCACHE_SESSION_ID", orDefault(fc.SessionID, "default")),
		Codec:     FlagOrEnv(cmd, "codec", "KVCACHE_CODEC", orDefault(fc.Codec, "msgpack")),
	}
	switch cfg.Backend {
	case BackendDurable, BackendSession, BackendMemory:
	default:
		return nil, errors.Newf("invalid backend %q, expected durable, session or memory", cfg.Backend)
	}

	timeout := FlagOrEnv(cmd, "timeout", "KVCACHE_TIMEOUT", orDefault(fc.Timeout, "15m"))
	cfg.Timeout, err = str2duration.ParseDuration(timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timeout %q", timeout)
	}
	if cfg.Timeout <= 0 {
		return nil, errors.Newf("timeout must be positive, got %s", timeout)
	}

	quota := FlagOrEnv(cmd, "quota", "KVCACHE_QUOTA", orDefault(fc.Quota, "0"))
	cfg.Quota, err = strconv.ParseInt(quota, 10, 64)
	if err != nil || cfg.Quota < 0 {
		return nil, errors.Newf("invalid quota %q, expected a non-negative byte count", quota)
	}
	return cfg, nil
}

func LogLevel(cmd *cobra.Command) logger.LogLevel {
	level, _ := logger.ParseLevel(FlagOrEnv(cmd, "log-level", "KVCACHE_LOG_LEVEL", "info"))
	return level
}

// NewLogger returns a logger on stderr using the --log-level and --log-format flags,
// falling back to KVCACHE_LOG_LEVEL / KVCACHE_LOG_FORMAT and then info / console
func NewLogger(cmd *cobra.Command) logger.Logger {
	level := LogLevel(cmd)
	if FlagOrEnv(cmd, "log-format", "KVCACHE_LOG_FORMAT", "console") == "json" {
		return logger.NewJSONLogger(os.Stderr, level)
	}
	return logger.NewConsoleLoggerWithSink(os.Stderr, level)
}

// NewTelemetry returns a tracer provider exporting to --otlp-url / KVCACHE_OTLP_URL,
// authenticated with --otlp-token / KVCACHE_OTLP_TOKEN. When no URL is configured
// it returns a nil provider and a no-op shutdown so callers keep the global one.
func NewTelemetry(ctx context.Context, cmd *cobra.Command, serviceName string) (trace.TracerProvider, func(), error) {
	otlpURL := FlagOrEnv(cmd, "otlp-url", "KVCACHE_OTLP_URL", "")
	if otlpURL == "" {
		return nil, func() {}, nil
	}
	token := FlagOrEnv(cmd, "otlp-token", "KVCACHE_OTLP_TOKEN", "")
	provider, shutdown, err := telemetry.New(ctx, otlpURL, token, serviceName)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating telemetry")
	}
	return provider, shutdown, nil
}
