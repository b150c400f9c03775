package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "kvcache",
		Short:         "Inspect and edit a kvcache store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "YAML config file (env KVCACHE_CONFIG)")
	flags.String("backend", "", "storage backend: durable, session or memory (env KVCACHE_BACKEND)")
	flags.String("path", "", "SQLite file for the durable backend (env KVCACHE_PATH)")
	flags.String("redis-url", "", "Redis URL for the session backend (env KVCACHE_REDIS_URL)")
	flags.String("session-id", "", "session namespace for the session backend (env KVCACHE_SESSION_ID)")
	flags.String("timeout", "", "expiration timeout, e.g. 15m or 1d (env KVCACHE_TIMEOUT)")
	flags.String("quota", "", "store capacity in bytes, 0 for unlimited (env KVCACHE_QUOTA)")
	flags.String("codec", "", "entry codec: msgpack or json (env KVCACHE_CODEC)")
	flags.String("log-level", "", "log level (env KVCACHE_LOG_LEVEL)")
	flags.String("log-format", "", "log format: console or json (env KVCACHE_LOG_FORMAT)")
	flags.String("otlp-url", "", "OTLP/HTTP collector for traces (env KVCACHE_OTLP_URL)")
	flags.String("otlp-token", "", "bearer token for the OTLP collector (env KVCACHE_OTLP_TOKEN)")

	root.AddCommand(newStatusCommand(), newGetCommand(), newSetCommand(), newResetCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
