// Package config initializes the application's configuration. It uses Viper
// to read settings from a config file and environment variables, providing a
// unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/logging"
)

// InitConfig initializes Viper: search paths, defaults, and the environment
// override prefix. Called once at application startup.
func InitConfig() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/aqfetch/")
	viper.AddConfigPath("$HOME/.aqfetch")

	// Fetch run defaults.
	viper.SetDefault("fetch.max_in_flight", 256)
	viper.SetDefault("fetch.buffer_size", 256)
	viper.SetDefault("fetch.timeout", "10m")

	// Shared adapter HTTP client.
	viper.SetDefault("http.timeout", "15s")
	viper.SetDefault("http.max_attempts", 3)
	viper.SetDefault("http.requests_per_second", 0)

	// Storage sink.
	viper.SetDefault("storage.provider", "noop")
	viper.SetDefault("storage.gcs.bucket_name", "")
	viper.SetDefault("storage.gcs.chunk_bytes", 8*1024*1024)

	// Work queue.
	viper.SetDefault("queue.provider", "memory")
	viper.SetDefault("queue.memory.capacity", 128)
	viper.SetDefault("queue.gcp.project_id", "")
	viper.SetDefault("queue.gcp.topic_id", "")
	viper.SetDefault("queue.gcp.subscription_id", "")

	// Report persistence.
	viper.SetDefault("reports.provider", "noop")
	viper.SetDefault("reports.postgres.dsn", "")
	viper.SetDefault("reports.postgres.table", "fetch_reports")

	// Completion report delivery.
	viper.SetDefault("notify.provider", "log")
	viper.SetDefault("notify.webhook.url", "")
	viper.SetDefault("notify.webhook.timeout", "10s")

	// Introspection server for the worker loop.
	viper.SetDefault("api.addr", ":8080")

	viper.SetEnvPrefix("AQFETCH") // e.g. AQFETCH_STORAGE_PROVIDER=gcs
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
