// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/adapters"
	"github.com/aeropoint/aqfetch/internal/config"
	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/httpclient"
	"github.com/aeropoint/aqfetch/internal/logging"
	"github.com/aeropoint/aqfetch/internal/notify"
	"github.com/aeropoint/aqfetch/internal/queue"
	"github.com/aeropoint/aqfetch/internal/reports"
	"github.com/aeropoint/aqfetch/internal/storage"
)

// App holds the shared, long-lived services: logger, adapter registry, blob
// storage, queue, report store, and notifier. Initialized once at startup and
// passed to the commands that need it.
type App struct {
	logger    *zap.Logger
	registry  *fetch.Registry
	storage   storage.Provider
	publisher queue.Publisher
	consumer  queue.Consumer
	reports   reports.Store
	notifier  notify.Notifier
	runConfig config.Config

	closeStorage func() error
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger { return a.logger }

// GetRegistry returns the adapter registry with builtins registered.
func (a *App) GetRegistry() *fetch.Registry { return a.registry }

// GetStorage exposes the configured blob storage provider.
func (a *App) GetStorage() storage.Provider { return a.storage }

// GetPublisher returns the job queue publisher.
func (a *App) GetPublisher() queue.Publisher { return a.publisher }

// GetConsumer returns the job queue consumer, or nil when the configured
// queue cannot consume (a publish-only provider).
func (a *App) GetConsumer() queue.Consumer { return a.consumer }

// GetReports returns the report store.
func (a *App) GetReports() reports.Store { return a.reports }

// GetNotifier returns the completion report notifier.
func (a *App) GetNotifier() notify.Notifier { return a.notifier }

// GetRunConfig returns the loaded sources and deployments.
func (a *App) GetRunConfig() config.Config { return a.runConfig }

// NewApp creates and initializes an App from the Viper configuration. It is
// the central point for service initialization and fails fast if any critical
// service cannot be built.
func NewApp(ctx context.Context) (*App, error) {
	l := logging.L
	l.Info("Initializing application services...")

	runConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load run configuration: %w", err)
	}

	registry := fetch.NewRegistry()
	client := httpclient.New(httpclient.Config{
		Timeout:           viper.GetDuration("http.timeout"),
		MaxAttempts:       viper.GetInt("http.max_attempts"),
		RequestsPerSecond: viper.GetFloat64("http.requests_per_second"),
	})
	if err := adapters.RegisterBuiltins(registry, client); err != nil {
		return nil, fmt.Errorf("register adapters: %w", err)
	}

	app := &App{
		logger:    l,
		registry:  registry,
		runConfig: runConfig,
	}

	if err := app.initStorage(ctx, l); err != nil {
		return nil, err
	}
	if err := app.initQueue(ctx, l); err != nil {
		return nil, err
	}
	if err := app.initReports(ctx, l); err != nil {
		return nil, err
	}
	app.initNotifier(l)

	l.Info("Application services initialized successfully.",
		zap.Int("sources", len(runConfig.Sources)),
		zap.Int("deployments", len(runConfig.Deployments)),
		zap.Strings("adapters", registry.Keys()),
	)
	return app, nil
}

func (a *App) initStorage(ctx context.Context, l *zap.Logger) error {
	switch provider := viper.GetString("storage.provider"); provider {
	case "gcs":
		bucket := viper.GetString("storage.gcs.bucket_name")
		if bucket == "" {
			return fmt.Errorf("storage provider is 'gcs' but storage.gcs.bucket_name is not set")
		}
		l.Info("Using GCS storage provider", zap.String("bucket", bucket))
		gcs, err := storage.NewGCSProvider(ctx, bucket, viper.GetInt("storage.gcs.chunk_bytes"))
		if err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		a.storage = gcs
		a.closeStorage = gcs.Close
	case "memory":
		l.Info("Using in-memory storage provider.")
		a.storage = storage.NewMemoryProvider()
	case "noop":
		l.Info("Using No-Op storage provider. Records will be discarded.")
		a.storage = &storage.NoOpProvider{}
	default:
		return fmt.Errorf("unknown storage provider: %s", provider)
	}
	return nil
}

func (a *App) initQueue(ctx context.Context, l *zap.Logger) error {
	switch provider := viper.GetString("queue.provider"); provider {
	case "pubsub":
		projectID := viper.GetString("queue.gcp.project_id")
		topicID := viper.GetString("queue.gcp.topic_id")
		if projectID == "" || topicID == "" {
			return fmt.Errorf("queue provider is 'pubsub' but project_id or topic_id is not set")
		}
		l.Info("Connecting to GCP Pub/Sub", zap.String("topic", topicID))
		ps, err := queue.NewPubSubProvider(ctx, projectID, topicID, viper.GetString("queue.gcp.subscription_id"))
		if err != nil {
			return fmt.Errorf("initialize queue: %w", err)
		}
		a.publisher = ps
		a.consumer = ps
	case "memory":
		l.Info("Using in-memory queue provider.")
		mq := queue.NewMemoryQueue(viper.GetInt("queue.memory.capacity"))
		a.publisher = mq
		a.consumer = mq
	case "noop":
		l.Info("Using No-Op queue provider. No jobs will be published.")
		a.publisher = &queue.NoOpPublisher{}
	default:
		return fmt.Errorf("unknown queue provider: %s", provider)
	}
	return nil
}

func (a *App) initReports(ctx context.Context, l *zap.Logger) error {
	switch provider := viper.GetString("reports.provider"); provider {
	case "postgres":
		dsn := viper.GetString("reports.postgres.dsn")
		if dsn == "" {
			return fmt.Errorf("reports provider is 'postgres' but reports.postgres.dsn is not set")
		}
		l.Info("Connecting to PostgreSQL report store...")
		store, err := reports.NewPostgresStore(ctx, reports.PostgresConfig{
			DSN:   dsn,
			Table: viper.GetString("reports.postgres.table"),
		})
		if err != nil {
			return fmt.Errorf("initialize report store: %w", err)
		}
		a.reports = store
	case "noop":
		l.Info("Using No-Op report store. Reports will not be persisted.")
		a.reports = reports.NoOpStore{}
	default:
		return fmt.Errorf("unknown reports provider: %s", provider)
	}
	return nil
}

func (a *App) initNotifier(l *zap.Logger) {
	switch provider := viper.GetString("notify.provider"); provider {
	case "webhook":
		url := viper.GetString("notify.webhook.url")
		if url == "" {
			l.Warn("notify provider is 'webhook' but notify.webhook.url is not set; falling back to log")
			a.notifier = &notify.LogNotifier{Logger: l}
			return
		}
		a.notifier = notify.NewWebhookNotifier(url, viper.GetDuration("notify.webhook.timeout"))
	default:
		a.notifier = &notify.LogNotifier{Logger: l}
	}
}

// Close gracefully shuts down services. Called by a Cobra hook after the
// command finishes.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")
	if a.reports != nil {
		a.reports.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Error closing queue client", zap.Error(err))
		}
	}
	if a.closeStorage != nil {
		if err := a.closeStorage(); err != nil {
			a.logger.Warn("Error closing storage client", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		// Best effort; logging itself may be failing.
		a.logger.Warn("Error syncing logger on shutdown", zap.Error(err))
	}
}
