// Package cmd defines and implements the CLI commands for the aqfetch
// executable.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/app"
	appconfig "github.com/aeropoint/aqfetch/internal/config"
	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/logging"
	"github.com/aeropoint/aqfetch/internal/notify"
	"github.com/aeropoint/aqfetch/internal/queue"
	"github.com/aeropoint/aqfetch/internal/reports"
	"github.com/aeropoint/aqfetch/internal/storage"
	"github.com/aeropoint/aqfetch/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface commands use. This allows injecting
// a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetRegistry() *fetch.Registry
	GetStorage() storage.Provider
	GetPublisher() queue.Publisher
	GetConsumer() queue.Consumer
	GetReports() reports.Store
	GetNotifier() notify.Notifier
	GetRunConfig() appconfig.Config
}

// newApp is the application factory. It's a variable so tests can replace it
// with a mock factory.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aqfetch",
		Short: "Fetches air quality measurements from configured providers.",
		Long: `aqfetch is the ingestion tool for the Aeropoint measurement platform.
It pulls readings from dozens of heterogeneous providers, normalizes them to
one canonical record shape, and streams the result to object storage while
reporting per-source success and failure statistics.`,

		// Runs after config loads but before the subcommand's RunE: build and
		// inject the application container.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// Ensures services shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		config.InitConfig()
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aqfetch/config.yaml)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newWorkCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	logging.InitLogger()

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}
