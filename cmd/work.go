package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/api"
	"github.com/aeropoint/aqfetch/internal/clock/system"
	"github.com/aeropoint/aqfetch/internal/orchestrator"
	"github.com/aeropoint/aqfetch/internal/storage"
	"github.com/aeropoint/aqfetch/internal/worker"
)

// newWorkCmd creates the 'work' subcommand: a long-running loop consuming
// fetch jobs from the queue, with an HTTP introspection server alongside.
func newWorkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Consumes fetch jobs from the work queue",
		Long: `Blocks consuming scheduled fetch jobs from the configured queue,
executing one orchestrator invocation per job. Serves health, status, and
Prometheus metrics endpoints while running. Stops cleanly on SIGINT/SIGTERM,
letting in-flight uploads finish.`,
		RunE: runWorkCommand,
	}
	return cmd
}

func runWorkCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	consumer := appInstance.GetConsumer()
	if consumer == nil {
		return fmt.Errorf("configured queue provider cannot consume jobs")
	}

	baseCfg := orchestrator.Config{
		MaxInFlight: viper.GetInt("fetch.max_in_flight"),
		BufferSize:  viper.GetInt("fetch.buffer_size"),
		Timeout:     viper.GetDuration("fetch.timeout"),
	}
	sink := storage.NewSink(appInstance.GetStorage(), logger)
	w := worker.New(
		appInstance.GetRegistry(),
		sink,
		consumer,
		orchestrator.NewStatusTable(),
		appInstance.GetReports(),
		appInstance.GetNotifier(),
		baseCfg,
		system.New(),
		logger,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              viper.GetString("api.addr"),
		Handler:           api.NewServer(w, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting introspection server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Introspection server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Introspection server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Worker loop started.")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker loop: %w", err)
	}

	logger.Info("Work command finished.")
	return nil
}
