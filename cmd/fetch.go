package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/clock/system"
	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/orchestrator"
	"github.com/aeropoint/aqfetch/internal/storage"
)

// fetchFlags carries the per-invocation overrides.
type fetchFlags struct {
	source     string
	adapter    string
	deployment string
	datetime   string
	offset     int
	dryRun     bool
	strict     bool
}

// newFetchCmd creates the 'fetch' subcommand: one orchestrator invocation
// over the configured sources, without going through the queue.
func newFetchCmd() *cobra.Command {
	flags := &fetchFlags{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Runs one fetch invocation over the configured sources",
		Long: `Runs the fetch pipeline once: selects sources, pulls and normalizes
their measurements with bounded concurrency, streams the canonical records to
object storage, and prints the aggregate report. Per-source failures are
isolated and reported; the command fails only on run-level conditions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetchCommand(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.source, "source", "", "run exactly one named source, even if inactive")
	cmd.Flags().StringVar(&flags.adapter, "adapter", "", "run every active source using this adapter")
	cmd.Flags().StringVar(&flags.deployment, "deployment", "", "run one configured deployment's job locally")
	cmd.Flags().StringVar(&flags.datetime, "datetime", "", "explicit query window start (RFC 3339)")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "run-level query window, hours ago")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "drain records without writing storage")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "abort the run on the first source failure")

	return cmd
}

func runFetchCommand(cmd *cobra.Command, flags *fetchFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	cfg, sel, err := buildInvocation(appInstance, flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := storage.NewSink(appInstance.GetStorage(), logger)
	orch := orchestrator.New(appInstance.GetRegistry(), sink, nil, cfg, system.New(), logger)

	report, runErr := orch.Run(ctx, appInstance.GetRunConfig().Sources, sel)
	if report != nil {
		deliverReport(ctx, appInstance, flags, report)
	}
	if runErr != nil {
		return fmt.Errorf("run fetch: %w", runErr)
	}

	logger.Info("Fetch command finished.")
	return nil
}

// buildInvocation resolves the orchestrator config from Viper plus flags. An
// unparseable datetime override is fatal to the invocation.
func buildInvocation(appInstance App, flags *fetchFlags) (orchestrator.Config, orchestrator.Selector, error) {
	cfg := orchestrator.Config{
		MaxInFlight: viper.GetInt("fetch.max_in_flight"),
		BufferSize:  viper.GetInt("fetch.buffer_size"),
		Timeout:     viper.GetDuration("fetch.timeout"),
		DryRun:      flags.dryRun,
		Strict:      flags.strict,
		OffsetHours: flags.offset,
	}
	sel := orchestrator.Selector{Source: flags.source, Adapter: flags.adapter}

	if flags.datetime != "" {
		t, err := time.Parse(time.RFC3339, flags.datetime)
		if err != nil {
			return cfg, sel, fmt.Errorf("invalid --datetime %q: %w", flags.datetime, err)
		}
		cfg.Datetime = t
	}

	if flags.deployment != "" {
		d, err := findDeployment(appInstance.GetRunConfig().Deployments, flags.deployment)
		if err != nil {
			return cfg, sel, err
		}
		if sel.Source == "" {
			sel.Source = d.Source
		}
		if sel.Adapter == "" {
			sel.Adapter = d.Adapter
		}
		if cfg.OffsetHours == 0 {
			cfg.OffsetHours = d.Offset
		}
		cfg.Suffix = d.Name
	}
	return cfg, sel, nil
}

func findDeployment(deployments []fetch.Deployment, name string) (fetch.Deployment, error) {
	for _, d := range deployments {
		if d.Name == name {
			return d, nil
		}
	}
	return fetch.Deployment{}, fmt.Errorf("deployment %q is not configured", name)
}

// deliverReport prints the would-be report on a dry run, and hands real runs
// to the notifier and the report store.
func deliverReport(ctx context.Context, appInstance App, flags *fetchFlags, report *fetch.Report) {
	logger := appInstance.GetLogger()
	name := flags.deployment
	if name == "" {
		name = "manual"
	}

	if flags.dryRun {
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			logger.Warn("marshal dry-run report failed", zap.Error(err))
			return
		}
		fmt.Println(string(payload))
		return
	}

	if err := appInstance.GetNotifier().Notify(ctx, name, report); err != nil {
		logger.Warn("notify report failed", zap.Error(err))
	}
	if err := appInstance.GetReports().SaveReport(ctx, name, report); err != nil {
		logger.Warn("persist report failed", zap.Error(err))
	}
}
