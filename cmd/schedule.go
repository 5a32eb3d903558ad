package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/scheduler"
)

// newScheduleCmd creates the 'schedule' subcommand: partitions the configured
// deployments into jobs and publishes one queue message per deployment.
func newScheduleCmd() *cobra.Command {
	var resolution string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Publishes one fetch job per configured deployment",
		Long: `Partitions the configured deployments into independent fetch jobs and
publishes each as one message on the work queue. Deployments not matching the
invocation's resolution are skipped, as are deployments whose selector
matches no sources.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.GetLogger()
			runCfg := appInstance.GetRunConfig()

			sched := scheduler.New(runCfg.Sources, runCfg.Deployments, appInstance.GetPublisher(), logger)
			published, err := sched.Schedule(cmd.Context(), resolution)
			if err != nil {
				return fmt.Errorf("schedule deployments: %w", err)
			}

			logger.Info("Schedule command finished.", zap.Int("jobs_published", published))
			return nil
		},
	}

	cmd.Flags().StringVar(&resolution, "resolution", scheduler.DefaultResolution, "only schedule deployments with this resolution")
	return cmd
}
