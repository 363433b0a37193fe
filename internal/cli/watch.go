package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/uct-events/internal/config"
	"github.com/pfrederiksen/uct-events/internal/logger"
)

func newWatchCmd() *cobra.Command {
	var (
		schedule string
		runNow   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run sync on a cron schedule until interrupted",
		Long: `Run sync repeatedly using a standard five-field cron expression, evaluated in
the configured time zone. A tick is skipped while the previous run is still going.`,
		Example: `  uct-events watch
  uct-events watch --schedule "30 7 * * *" --run-now`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loc, err := loadConfig(cmd, true)
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = cfg.Schedule
			}
			if _, err := cron.ParseStandard(schedule); err != nil {
				return fmt.Errorf("%w: schedule %q: %v", config.ErrInvalid, schedule, err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					logger.Info("Signal received, shutting down", logger.Fields{"signal": sig.String()})
					cancel()
				case <-ctx.Done():
				}
			}()

			cmd.SetContext(ctx)
			return watch(ctx, cfg, loc, schedule, runNow, func() {
				report, _, err := runSync(cmd, cfg, loc, "", false)
				if err != nil {
					logger.Error("Sync failed", nil, err)
					return
				}
				if report.HasFailures() {
					logger.Warn("Sync finished with failures", report.Fields())
				}
				logger.Info("Process metrics", logger.MetricsSnapshot().Fields())
			})
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression (defaults to the config schedule)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once immediately before waiting for the schedule")

	return cmd
}

// watch runs job on schedule until ctx is done, then waits for a running job
// to finish.
func watch(ctx context.Context, cfg *config.Config, loc *time.Location, schedule string, runNow bool, job func()) error {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := c.AddFunc(schedule, job); err != nil {
		return fmt.Errorf("%w: schedule %q: %v", config.ErrInvalid, schedule, err)
	}

	logger.Info("Watching events page", logger.Fields{
		"schedule": schedule,
		"timezone": loc.String(),
		"backend":  cfg.Store.Backend,
	})
	if runNow {
		job()
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger routes scheduler messages into the structured logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, pairs(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, pairs(keysAndValues), err)
}

func pairs(keysAndValues []interface{}) logger.Fields {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make(logger.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
