package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/scheduler"
	"github.com/quantfold/quantfold/internal/scheduler/jobs"
	"github.com/quantfold/quantfold/internal/signals"
)

// scheduleCmd runs the cron scheduler with the signal scan job until
// interrupted.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scheduled jobs",
	Long: `Starts the job scheduler and blocks until interrupted. The signal
scan runs on the cron schedule from signals.schedule in the strategy
config.

Example:
  go run ./cmd/quantfold schedule`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	symbols, err := rt.symbols(cmd.Context())
	if err != nil {
		return fmt.Errorf("resolve symbols: %w", err)
	}

	generator := signals.NewGenerator(rt.strategy, rt.log)
	job := jobs.NewSignalScanJob(rt.provider, generator, rt.strategy, symbols, rt.log)

	sched := scheduler.New(rt.log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("add job: %w", err)
	}

	sched.Start()
	fmt.Printf("Scheduler running (%s: %s), Ctrl+C to stop\n", job.Name(), job.Schedule())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
