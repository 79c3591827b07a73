package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/polltrend/internal/export"
	"github.com/wonny/polltrend/internal/pipeline"
	"github.com/wonny/polltrend/internal/scheduler"
	"github.com/wonny/polltrend/internal/scheduler/jobs"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Refresh trends on a schedule",
	Long: `Runs the trend refresh job on REFRESH_SCHEDULE (cron with seconds)
until interrupted. Each run is saved to PostgreSQL when DATABASE_URL is set
and written as CSV to POLL_OUTPUT_DIR.

Transient failures (network, database) are retried; data and configuration
errors are not.

Example:
  go run ./cmd/polltrend schedule
  go run ./cmd/polltrend schedule --once
  REFRESH_SCHEDULE="0 */30 * * * *" go run ./cmd/polltrend schedule`,
	RunE: runSchedule,
}

var (
	scheduleOnce     bool
	scheduleNoExport bool
)

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleOnce, "once", false, "run the refresh job once and exit")
	scheduleCmd.Flags().BoolVar(&scheduleNoExport, "no-export", false, "do not write CSV files")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(context.Background(), cfg, log, storeAuto)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("pipeline options: %w", err)
	}
	p, err := a.pipeline(opts)
	if err != nil {
		return err
	}

	var exporter jobs.Exporter
	if !scheduleNoExport {
		exporter = export.NewExporter(cfg.OutputDir, cfg.CSVPrecision, log)
	}
	job := jobs.NewRefreshJob(p, exporter, cfg.RefreshSchedule, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	if scheduleOnce {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := sched.RunJobNow(ctx, job.Name())
		if err != nil {
			return err
		}
		printJobResult(result)
		if !result.Success {
			return fmt.Errorf("job %s failed: %s", result.JobName, result.Error)
		}
		return nil
	}

	sched.Start()
	next, _ := sched.NextRun(job.Name())

	PrintHeader("Trend scheduler", [][2]string{
		{"Job", job.Name()},
		{"Schedule", job.Schedule()},
		{"Next run", next.Format("2006-01-02 15:04:05")},
	})
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()

	for name, stat := range sched.GetJobStats() {
		fmt.Printf("\n📊 %s\n", name)
		PrintKeyValue("Total Runs", fmt.Sprintf("%d", stat.TotalRuns), 12)
		PrintKeyValue("Success", fmt.Sprintf("%d (%.1f%%)", stat.SuccessCount, stat.SuccessRate*100), 12)
		PrintKeyValue("Failures", fmt.Sprintf("%d", stat.FailureCount), 12)
		if stat.LastRun != nil {
			PrintKeyValue("Last Run", stat.LastRun.Format("2006-01-02 15:04:05"), 12)
		}
	}

	return nil
}

func printJobResult(r scheduler.JobResult) {
	fmt.Println()
	PrintKeyValue("Job", r.JobName, 10)
	PrintKeyValue("Attempts", fmt.Sprintf("%d", r.Attempts), 10)
	PrintKeyValue("Duration", r.Duration.String(), 10)
	if r.Success {
		PrintSuccess("Refresh completed")
	} else {
		PrintError("Refresh failed: " + r.Error)
	}
}
