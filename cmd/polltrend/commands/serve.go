package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/polltrend/internal/api"
	"github.com/wonny/polltrend/internal/api/handlers"
	"github.com/wonny/polltrend/internal/pipeline"
	"github.com/wonny/polltrend/internal/scheduler"
	"github.com/wonny/polltrend/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trend API server",
	Long: `Starts the REST API over the latest trend run.

Runs are kept in PostgreSQL when DATABASE_URL is set, in memory otherwise.

Endpoints:
  GET  /health               - Health check
  GET  /api/trends           - Latest trend table (?limit=N)
  POST /api/trends/refresh   - Run the pipeline now
  GET  /api/outliers         - Outliers (?level=average|observation&candidate=X)
  GET  /api/diagnostics      - Data-quality warnings of the latest run
  GET  /api/runs             - Run history (?limit=N)
  GET  /api/runs/{id}        - One run

Example:
  go run ./cmd/polltrend serve
  go run ./cmd/polltrend serve --port 8080 --refresh`,
	RunE: runServe,
}

var (
	servePort    string
	serveRefresh bool
	serveWarm    bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (default PORT)")
	serveCmd.Flags().BoolVar(&serveRefresh, "refresh", false, "refresh trends on REFRESH_SCHEDULE")
	serveCmd.Flags().BoolVar(&serveWarm, "warm", true, "run the pipeline once at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

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

	trendHandler := handlers.NewTrendHandler(a.store, p, log)
	router := api.NewRouter(trendHandler, log)
	server := api.New(cfg, log, router)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	var sched *scheduler.Scheduler
	if serveRefresh {
		sched = scheduler.New(log)
		if err := sched.AddJob(jobs.NewRefreshJob(p, nil, cfg.RefreshSchedule, log)); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
		sched.Start()
	}

	if serveWarm {
		go func() {
			if _, err := p.Run(context.Background()); err != nil {
				log.WithError(err).Warn("Initial pipeline run failed")
			}
		}()
	}

	PrintSuccess(fmt.Sprintf("Server running on http://localhost:%s", cfg.Port))
	if serveRefresh {
		PrintInfo("Refresh schedule: " + cfg.RefreshSchedule)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")
	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
