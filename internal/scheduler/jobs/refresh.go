package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/pipeline"
	"github.com/wonny/polltrend/internal/scheduler"
	"github.com/wonny/polltrend/pkg/logger"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// Exporter writes a finished run to disk
type Exporter interface {
	SaveTrends(r *contracts.TrendResult) ([]string, error)
}

// RefreshJob re-fetches the poll source and recomputes trends
// ⭐ SSOT: 정기 트렌드 갱신은 이 Job에서만
type RefreshJob struct {
	runner   Runner
	exporter Exporter
	schedule string
	logger   *logger.Logger
}

// NewRefreshJob creates a refresh job. exporter may be nil to skip CSV output.
func NewRefreshJob(runner Runner, exporter Exporter, schedule string, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		runner:   runner,
		exporter: exporter,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "trend_refresh"
}

// Schedule returns the cron schedule
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run executes one refresh
func (j *RefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled trend refresh")

	report, err := j.runner.Run(ctx)
	if err != nil {
		// 데이터/설정 오류는 재시도해도 동일
		if isFatal(err) {
			return scheduler.Permanent(fmt.Errorf("trend refresh: %w", err))
		}
		return fmt.Errorf("trend refresh: %w", err)
	}

	run := report.Run
	if j.exporter != nil {
		paths, err := j.exporter.SaveTrends(run.Result)
		if err != nil {
			return fmt.Errorf("export trends: %w", err)
		}
		j.logger.WithField("files", len(paths)).Debug("Trend CSVs written")
	}

	summary := run.Summary()
	j.logger.WithFields(map[string]interface{}{
		"run_id":               run.ID,
		"leader":               summary.Leader,
		"average_outliers":     summary.AverageOutliers,
		"observation_outliers": summary.ObservationOutliers,
		"warnings":             summary.Warnings,
	}).Info("Trend refresh completed")

	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, contracts.ErrFormat) ||
		errors.Is(err, contracts.ErrDateParse) ||
		errors.Is(err, contracts.ErrConfig) ||
		errors.Is(err, contracts.ErrContract)
}
