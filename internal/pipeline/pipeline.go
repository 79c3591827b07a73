// Package pipeline runs fetch → normalize → clean → weight → trends and
// records the outcome as a TrendRun.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/polltrend/internal/cleaning"
	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/source"
	"github.com/wonny/polltrend/internal/store"
	"github.com/wonny/polltrend/internal/table"
	"github.com/wonny/polltrend/internal/trends"
	"github.com/wonny/polltrend/internal/weighting"
	"github.com/wonny/polltrend/pkg/config"
	"github.com/wonny/polltrend/pkg/logger"
)

// Stage names used in Report.Timings
const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageClean     = "clean"
	StageWeight    = "weight"
	StageTrends    = "trends"
	StageSave      = "save"
)

// Options configures one pipeline
type Options struct {
	Source    string
	Cleaning  cleaning.Config
	Weighting weighting.Config
	Trend     trends.Options
}

// OptionsFromConfig builds pipeline options from the environment config,
// loading the weighting tables file when one is configured
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	tables := weighting.DefaultTables()
	if cfg.Weighting.File != "" {
		t, err := weighting.LoadTables(cfg.Weighting.File)
		if err != nil {
			return Options{}, err
		}
		tables = t
	}

	layouts := []string{cfg.Cleaning.DateLayout}
	if cfg.Cleaning.DateLayout == "" {
		layouts = cleaning.DefaultConfig().DateLayouts
	}

	return Options{
		Source:   cfg.Source.URL,
		Cleaning: cleaning.Config{DateLayouts: layouts},
		Weighting: weighting.Config{
			Variant: weighting.Variant(cfg.Weighting.Variant),
			Tables:  tables,
		},
		Trend: trends.Options{
			NSigma:    cfg.Trend.NSigma,
			Frequency: cfg.Trend.Frequency,
			Window:    cfg.Trend.Window,
			StartDate: cfg.Trend.StartDate,
			Workers:   cfg.Trend.Workers,
		},
	}, nil
}

// CleanReport is the outcome of fetch → normalize → clean
type CleanReport struct {
	Source      *source.Result
	Dataset     *contracts.Dataset
	Diagnostics *contracts.Diagnostics
	Timings     map[string]time.Duration
}

// Report is the outcome of a full run
type Report struct {
	Run     *contracts.TrendRun
	Dataset *contracts.Dataset
	Timings map[string]time.Duration
}

// Pipeline wires the stages together
// ⭐ SSOT: 전체 파이프라인 실행은 여기서만
type Pipeline struct {
	opts     Options
	ingester *source.Ingester
	cleaner  *cleaning.Cleaner
	weights  *weighting.Engine
	trends   *trends.Engine
	store    store.Store
	logger   *logger.Logger
}

// New creates a pipeline. st may be nil, in which case runs are not saved.
// Weighting and trend options are validated here so a bad configuration
// fails before anything is fetched.
func New(opts Options, ingester *source.Ingester, st store.Store, log *logger.Logger) (*Pipeline, error) {
	weights, err := weighting.New(opts.Weighting, log)
	if err != nil {
		return nil, err
	}
	if _, err := trends.ParseSpan("trend.frequency", opts.Trend.Frequency); err != nil {
		return nil, err
	}
	if _, err := trends.ParseSpan("trend.window", opts.Trend.Window); err != nil {
		return nil, err
	}

	return &Pipeline{
		opts:     opts,
		ingester: ingester,
		cleaner:  cleaning.New(opts.Cleaning, log),
		weights:  weights,
		trends:   trends.New(log),
		store:    st,
		logger:   log.WithField("component", "pipeline"),
	}, nil
}

// Options returns the options the pipeline was built with
func (p *Pipeline) Options() Options {
	return p.opts
}

// Clean fetches and cleans the source without computing trends
func (p *Pipeline) Clean(ctx context.Context) (*CleanReport, error) {
	report := &CleanReport{
		Diagnostics: contracts.NewDiagnostics(),
		Timings:     make(map[string]time.Duration),
	}

	start := time.Now()
	res, err := p.ingester.Fetch(ctx, p.opts.Source)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	report.Timings[StageFetch] = time.Since(start)
	report.Source = res
	report.Diagnostics.Merge(res.Diagnostics)

	start = time.Now()
	tbl, err := table.Normalize(res.Input)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	report.Timings[StageNormalize] = time.Since(start)

	start = time.Now()
	ds, diag, err := p.cleaner.Clean(tbl)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	report.Timings[StageClean] = time.Since(start)
	report.Dataset = ds
	report.Diagnostics.Merge(diag)

	return report, nil
}

// Run executes every stage and saves the run when a store is configured.
// Fatal errors abort with no partial output.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	startedAt := time.Now().UTC()

	cleaned, err := p.Clean(ctx)
	if err != nil {
		return nil, err
	}
	timings := cleaned.Timings

	start := time.Now()
	opts := p.opts.Trend
	opts.Weights = p.weights.Weights(cleaned.Dataset)
	timings[StageWeight] = time.Since(start)

	start = time.Now()
	result, err := p.trends.Calculate(cleaned.Dataset, opts)
	if err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}
	timings[StageTrends] = time.Since(start)

	diag := contracts.NewDiagnostics()
	diag.Merge(cleaned.Diagnostics)
	diag.Merge(result.Diagnostics)

	run := &contracts.TrendRun{
		ID:         uuid.NewString(),
		Source:     p.opts.Source,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Settings: contracts.RunSettings{
			NSigma:    opts.NSigma,
			Frequency: opts.Frequency,
			Window:    opts.Window,
			StartDate: opts.StartDate,
			Variant:   string(p.weights.Variant()),
		},
		Observations: cleaned.Dataset.Len(),
		Result:       result,
		Diagnostics:  diag,
	}

	if p.store != nil {
		start = time.Now()
		if err := p.store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		timings[StageSave] = time.Since(start)
	}

	p.logger.WithFields(map[string]interface{}{
		"run_id":       run.ID,
		"source":       run.Source,
		"observations": run.Observations,
		"candidates":   len(result.Trends.Candidates),
		"warnings":     len(diag.Warnings),
		"duration":     run.FinishedAt.Sub(startedAt).String(),
	}).Info("Pipeline run completed")

	return &Report{Run: run, Dataset: cleaned.Dataset, Timings: timings}, nil
}
