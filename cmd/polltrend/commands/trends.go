package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/export"
	"github.com/wonny/polltrend/internal/pipeline"
	"github.com/wonny/polltrend/internal/weighting"
	"github.com/wonny/polltrend/pkg/config"
)

// trendsCmd represents the trends command
var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Compute poll trends and outliers",
	Long: `Runs the full pipeline (fetch → normalize → clean → weight → trends)
and writes trends.csv, outliers_avg.csv and outliers_poll.csv.

Flags override the TREND_* / WEIGHTING_* environment settings.

Example:
  go run ./cmd/polltrend trends
  go run ./cmd/polltrend trends --window 14D --freq 1W --n-sigma 2.5
  go run ./cmd/polltrend trends --variant pollster-538-style --weights weights.yaml --save`,
	RunE: runTrends,
}

var (
	trendsURL       string
	trendsOut       string
	trendsNSigma    float64
	trendsFreq      string
	trendsWindow    string
	trendsStart     string
	trendsWorkers   int
	trendsVariant   string
	trendsWeights   string
	trendsPrecision int
	trendsSave      bool
)

func init() {
	rootCmd.AddCommand(trendsCmd)

	f := trendsCmd.Flags()
	f.StringVar(&trendsURL, "url", "", "poll source URL or path (default POLL_SOURCE_URL)")
	f.StringVar(&trendsOut, "out", "", "output directory (default POLL_OUTPUT_DIR)")
	f.Float64Var(&trendsNSigma, "n-sigma", 2, "outlier threshold in rolling standard deviations")
	f.StringVar(&trendsFreq, "freq", "1D", "grid step, e.g. 1D, 1W, 48h")
	f.StringVar(&trendsWindow, "window", "7D", "trailing rolling window, e.g. 7D, 2W")
	f.StringVar(&trendsStart, "start", "", "grid start date YYYY-MM-DD (default earliest poll)")
	f.IntVar(&trendsWorkers, "workers", 1, "candidates computed in parallel")
	f.StringVar(&trendsVariant, "variant", "standard", "weighting variant (standard|pollster-538-style)")
	f.StringVar(&trendsWeights, "weights", "", "YAML file with weighting factor tables")
	f.IntVar(&trendsPrecision, "precision", 4, "decimal places in CSV output")
	f.BoolVar(&trendsSave, "save", false, "persist the run to PostgreSQL (requires DATABASE_URL)")
}

func runTrends(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("pipeline options: %w", err)
	}
	if err := applyTrendFlags(cmd, &opts); err != nil {
		return err
	}

	outDir := cfg.OutputDir
	if trendsOut != "" {
		outDir = trendsOut
	}
	precision := cfg.CSVPrecision
	if cmd.Flags().Changed("precision") {
		precision = trendsPrecision
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := storeNone
	if trendsSave {
		mode = storePostgres
	}
	a, err := newApp(ctx, cfg, log, mode)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(opts)
	if err != nil {
		return err
	}

	start := "earliest poll"
	if opts.Trend.StartDate != nil {
		start = FormatDate(*opts.Trend.StartDate)
	}
	PrintHeader("Poll trends", [][2]string{
		{"Source", opts.Source},
		{"Grid", fmt.Sprintf("%s from %s", opts.Trend.Frequency, start)},
		{"Window", opts.Trend.Window},
		{"Outliers", fmt.Sprintf("%.2fσ", opts.Trend.NSigma)},
		{"Weighting", string(opts.Weighting.Variant)},
	})

	began := time.Now()
	report, err := p.Run(ctx)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	exporter := export.NewExporter(outDir, precision, log)
	paths, err := exporter.SaveTrends(report.Run.Result)
	if err != nil {
		return fmt.Errorf("export trends: %w", err)
	}

	PrintTrendSummary(report.Run.Result)
	PrintDiagnostics(report.Run.Diagnostics)
	fmt.Println()
	for _, path := range paths {
		PrintInfo("Wrote " + path)
	}
	if trendsSave {
		PrintInfo("Saved run " + report.Run.ID)
	}
	PrintSuccess(fmt.Sprintf("Run %s completed in %.2fs", report.Run.ID, time.Since(began).Seconds()))
	return nil
}

// applyTrendFlags overrides environment settings with explicitly set flags
func applyTrendFlags(cmd *cobra.Command, opts *pipeline.Options) error {
	flags := cmd.Flags()

	if trendsURL != "" {
		opts.Source = trendsURL
	}
	if flags.Changed("n-sigma") {
		opts.Trend.NSigma = trendsNSigma
	}
	if flags.Changed("freq") {
		opts.Trend.Frequency = trendsFreq
	}
	if flags.Changed("window") {
		opts.Trend.Window = trendsWindow
	}
	if flags.Changed("workers") {
		opts.Trend.Workers = trendsWorkers
	}
	if trendsStart != "" {
		t, err := time.Parse(config.DateLayout, trendsStart)
		if err != nil {
			return &contracts.ConfigError{Field: "start", Message: "must be YYYY-MM-DD"}
		}
		opts.Trend.StartDate = &t
	}
	if flags.Changed("variant") {
		opts.Weighting.Variant = weighting.Variant(trendsVariant)
	}
	if trendsWeights != "" {
		tables, err := weighting.LoadTables(trendsWeights)
		if err != nil {
			return err
		}
		opts.Weighting.Tables = tables
	}

	return nil
}
