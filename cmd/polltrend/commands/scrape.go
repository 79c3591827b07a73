package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/polltrend/internal/export"
	"github.com/wonny/polltrend/internal/pipeline"
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch and clean the poll table",
	Long: `Fetches the poll source, normalizes and cleans it, and writes the
cleaned dataset as CSV. No trends are computed.

Example:
  go run ./cmd/polltrend scrape
  go run ./cmd/polltrend scrape --url polls.html --results cleaned.csv --debug`,
	RunE: runScrape,
}

var (
	scrapeURL     string
	scrapeResults string
	scrapeDebug   bool
)

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeURL, "url", "", "poll source URL or path (default POLL_SOURCE_URL)")
	scrapeCmd.Flags().StringVar(&scrapeResults, "results", export.DatasetFile, "output CSV file, relative to POLL_OUTPUT_DIR")
	scrapeCmd.Flags().BoolVar(&scrapeDebug, "debug", false, "debug logging and a preview of the cleaned rows")
}

func runScrape(cmd *cobra.Command, args []string) error {
	if scrapeDebug {
		verbose = true
	}
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, storeNone)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("pipeline options: %w", err)
	}
	if scrapeURL != "" {
		opts.Source = scrapeURL
	}

	p, err := a.pipeline(opts)
	if err != nil {
		return err
	}

	PrintHeader("Poll scrape", [][2]string{
		{"Source", opts.Source},
		{"Started", time.Now().Format(time.RFC3339)},
	})

	start := time.Now()
	report, err := p.Clean(ctx)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	exporter := export.NewExporter(cfg.OutputDir, cfg.CSVPrecision, log)
	path, err := exporter.SaveDataset(report.Dataset, scrapeResults)
	if err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}

	ds := report.Dataset
	fmt.Println()
	PrintKeyValue("Format", string(report.Source.Format), 12)
	PrintKeyValue("Observations", strconv.Itoa(ds.Len()), 12)
	PrintKeyValue("Candidates", fmt.Sprintf("%d %v", len(ds.Candidates), ds.Candidates), 12)
	if minDate, maxDate, ok := ds.DateRange(); ok {
		PrintKeyValue("Dates", FormatDate(minDate)+" ~ "+FormatDate(maxDate), 12)
	}
	fmt.Println()

	if scrapeDebug {
		printPreview(report, 5)
	}

	PrintDiagnostics(report.Diagnostics)
	PrintSuccess(fmt.Sprintf("Saved %s in %.2fs", path, time.Since(start).Seconds()))
	return nil
}

// printPreview prints the newest n cleaned rows
func printPreview(report *pipeline.CleanReport, n int) {
	ds := report.Dataset
	if n > ds.Len() {
		n = ds.Len()
	}

	cols := append([]string{"Date", "Pollster"}, ds.Candidates...)
	widths := make([]int, len(cols))
	for i := range widths {
		widths[i] = 12
	}
	widths[1] = 20

	PrintTableHeader(cols, widths)
	for _, o := range ds.Observations[:n] {
		date := "n/a"
		if o.Date != nil {
			date = FormatDate(*o.Date)
		}
		row := []string{date, o.Pollster}
		for _, c := range ds.Candidates {
			row = append(row, FormatShare(o.Share(c)))
		}
		PrintTableRow(row, widths)
	}
	fmt.Println()
}
