// Package export writes cleaned datasets and trend outputs as CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/pkg/config"
	"github.com/wonny/polltrend/pkg/logger"
)

// Output file names inside the output directory
const (
	TrendsFile       = "trends.csv"
	AvgOutliersFile  = "outliers_avg.csv"
	PollOutliersFile = "outliers_poll.csv"
	DatasetFile      = "data.csv"
)

// Writer formats numbers with a fixed precision and dates as ISO calendar dates
type Writer struct {
	precision int
}

// NewWriter creates a writer. Negative precision means shortest representation.
func NewWriter(precision int) *Writer {
	return &Writer{precision: precision}
}

func (w *Writer) float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', w.precision, 64)
}

// WriteTrends writes date + one column per candidate in table column order
func (w *Writer) WriteTrends(out io.Writer, t *contracts.TrendTable) error {
	cw := csv.NewWriter(out)

	header := append([]string{contracts.ColumnDate}, t.Candidates...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, d := range t.Dates {
		row := make([]string, 0, len(header))
		row = append(row, d.Format(config.DateLayout))
		for _, c := range t.Candidates {
			row = append(row, w.float(t.Value(c, i)))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteObservationOutliers writes one line per flagged raw observation
func (w *Writer) WriteObservationOutliers(out io.Writer, r *contracts.TrendResult) error {
	cw := csv.NewWriter(out)

	header := []string{"candidate", contracts.ColumnDate, "row", contracts.ColumnPollster, "value", "rolling_mean", "rolling_std", "deviation"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range r.Trends.Candidates {
		for _, rec := range r.ObservationOutliers[c] {
			row := []string{
				rec.Candidate,
				rec.Date.Format(config.DateLayout),
				strconv.Itoa(rec.Row),
				rec.Pollster,
				w.float(&rec.Value),
				w.float(&rec.RollingMean),
				w.float(&rec.RollingStd),
				w.float(&rec.Deviation),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteDataset writes the cleaned dataset in canonical column order, shares as fractions
func (w *Writer) WriteDataset(out io.Writer, ds *contracts.Dataset) error {
	cw := csv.NewWriter(out)

	if err := cw.Write(ds.Columns()); err != nil {
		return err
	}
	for _, o := range ds.Observations {
		row := make([]string, 0, len(contracts.FixedColumns)+len(ds.Candidates))

		date := ""
		if o.Date != nil {
			date = o.Date.Format(config.DateLayout)
		}
		n := ""
		if o.SampleSize != nil {
			n = strconv.Itoa(*o.SampleSize)
		}
		row = append(row, date, o.Pollster, n)

		for _, c := range ds.Candidates {
			row = append(row, w.float(o.Share(c)))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Exporter writes outputs into a directory
// ⭐ SSOT: 결과 파일 저장은 여기서만
type Exporter struct {
	dir    string
	writer *Writer
	logger *logger.Logger
}

// NewExporter creates an exporter rooted at dir
func NewExporter(dir string, precision int, log *logger.Logger) *Exporter {
	return &Exporter{
		dir:    dir,
		writer: NewWriter(precision),
		logger: log.WithField("component", "export"),
	}
}

// SaveTrends writes trends.csv, outliers_avg.csv and outliers_poll.csv and
// returns their paths
func (e *Exporter) SaveTrends(r *contracts.TrendResult) ([]string, error) {
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{TrendsFile, func(out io.Writer) error { return e.writer.WriteTrends(out, r.Trends) }},
		{AvgOutliersFile, func(out io.Writer) error { return e.writer.WriteTrends(out, r.AverageOutlierTable()) }},
		{PollOutliersFile, func(out io.Writer) error { return e.writer.WriteObservationOutliers(out, r) }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		p, err := e.save(f.name, f.write)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// SaveDataset writes the cleaned dataset to name (DatasetFile when empty).
// An absolute name is used as-is.
func (e *Exporter) SaveDataset(ds *contracts.Dataset, name string) (string, error) {
	if name == "" {
		name = DatasetFile
	}
	return e.save(name, func(out io.Writer) error { return e.writer.WriteDataset(out, ds) })
}

func (e *Exporter) save(name string, write func(io.Writer) error) (string, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.dir, name)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", p, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", p, err)
	}

	e.logger.WithField("path", p).Info("Saved")
	return p, nil
}
