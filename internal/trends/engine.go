// Package trends turns a cleaned, weighted poll dataset into a smoothed
// per-candidate trend table plus outlier reports at two granularities.
package trends

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/pkg/logger"
)

// ImbalanceThreshold is the share of resampled buckets outside [0,1] above
// which a reweighting imbalance warning is emitted
const ImbalanceThreshold = 0.05

// Options configures one trend calculation
type Options struct {
	NSigma    float64
	Frequency string // grid step, e.g. "1D"
	Window    string // rolling window span, e.g. "7D"

	// StartDate anchors the grid; nil uses the earliest observation date
	StartDate *time.Time

	// Weights aligns with Dataset.Observations; nil means 1.0 everywhere
	Weights []float64

	// Workers > 1 computes candidates concurrently
	Workers int
}

// DefaultOptions returns n_sigma 2, a daily grid and a 7-day window
func DefaultOptions() Options {
	return Options{
		NSigma:    2,
		Frequency: "1D",
		Window:    "7D",
		Workers:   1,
	}
}

// Engine computes trends. It holds no state between calls.
// ⭐ SSOT: Trend Engine
type Engine struct {
	log *logger.Logger
}

// New creates a trend engine
func New(log *logger.Logger) *Engine {
	return &Engine{log: log.WithField("component", "trends")}
}

// settings are validated Options
type settings struct {
	nSigma  float64
	step    int
	window  int
	weights []float64
	workers int
}

// candidateResult is the output of one candidate's computation
type candidateResult struct {
	trend       []*float64 // chronological
	avgOutliers []contracts.OutlierRecord
	obsOutliers []contracts.OutlierRecord
	diag        *contracts.Diagnostics
}

// Calculate runs grid construction, weighted resampling, rolling statistics
// and outlier detection for every candidate.
// Fatal: ConfigError (bad options, checked first), ContractViolation (dataset
// not cleaned or without any dated observation).
func (e *Engine) Calculate(ds *contracts.Dataset, opts Options) (*contracts.TrendResult, error) {
	s, err := validate(ds, opts)
	if err != nil {
		return nil, err
	}

	if ds == nil || !ds.DatesTyped {
		return nil, &contracts.ContractViolation{Reason: "dataset date column is not typed; run the cleaner first"}
	}
	minDate, maxDate, ok := ds.DateRange()
	if !ok {
		return nil, &contracts.ContractViolation{Reason: "dataset has no dated observations"}
	}

	start := minDate
	if opts.StartDate != nil {
		start = truncateDay(*opts.StartDate)
		if start.After(maxDate) {
			return nil, &contracts.ConfigError{
				Field:   "trend.start_date",
				Message: fmt.Sprintf("start %s is after the latest observation %s", start.Format("2006-01-02"), maxDate.Format("2006-01-02")),
			}
		}
	}
	grid := NewGrid(start, maxDate, s.step)

	results := make([]candidateResult, len(ds.Candidates))

	// 후보별 계산은 서로 독립적 (공유 데이터는 읽기 전용)
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, cand := range ds.Candidates {
		g.Go(func() error {
			results[i] = e.calculateCandidate(ds, grid, cand, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := e.merge(ds, grid, results)

	e.log.WithFields(map[string]interface{}{
		"candidates":           len(ds.Candidates),
		"grid_points":          grid.Len(),
		"start":                start.Format("2006-01-02"),
		"end":                  maxDate.Format("2006-01-02"),
		"average_outliers":     len(result.AverageOutliers),
		"observation_outliers": result.ObservationOutlierCount(),
		"workers":              s.workers,
	}).Info("Trends calculated")

	return result, nil
}

// validate checks every option before any computation starts
func validate(ds *contracts.Dataset, opts Options) (settings, error) {
	var s settings

	if opts.NSigma <= 0 || math.IsNaN(opts.NSigma) || math.IsInf(opts.NSigma, 0) {
		return s, &contracts.ConfigError{Field: "trend.n_sigma", Message: fmt.Sprintf("must be a finite value > 0, got %v", opts.NSigma)}
	}
	s.nSigma = opts.NSigma

	step, err := ParseSpan("trend.frequency", opts.Frequency)
	if err != nil {
		return s, err
	}
	window, err := ParseSpan("trend.window", opts.Window)
	if err != nil {
		return s, err
	}
	s.step, s.window = step, window

	if opts.Workers < 0 {
		return s, &contracts.ConfigError{Field: "trend.workers", Message: fmt.Sprintf("must be >= 1, got %d", opts.Workers)}
	}
	s.workers = max(opts.Workers, 1)

	if opts.Weights != nil {
		if ds != nil && len(opts.Weights) != len(ds.Observations) {
			return s, &contracts.ConfigError{
				Field:   "trend.weights",
				Message: fmt.Sprintf("%d weights for %d observations", len(opts.Weights), len(ds.Observations)),
			}
		}
		for i, w := range opts.Weights {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return s, &contracts.ConfigError{Field: "trend.weights", Message: fmt.Sprintf("weight %d is %v", i, w)}
			}
		}
		s.weights = opts.Weights
	}

	return s, nil
}

func (s settings) weight(i int) float64 {
	if s.weights == nil {
		return 1.0
	}
	return s.weights[i]
}

func (e *Engine) calculateCandidate(ds *contracts.Dataset, grid *Grid, cand string, s settings) candidateResult {
	res := candidateResult{diag: contracts.NewDiagnostics()}
	n := grid.Len()

	// 1. weighted resampling onto the grid
	sumVW := make([]float64, n)
	sumW := make([]float64, n)
	seen := make([]bool, n)
	for i := range ds.Observations {
		obs := &ds.Observations[i]
		v := obs.Share(cand)
		if obs.Date == nil || v == nil {
			continue
		}
		b := grid.Bucket(*obs.Date)
		if b < 0 {
			continue
		}
		w := s.weight(i)
		sumVW[b] += *v * w
		sumW[b] += w
		seen[b] = true
	}

	resampled := make([]*float64, n)
	nonNull, outOfRange := 0, 0
	for b := 0; b < n; b++ {
		if !seen[b] || sumW[b] == 0 {
			continue
		}
		avg := sumVW[b] / sumW[b]
		if avg == 0 {
			continue
		}
		resampled[b] = &avg
		nonNull++
		if avg < 0 || avg > 1 {
			outOfRange++
		}
	}

	// 2. imbalance check
	if nonNull > 0 && float64(outOfRange)/float64(nonNull) > ImbalanceThreshold {
		e.log.WithField("candidate", cand).Warnf("Imbalance after re-weighting: %d of %d bucket(s) outside [0,1]", outOfRange, nonNull)
		res.diag.Add(contracts.Warning{
			Code:      contracts.WarnReweightImbalance,
			Message:   fmt.Sprintf("%d of %d resampled bucket(s) outside [0,1]", outOfRange, nonNull),
			Candidate: cand,
			Count:     outOfRange,
		})
	}

	// 3. rolling statistics
	roll := RollingStats(resampled, s.step, s.window)
	res.trend = roll.Mean

	// 4. average-level outliers, newest-first
	for b := n - 1; b >= 0; b-- {
		if resampled[b] == nil || !isOutlier(*resampled[b], roll.Mean[b], roll.Std[b], s.nSigma) {
			continue
		}
		res.avgOutliers = append(res.avgOutliers, newRecord(contracts.OutlierAverage, grid.Dates[b], -1, "", cand, *resampled[b], roll, b))
	}

	// 5. observation-level outliers, joined on the nearest grid bucket
	var rows []int
	for i := range ds.Observations {
		obs := &ds.Observations[i]
		v := obs.Share(cand)
		if obs.Date == nil || v == nil {
			continue
		}
		b := grid.Nearest(*obs.Date)
		if b < 0 || !isOutlier(*v, roll.Mean[b], roll.Std[b], s.nSigma) {
			continue
		}
		res.obsOutliers = append(res.obsOutliers, newRecord(contracts.OutlierObservation, *obs.Date, obs.Row, obs.Pollster, cand, *v, roll, b))
		rows = append(rows, obs.Row)
	}

	if len(res.avgOutliers) > 0 {
		e.log.WithField("candidate", cand).Warnf("Detected %d outlier(s) in average trends", len(res.avgOutliers))
		res.diag.Add(contracts.Warning{
			Code:      contracts.WarnAverageOutliers,
			Message:   fmt.Sprintf("%d average-level outlier(s)", len(res.avgOutliers)),
			Candidate: cand,
			Count:     len(res.avgOutliers),
		})
	}
	if len(res.obsOutliers) > 0 {
		sort.Ints(rows)
		e.log.WithField("candidate", cand).Warnf("Detected %d outlier(s) in poll observations", len(res.obsOutliers))
		res.diag.Add(contracts.Warning{
			Code:      contracts.WarnPollOutliers,
			Message:   fmt.Sprintf("%d observation-level outlier(s)", len(res.obsOutliers)),
			Candidate: cand,
			Rows:      rows,
			Count:     len(res.obsOutliers),
		})
	}

	return res
}

func newRecord(level contracts.OutlierLevel, date time.Time, row int, pollster, cand string, v float64, roll Rolling, b int) contracts.OutlierRecord {
	mean, std := *roll.Mean[b], *roll.Std[b]
	return contracts.OutlierRecord{
		Level:       level,
		Date:        date,
		Row:         row,
		Pollster:    pollster,
		Candidate:   cand,
		Value:       v,
		RollingMean: mean,
		RollingStd:  std,
		Deviation:   deviation(v, mean, std),
	}
}

// merge assembles per-candidate results by candidate name, then applies the
// column ordering pass
func (e *Engine) merge(ds *contracts.Dataset, grid *Grid, results []candidateResult) *contracts.TrendResult {
	n := grid.Len()
	table := contracts.NewTrendTable(grid.NewestFirst(), ds.Candidates)
	result := &contracts.TrendResult{
		Trends:              table,
		AverageOutliers:     []contracts.OutlierRecord{},
		ObservationOutliers: make(map[string][]contracts.OutlierRecord),
		Diagnostics:         contracts.NewDiagnostics(),
	}

	for i, cand := range ds.Candidates {
		r := results[i]
		col := table.Values[cand]
		for b, v := range r.trend {
			col[n-1-b] = v
		}
		result.AverageOutliers = append(result.AverageOutliers, r.avgOutliers...)
		if len(r.obsOutliers) > 0 {
			result.ObservationOutliers[cand] = r.obsOutliers
		}
		result.Diagnostics.Merge(r.diag)
	}

	orderColumns(table)

	rank := make(map[string]int, len(table.Candidates))
	for i, c := range table.Candidates {
		rank[c] = i
	}
	sort.SliceStable(result.AverageOutliers, func(i, j int) bool {
		a, b := result.AverageOutliers[i], result.AverageOutliers[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return rank[a.Candidate] < rank[b.Candidate]
	})

	return result
}
