package contracts

import (
	"math"
	"time"
)

// Canonical column names of a cleaned dataset
const (
	ColumnDate       = "date"
	ColumnPollster   = "pollster"
	ColumnSampleSize = "n"
	ColumnWeight     = "weight"
	ColumnModality   = "mode"
	ColumnPopulation = "population"
	ColumnSponsor    = "sponsor"
)

// FixedColumns is the canonical order of the non-candidate output columns
var FixedColumns = []string{ColumnDate, ColumnPollster, ColumnSampleSize}

// BalanceTolerance is the absolute tolerance for Σ shares ≈ 1.0
const BalanceTolerance = 0.02

// balanceRelTolerance is the relative slack on top of BalanceTolerance, so
// sums of exactly 0.98 or 1.02 are not lost to float rounding
const balanceRelTolerance = 1e-5

// SmallSampleThreshold flags polls with fewer respondents than this
const SmallSampleThreshold = 10

// Observation is one cleaned polling record.
// Nil pointers are nulls: a cell that was missing or could not be coerced.
type Observation struct {
	Row        int // 0-based position in the raw table
	Date       *time.Time
	Pollster   string
	SampleSize *int
	Shares     map[string]*float64 // candidate -> fraction in [0,1]
	Weight     *float64

	// Optional metadata, empty when the source has no such column
	Modality   string
	Population string
	Sponsor    string
}

// Share returns the candidate's share or nil
func (o *Observation) Share(candidate string) *float64 {
	return o.Shares[candidate]
}

// ShareSum returns Σ shares over candidates, or nil if any share is null
func (o *Observation) ShareSum(candidates []string) *float64 {
	sum := 0.0
	for _, c := range candidates {
		v := o.Shares[c]
		if v == nil {
			return nil
		}
		sum += *v
	}
	return &sum
}

// IsBalanced reports whether the shares sum to 1.0 within BalanceTolerance.
// A null sum is never balanced.
func (o *Observation) IsBalanced(candidates []string) bool {
	sum := o.ShareSum(candidates)
	if sum == nil {
		return false
	}
	return math.Abs(*sum-1.0) <= BalanceTolerance+balanceRelTolerance
}

// Dataset is an ordered collection of observations sharing one candidate set
// ⭐ SSOT: Cleaner → Weighting → Trend Engine 간 데이터 전달
type Dataset struct {
	// Candidates is the inferred candidate column list, sorted lexicographically
	Candidates []string

	// Observations are ordered newest-first; rows with a null date come last
	Observations []Observation

	// DatesTyped is set by the cleaner once the date column has been parsed.
	// The trend engine refuses datasets without it.
	DatesTyped bool

	// Optional columns present in the source
	HasWeight     bool
	HasModality   bool
	HasPopulation bool
	HasSponsor    bool
}

// Columns returns the canonical column order: fixed columns then candidates
func (d *Dataset) Columns() []string {
	cols := make([]string, 0, len(FixedColumns)+len(d.Candidates))
	cols = append(cols, FixedColumns...)
	cols = append(cols, d.Candidates...)
	return cols
}

// Len returns the number of observations
func (d *Dataset) Len() int {
	return len(d.Observations)
}

// DateRange returns the earliest and latest non-null observation dates
func (d *Dataset) DateRange() (min, max time.Time, ok bool) {
	for _, o := range d.Observations {
		if o.Date == nil {
			continue
		}
		if !ok {
			min, max, ok = *o.Date, *o.Date, true
			continue
		}
		if o.Date.Before(min) {
			min = *o.Date
		}
		if o.Date.After(max) {
			max = *o.Date
		}
	}
	return min, max, ok
}

// Float returns a pointer to v, for building nullable values
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Date returns a pointer to a UTC calendar date
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
