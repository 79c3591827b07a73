package contracts

import "time"

// TrendPoint is one (date, candidate) rolling-weighted-average value
type TrendPoint struct {
	Date      time.Time `json:"date"`
	Candidate string    `json:"candidate"`
	Value     *float64  `json:"value"`
}

// TrendTable is a date grid (newest-first) with one column per candidate.
// Values[c][i] belongs to Dates[i]; nil means no data in the window.
type TrendTable struct {
	Dates      []time.Time           `json:"dates"`
	Candidates []string              `json:"candidates"`
	Values     map[string][]*float64 `json:"values"`
}

// NewTrendTable allocates an all-null table over dates
func NewTrendTable(dates []time.Time, candidates []string) *TrendTable {
	t := &TrendTable{
		Dates:      dates,
		Candidates: append([]string(nil), candidates...),
		Values:     make(map[string][]*float64, len(candidates)),
	}
	for _, c := range candidates {
		t.Values[c] = make([]*float64, len(dates))
	}
	return t
}

// Len returns the number of grid dates
func (t *TrendTable) Len() int {
	return len(t.Dates)
}

// Value returns the cell for candidate at grid index i
func (t *TrendTable) Value(candidate string, i int) *float64 {
	col, ok := t.Values[candidate]
	if !ok || i < 0 || i >= len(col) {
		return nil
	}
	return col[i]
}

// Latest returns the most recent non-null value of candidate
func (t *TrendTable) Latest(candidate string) *float64 {
	for _, v := range t.Values[candidate] {
		if v != nil {
			return v
		}
	}
	return nil
}

// Points flattens the table in row order (date newest-first, then column order)
func (t *TrendTable) Points() []TrendPoint {
	points := make([]TrendPoint, 0, len(t.Dates)*len(t.Candidates))
	for i, d := range t.Dates {
		for _, c := range t.Candidates {
			points = append(points, TrendPoint{Date: d, Candidate: c, Value: t.Values[c][i]})
		}
	}
	return points
}

// OutlierLevel tells which granularity an outlier was detected at
type OutlierLevel string

const (
	OutlierAverage     OutlierLevel = "average"
	OutlierObservation OutlierLevel = "observation"
)

// OutlierRecord is one value whose distance from the rolling mean is at least
// n_sigma rolling standard deviations
type OutlierRecord struct {
	Level       OutlierLevel `json:"level"`
	Date        time.Time    `json:"date"`
	Row         int          `json:"row"` // raw-table row for observation outliers, -1 otherwise
	Pollster    string       `json:"pollster,omitempty"`
	Candidate   string       `json:"candidate"`
	Value       float64      `json:"value"`
	RollingMean float64      `json:"rolling_mean"`
	RollingStd  float64      `json:"rolling_std"`
	Deviation   float64      `json:"deviation"` // (value - mean) / std
}

// TrendResult bundles every output of one trend engine invocation
// ⭐ SSOT: Trend Engine 출력
type TrendResult struct {
	Trends *TrendTable `json:"trends"`

	// AverageOutliers are resampled bucket values, newest-first
	AverageOutliers []OutlierRecord `json:"average_outliers"`

	// ObservationOutliers maps candidate -> flagged raw observations, newest-first
	ObservationOutliers map[string][]OutlierRecord `json:"observation_outliers"`

	Diagnostics *Diagnostics `json:"diagnostics"`
}

// AverageOutlierTable renders the average-level outliers as a sparse table
// over the dates that have at least one outlier, in trend column order
func (r *TrendResult) AverageOutlierTable() *TrendTable {
	var dates []time.Time
	index := make(map[time.Time]int)
	for _, o := range r.AverageOutliers {
		if _, ok := index[o.Date]; !ok {
			index[o.Date] = len(dates)
			dates = append(dates, o.Date)
		}
	}

	table := NewTrendTable(dates, r.Trends.Candidates)
	for _, o := range r.AverageOutliers {
		v := o.Value
		table.Values[o.Candidate][index[o.Date]] = &v
	}
	return table
}

// ObservationOutlierCount returns the total number of observation-level outliers
func (r *TrendResult) ObservationOutlierCount() int {
	n := 0
	for _, recs := range r.ObservationOutliers {
		n += len(recs)
	}
	return n
}
