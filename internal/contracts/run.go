package contracts

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned by run stores when nothing matches
var ErrRunNotFound = errors.New("trend run not found")

// RunSettings records the options a run was computed with
type RunSettings struct {
	NSigma    float64    `json:"n_sigma"`
	Frequency string     `json:"frequency"`
	Window    string     `json:"window"`
	StartDate *time.Time `json:"start_date,omitempty"`
	Variant   string     `json:"weighting_variant"`
}

// TrendRun is one completed pipeline execution
// ⭐ SSOT: Pipeline → Store → API 간 데이터 전달
type TrendRun struct {
	ID           string       `json:"id"`
	Source       string       `json:"source"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Settings     RunSettings  `json:"settings"`
	Observations int          `json:"observations"`
	Result       *TrendResult `json:"result"`

	// Diagnostics holds the warnings of every stage (source, cleaning, trends)
	Diagnostics *Diagnostics `json:"diagnostics"`
}

// RunSummary is the listing view of a run
type RunSummary struct {
	ID                  string    `json:"id"`
	Source              string    `json:"source"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	Observations        int       `json:"observations"`
	Candidates          []string  `json:"candidates"`
	Leader              string    `json:"leader,omitempty"`
	AverageOutliers     int       `json:"average_outliers"`
	ObservationOutliers int       `json:"observation_outliers"`
	Warnings            int       `json:"warnings"`
}

// Summary builds the listing view
func (r *TrendRun) Summary() RunSummary {
	s := RunSummary{
		ID:           r.ID,
		Source:       r.Source,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Observations: r.Observations,
	}
	if r.Result != nil && r.Result.Trends != nil {
		s.Candidates = r.Result.Trends.Candidates
		if len(s.Candidates) > 0 && r.Result.Trends.Latest(s.Candidates[0]) != nil {
			s.Leader = s.Candidates[0]
		}
		s.AverageOutliers = len(r.Result.AverageOutliers)
		s.ObservationOutliers = r.Result.ObservationOutlierCount()
	}
	if r.Diagnostics != nil {
		s.Warnings = len(r.Diagnostics.Warnings)
	}
	return s
}
