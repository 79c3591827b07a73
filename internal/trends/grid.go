package trends

import "time"

// Grid is a fixed-frequency calendar grid stored oldest-first.
// Output tables reverse it to newest-first.
type Grid struct {
	Start time.Time
	Step  int // days
	Dates []time.Time
}

// NewGrid builds the grid from start through end inclusive in step-day increments.
// Length is floor((end-start)/step)+1; empty when end is before start.
func NewGrid(start, end time.Time, step int) *Grid {
	start, end = truncateDay(start), truncateDay(end)
	g := &Grid{Start: start, Step: step}
	if end.Before(start) || step <= 0 {
		return g
	}

	n := daysBetween(start, end)/step + 1
	g.Dates = make([]time.Time, n)
	for i := range g.Dates {
		g.Dates[i] = start.AddDate(0, 0, i*step)
	}
	return g
}

// Len returns the number of grid points
func (g *Grid) Len() int {
	return len(g.Dates)
}

// Bucket returns the grid index of the bucket containing d, or -1 if d falls
// outside the grid
func (g *Grid) Bucket(d time.Time) int {
	if len(g.Dates) == 0 {
		return -1
	}
	days := daysBetween(g.Start, truncateDay(d))
	if days < 0 {
		return -1
	}
	idx := days / g.Step
	if idx >= len(g.Dates) {
		return -1
	}
	return idx
}

// Nearest returns the bucket containing d, clamped to the first or last
// bucket when d falls outside the grid; -1 only for an empty grid
func (g *Grid) Nearest(d time.Time) int {
	if len(g.Dates) == 0 {
		return -1
	}
	idx := daysBetween(g.Start, truncateDay(d))
	if idx < 0 {
		return 0
	}
	idx /= g.Step
	if idx >= len(g.Dates) {
		return len(g.Dates) - 1
	}
	return idx
}

// NewestFirst returns a reversed copy of the dates
func (g *Grid) NewestFirst() []time.Time {
	out := make([]time.Time, len(g.Dates))
	for i, d := range g.Dates {
		out[len(out)-1-i] = d
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b (negative when b is earlier)
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
