package trends

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewGridLength(t *testing.T) {
	start, end := date(2023, 10, 1), date(2023, 10, 31)

	tests := []struct {
		name string
		step int
		want int
	}{
		{"daily", 1, 31},
		{"two days", 2, 16},
		{"weekly", 7, 5},
		{"fortnightly", 14, 3},
		{"longer than range", 60, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrid(start, end, tt.step)
			require.Equal(t, tt.want, g.Len())

			seen := make(map[time.Time]bool)
			for i, d := range g.Dates {
				assert.False(t, seen[d], "duplicate grid date %s", d)
				seen[d] = true
				assert.Equal(t, start.AddDate(0, 0, i*tt.step), d)
				assert.False(t, d.After(end))
			}
		})
	}
}

func TestNewGridSingleDayAndEmpty(t *testing.T) {
	d := date(2023, 10, 11)
	assert.Equal(t, 1, NewGrid(d, d, 1).Len())
	assert.Equal(t, 0, NewGrid(d, d.AddDate(0, 0, -1), 1).Len())
}

func TestNewGridIgnoresTimeOfDay(t *testing.T) {
	g := NewGrid(time.Date(2023, 10, 1, 18, 30, 0, 0, time.UTC), time.Date(2023, 10, 3, 1, 0, 0, 0, time.UTC), 1)
	require.Equal(t, 3, g.Len())
	assert.Equal(t, date(2023, 10, 1), g.Dates[0])
}

func TestGridBucket(t *testing.T) {
	g := NewGrid(date(2023, 10, 1), date(2023, 10, 31), 7)

	assert.Equal(t, 0, g.Bucket(date(2023, 10, 1)))
	assert.Equal(t, 0, g.Bucket(date(2023, 10, 7)))
	assert.Equal(t, 1, g.Bucket(date(2023, 10, 8)))
	assert.Equal(t, 4, g.Bucket(date(2023, 10, 31)))
	assert.Equal(t, -1, g.Bucket(date(2023, 9, 30)))
	assert.Equal(t, -1, g.Bucket(date(2023, 11, 5)))
}

func TestGridNearest(t *testing.T) {
	g := NewGrid(date(2023, 10, 1), date(2023, 10, 31), 7)

	tests := []struct {
		d    time.Time
		want int
	}{
		{date(2023, 10, 1), 0},
		{date(2023, 10, 8), 1},
		{date(2023, 9, 30), 0},
		{date(2023, 9, 1), 0},
		{date(2023, 11, 5), 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Nearest(tt.d), tt.d.Format("2006-01-02"))
	}

	assert.Equal(t, -1, NewGrid(date(2023, 10, 2), date(2023, 10, 1), 1).Nearest(date(2023, 10, 1)))
}

func TestGridNewestFirst(t *testing.T) {
	g := NewGrid(date(2023, 10, 1), date(2023, 10, 3), 1)
	assert.Equal(t, []time.Time{date(2023, 10, 3), date(2023, 10, 2), date(2023, 10, 1)}, g.NewestFirst())
	// original untouched
	assert.Equal(t, date(2023, 10, 1), g.Dates[0])
}
