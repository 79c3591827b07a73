package trends

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/polltrend/internal/contracts"
)

func series(vals ...float64) []*float64 {
	out := make([]*float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		out[i] = contracts.Float(v)
	}
	return out
}

var null = math.NaN()

func TestRollingWindowOneEqualsValue(t *testing.T) {
	s := series(0.4, null, 0.45, 0.5, null)
	r := RollingStats(s, 1, 1)

	for i, v := range s {
		if v == nil {
			assert.Nil(t, r.Mean[i], "index %d", i)
			continue
		}
		require.NotNil(t, r.Mean[i])
		assert.Equal(t, *v, *r.Mean[i])
		assert.Nil(t, r.Std[i], "single point has no std")
	}
}

func TestRollingTrailingWindow(t *testing.T) {
	s := series(0.1, 0.2, 0.3, null, null, null)
	r := RollingStats(s, 1, 3)

	// index 2 covers 0..2
	require.NotNil(t, r.Mean[2])
	assert.InDelta(t, 0.2, *r.Mean[2], 1e-12)
	require.NotNil(t, r.Std[2])
	assert.InDelta(t, 0.1, *r.Std[2], 1e-12)

	// index 4 covers 2..4, a single value
	assert.InDelta(t, 0.3, *r.Mean[4], 1e-12)
	assert.Nil(t, r.Std[4])

	// index 5 covers 3..5, nothing left
	assert.Nil(t, r.Mean[5])
	assert.Nil(t, r.Std[5])
}

func TestRollingWindowCountsDaysNotPoints(t *testing.T) {
	// weekly grid, 14-day window: two points
	s := series(0.2, 0.4, 0.6)
	r := RollingStats(s, 7, 14)

	assert.InDelta(t, 0.2, *r.Mean[0], 1e-12)
	assert.InDelta(t, 0.3, *r.Mean[1], 1e-12)
	assert.InDelta(t, 0.5, *r.Mean[2], 1e-12)
}

func TestIsOutlier(t *testing.T) {
	mean, std := contracts.Float(0.5), contracts.Float(0.1)

	assert.True(t, isOutlier(0.75, mean, std, 2))
	assert.True(t, isOutlier(0.25, mean, std, 2))
	assert.False(t, isOutlier(0.6, mean, std, 2))
	assert.False(t, isOutlier(0.9, mean, nil, 2))
	assert.False(t, isOutlier(0.9, nil, std, 2))
}

func TestIsOutlierZeroStd(t *testing.T) {
	mean, flat := contracts.Float(0.5), contracts.Float(0)

	tests := []struct {
		name   string
		v      float64
		std    *float64
		nSigma float64
		want   bool
	}{
		{"above flat mean", 0.6, flat, 2, true},
		{"below flat mean", 0.4, flat, 5, true},
		{"on flat mean", 0.5, flat, 2, false},
		{"rounding noise on flat mean", 0.5 + 1e-15, flat, 2, false},
		{"rounding noise std", 0.6, contracts.Float(1e-17), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isOutlier(tt.v, mean, tt.std, tt.nSigma))
		})
	}
}

func TestDeviation(t *testing.T) {
	assert.InDelta(t, 2.5, deviation(0.75, 0.5, 0.1), 1e-12)
	assert.Equal(t, math.MaxFloat64, deviation(0.6, 0.5, 0))
	assert.Equal(t, -math.MaxFloat64, deviation(0.4, 0.5, 0))
}
