package trends

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/polltrend/internal/cleaning"
	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/table"
	"github.com/wonny/polltrend/pkg/logger"
)

var day0 = date(2023, 10, 11)

func day(n int) *time.Time {
	d := day0.AddDate(0, 0, n)
	return &d
}

// buildDataset numbers rows in the given order, then sorts and marks dates typed
func buildDataset(candidates []string, obs ...contracts.Observation) *contracts.Dataset {
	for i := range obs {
		obs[i].Row = i
	}
	ds := &contracts.Dataset{Candidates: candidates, Observations: obs}
	cleaning.SortNewestFirst(ds.Observations)
	ds.DatesTyped = true
	return ds
}

func poll(d *time.Time, shares map[string]float64) contracts.Observation {
	o := contracts.Observation{Date: d, Pollster: "P", SampleSize: contracts.Int(1000), Shares: map[string]*float64{}}
	for c, v := range shares {
		o.Shares[c] = contracts.Float(v)
	}
	return o
}

func calc(t *testing.T, ds *contracts.Dataset, opts Options) *contracts.TrendResult {
	t.Helper()
	res, err := New(logger.NewNop()).Calculate(ds, opts)
	require.NoError(t, err)
	return res
}

func TestCalculateSingleRow(t *testing.T) {
	ds := buildDataset([]string{"A"}, poll(day(3), map[string]float64{"A": 0.42}))

	t.Run("default start", func(t *testing.T) {
		res := calc(t, ds, DefaultOptions())
		require.Equal(t, 1, res.Trends.Len())
		assert.Equal(t, *day(3), res.Trends.Dates[0])
		assert.Equal(t, 0.42, *res.Trends.Value("A", 0))
	})

	t.Run("earlier anchor", func(t *testing.T) {
		opts := DefaultOptions()
		opts.StartDate = day(0)
		res := calc(t, ds, opts)

		require.Equal(t, 4, res.Trends.Len())
		assert.Equal(t, []time.Time{*day(3), *day(2), *day(1), *day(0)}, res.Trends.Dates)
		assert.Equal(t, 0.42, *res.Trends.Value("A", 0))
		for i := 1; i < 4; i++ {
			assert.Nil(t, res.Trends.Value("A", i), "before the poll date")
		}
		assert.Empty(t, res.AverageOutliers)
		assert.Zero(t, res.ObservationOutlierCount())
	})
}

func TestCalculateWeightedAverage(t *testing.T) {
	a := poll(day(0), map[string]float64{"A": 0.4})
	b := poll(day(0), map[string]float64{"A": 0.6})
	ds := buildDataset([]string{"A"}, a, b)

	opts := DefaultOptions()
	opts.Weights = []float64{1, 3}
	res := calc(t, ds, opts)

	assert.InDelta(t, 0.55, *res.Trends.Value("A", 0), 1e-12)
}

func TestCalculateZeroBecomesNull(t *testing.T) {
	t.Run("zero share", func(t *testing.T) {
		ds := buildDataset([]string{"A", "B"},
			poll(day(0), map[string]float64{"A": 0, "B": 1}),
		)
		res := calc(t, ds, DefaultOptions())
		assert.Nil(t, res.Trends.Value("A", 0))
		assert.Equal(t, 1.0, *res.Trends.Value("B", 0))
	})

	t.Run("zero total weight", func(t *testing.T) {
		ds := buildDataset([]string{"A"},
			poll(day(0), map[string]float64{"A": 0.5}),
			poll(day(1), map[string]float64{"A": 0.5}),
		)
		opts := DefaultOptions()
		opts.Weights = []float64{0, 1} // newest first: day 1 gets zero weight
		res := calc(t, ds, opts)

		// day 1 bucket is null, rolling mean still sees day 0
		assert.Equal(t, 0.5, *res.Trends.Value("A", 0))

		opts.Window = "1D"
		res = calc(t, ds, opts)
		assert.Nil(t, res.Trends.Value("A", 0))
		assert.Equal(t, 0.5, *res.Trends.Value("A", 1))
	})
}

func TestCalculateBucketsByFrequency(t *testing.T) {
	ds := buildDataset([]string{"A"},
		poll(day(0), map[string]float64{"A": 0.2}),
		poll(day(6), map[string]float64{"A": 0.4}),
		poll(day(7), map[string]float64{"A": 0.9}),
	)

	opts := DefaultOptions()
	opts.Frequency = "W"
	opts.Window = "1W"
	res := calc(t, ds, opts)

	require.Equal(t, 2, res.Trends.Len())
	assert.Equal(t, []time.Time{*day(7), *day(0)}, res.Trends.Dates)
	assert.InDelta(t, 0.9, *res.Trends.Value("A", 0), 1e-12)
	assert.InDelta(t, 0.3, *res.Trends.Value("A", 1), 1e-12)
}

func TestCalculateCandidateDropout(t *testing.T) {
	var obs []contracts.Observation
	for d := 0; d < 20; d++ {
		shares := map[string]float64{"Stayer": 0.6}
		if d < 10 {
			shares["Dropout"] = 0.4
		}
		obs = append(obs, poll(day(d), shares))
	}
	ds := buildDataset([]string{"Dropout", "Stayer"}, obs...)

	res := calc(t, ds, DefaultOptions())
	require.Equal(t, 20, res.Trends.Len())

	index := func(d int) int { return 19 - d }

	// last poll on day 9; the 7-day window still covers it through day 15
	for d := 9; d <= 15; d++ {
		v := res.Trends.Value("Dropout", index(d))
		require.NotNil(t, v, "day %d", d)
		assert.InDelta(t, 0.4, *v, 1e-12)
	}
	for d := 16; d < 20; d++ {
		assert.Nil(t, res.Trends.Value("Dropout", index(d)), "day %d should not carry stale data", d)
	}

	assert.Equal(t, []string{"Stayer", "Dropout"}, res.Trends.Candidates)
}

func TestCalculateTieOrdering(t *testing.T) {
	ds := buildDataset([]string{"Alpha", "Beta", "Gamma", "Zed"},
		poll(day(0), map[string]float64{"Alpha": 0.5, "Beta": 0.2, "Gamma": 0.3}),
		poll(day(1), map[string]float64{"Alpha": 0.3, "Beta": 0.3, "Gamma": 0.4}),
	)

	opts := DefaultOptions()
	opts.Window = "1D"
	res := calc(t, ds, opts)

	assert.Equal(t, []string{"Gamma", "Alpha", "Beta", "Zed"}, res.Trends.Candidates)
}

func TestCalculateOutliers(t *testing.T) {
	var obs []contracts.Observation
	for d := 0; d < 6; d++ {
		obs = append(obs, poll(day(d), map[string]float64{"A": 0.5}))
	}
	spike := poll(day(6), map[string]float64{"A": 0.9})
	spike.Pollster = "Spiky"
	obs = append(obs, spike)
	ds := buildDataset([]string{"A"}, obs...)

	res := calc(t, ds, DefaultOptions())

	require.Len(t, res.AverageOutliers, 1)
	avg := res.AverageOutliers[0]
	assert.Equal(t, contracts.OutlierAverage, avg.Level)
	assert.Equal(t, *day(6), avg.Date)
	assert.Equal(t, -1, avg.Row)
	assert.InDelta(t, 0.9, avg.Value, 1e-12)
	assert.InDelta(t, 3.9/7, avg.RollingMean, 1e-12)
	assert.InDelta(t, 6/2.6457513110645907, avg.Deviation, 1e-9)

	require.Len(t, res.ObservationOutliers["A"], 1)
	rec := res.ObservationOutliers["A"][0]
	assert.Equal(t, contracts.OutlierObservation, rec.Level)
	assert.Equal(t, "Spiky", rec.Pollster)
	assert.Equal(t, 6, rec.Row)

	assert.Equal(t, 1, res.Diagnostics.Count(contracts.WarnAverageOutliers))
	assert.Equal(t, []int{6}, res.Diagnostics.Rows(contracts.WarnPollOutliers))

	sparse := res.AverageOutlierTable()
	assert.Equal(t, []time.Time{*day(6)}, sparse.Dates)
	assert.InDelta(t, 0.9, *sparse.Value("A", 0), 1e-12)

	// the maximum possible deviation of one point among seven is ~2.27σ
	opts := DefaultOptions()
	opts.NSigma = 3
	res = calc(t, ds, opts)
	assert.Empty(t, res.AverageOutliers)
	assert.Zero(t, res.ObservationOutlierCount())
}

func TestCalculateObservationOutlierWithinBusyDay(t *testing.T) {
	var obs []contracts.Observation
	for d := 0; d < 5; d++ {
		obs = append(obs,
			poll(day(d), map[string]float64{"A": 0.45}),
			poll(day(d), map[string]float64{"A": 0.55}),
		)
	}
	// one wild poll on a day whose average stays unremarkable
	obs = append(obs, poll(day(4), map[string]float64{"A": 0.95}))
	ds := buildDataset([]string{"A"}, obs...)

	res := calc(t, ds, DefaultOptions())
	assert.GreaterOrEqual(t, res.ObservationOutlierCount(), 1)
	for _, rec := range res.ObservationOutliers["A"] {
		assert.GreaterOrEqual(t, math.Abs(rec.Deviation), 2.0)
	}
}

func TestCalculateObservationOutliersOnFlatAverage(t *testing.T) {
	// two polls a day that always average 0.5: zero rolling std from day 1 on
	var obs []contracts.Observation
	for d := 0; d < 2; d++ {
		obs = append(obs,
			poll(day(d), map[string]float64{"A": 0.4}),
			poll(day(d), map[string]float64{"A": 0.6}),
		)
	}
	ds := buildDataset([]string{"A"}, obs...)

	res := calc(t, ds, DefaultOptions())

	assert.Empty(t, res.AverageOutliers)
	recs := res.ObservationOutliers["A"]
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, *day(1), rec.Date)
		assert.Zero(t, rec.RollingStd)
		assert.InDelta(t, 0.5, rec.RollingMean, 1e-12)
		assert.Equal(t, math.MaxFloat64, math.Abs(rec.Deviation))
		assert.Equal(t, rec.Value > 0.5, rec.Deviation > 0)
	}
}

func TestCalculateObservationBeforeStartJoinsFirstBucket(t *testing.T) {
	flat := func() []contracts.Observation {
		var obs []contracts.Observation
		for d := 0; d < 5; d++ {
			obs = append(obs, poll(day(d), map[string]float64{"A": 0.5}))
		}
		return obs
	}

	obs := flat()
	early := poll(day(-3), map[string]float64{"A": 0.9})
	early.Pollster = "Early"
	obs = append(obs, early)
	ds := buildDataset([]string{"A"}, obs...)

	opts := DefaultOptions()
	opts.StartDate = day(1)
	res := calc(t, ds, opts)

	require.Equal(t, 4, res.Trends.Len())
	assert.InDelta(t, 0.5, *res.Trends.Value("A", 3), 1e-12, "early polls stay out of the resampled grid")

	// the first bucket holds a single point, so its std is undefined and the
	// early poll is joined there without qualifying
	assert.Zero(t, res.ObservationOutlierCount())

	// joined on the nearest bucket, the same poll inside the grid does qualify
	late := poll(day(4), map[string]float64{"A": 0.9})
	late.Pollster = "Late"
	ds = buildDataset([]string{"A"}, append(flat(), late)...)
	res = calc(t, ds, opts)
	require.Len(t, res.ObservationOutliers["A"], 1)
	assert.Equal(t, "Late", res.ObservationOutliers["A"][0].Pollster)
}

func TestOutlierCountMonotonicInNSigma(t *testing.T) {
	ds := randomDataset(42, 60)

	prevAvg, prevObs := -1, -1
	for _, n := range []float64{0.25, 0.5, 1, 1.5, 2, 2.5, 3, 5} {
		opts := DefaultOptions()
		opts.NSigma = n
		res := calc(t, ds, opts)

		if prevAvg >= 0 {
			assert.LessOrEqual(t, len(res.AverageOutliers), prevAvg, "n_sigma=%v", n)
			assert.LessOrEqual(t, res.ObservationOutlierCount(), prevObs, "n_sigma=%v", n)
		}
		prevAvg, prevObs = len(res.AverageOutliers), res.ObservationOutlierCount()
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	ds := randomDataset(7, 90)

	serial := calc(t, ds, DefaultOptions())

	opts := DefaultOptions()
	opts.Workers = 4
	parallel := calc(t, ds, opts)

	assert.Equal(t, serial, parallel)
}

func TestGridHasNoGapsOrDuplicates(t *testing.T) {
	ds := randomDataset(3, 45)
	opts := DefaultOptions()
	opts.StartDate = day(-5)
	res := calc(t, ds, opts)

	_, maxDate, _ := ds.DateRange()
	want := daysBetween(*day(-5), maxDate) + 1
	require.Equal(t, want, res.Trends.Len())
	for i := 1; i < res.Trends.Len(); i++ {
		assert.Equal(t, res.Trends.Dates[i-1].AddDate(0, 0, -1), res.Trends.Dates[i])
	}
}

func TestImbalanceAfterReweighting(t *testing.T) {
	ds := buildDataset([]string{"A"},
		poll(day(0), map[string]float64{"A": 1.2}),
		poll(day(1), map[string]float64{"A": 0.5}),
	)
	res := calc(t, ds, DefaultOptions())

	warnings := res.Diagnostics.ByCode(contracts.WarnReweightImbalance)
	require.Len(t, warnings, 1)
	assert.Equal(t, "A", warnings[0].Candidate)
	assert.Equal(t, 1, warnings[0].Count)

	balanced := buildDataset([]string{"A"}, poll(day(0), map[string]float64{"A": 0.5}))
	res = calc(t, balanced, DefaultOptions())
	assert.Empty(t, res.Diagnostics.ByCode(contracts.WarnReweightImbalance))
}

func TestCalculateSmallSamplePollIsUsed(t *testing.T) {
	tbl, err := table.Normalize(table.FromRows([][]string{
		{"Date", "Pollster", "Sample", "A", "B"},
		{"10/11/23", "Tiny", "5", "30%", "70%"},
		{"10/10/23", "Big", "1000", "40%", "60%"},
	}))
	require.NoError(t, err)

	ds, diag, err := cleaning.New(cleaning.DefaultConfig(), logger.NewNop()).Clean(tbl)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, diag.Rows(contracts.WarnSmallSample))
	assert.Empty(t, diag.Rows(contracts.WarnUnbalancedShares))

	opts := DefaultOptions()
	opts.Window = "1D"
	res := calc(t, ds, opts)
	assert.InDelta(t, 0.3, *res.Trends.Value("A", 0), 1e-12)
}

func TestCalculateErrors(t *testing.T) {
	typed := buildDataset([]string{"A"}, poll(day(0), map[string]float64{"A": 0.5}))
	untyped := &contracts.Dataset{Candidates: []string{"A"}, Observations: typed.Observations}

	tests := []struct {
		name   string
		ds     *contracts.Dataset
		mutate func(*Options)
		target error
	}{
		{"bad frequency", typed, func(o *Options) { o.Frequency = "fortnightly" }, contracts.ErrConfig},
		{"bad window", typed, func(o *Options) { o.Window = "0D" }, contracts.ErrConfig},
		{"bad n_sigma", typed, func(o *Options) { o.NSigma = 0 }, contracts.ErrConfig},
		{"negative workers", typed, func(o *Options) { o.Workers = -2 }, contracts.ErrConfig},
		{"weight length", typed, func(o *Options) { o.Weights = []float64{1, 1} }, contracts.ErrConfig},
		{"negative weight", typed, func(o *Options) { o.Weights = []float64{-1} }, contracts.ErrConfig},
		{"start after end", typed, func(o *Options) { o.StartDate = day(30) }, contracts.ErrConfig},
		{"config checked before contract", untyped, func(o *Options) { o.Window = "x" }, contracts.ErrConfig},
		{"untyped dates", untyped, func(o *Options) {}, contracts.ErrContract},
		{"nil dataset", nil, func(o *Options) {}, contracts.ErrContract},
		{"no dated rows", buildDataset([]string{"A"}, poll(nil, map[string]float64{"A": 1})), func(o *Options) {}, contracts.ErrContract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)

			res, err := New(logger.NewNop()).Calculate(tt.ds, opts)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

// randomDataset generates a few pollsters over a span of days with noisy shares
func randomDataset(seed int64, days int) *contracts.Dataset {
	rng := rand.New(rand.NewSource(seed))
	var obs []contracts.Observation
	for d := 0; d < days; d++ {
		polls := rng.Intn(3)
		for p := 0; p < polls; p++ {
			a := 0.45 + rng.NormFloat64()*0.03
			b := 0.35 + rng.NormFloat64()*0.03
			o := poll(day(d), map[string]float64{"A": a, "B": b, "C": 1 - a - b})
			o.SampleSize = contracts.Int(200 + rng.Intn(1500))
			obs = append(obs, o)
		}
	}
	// one obvious outlier
	obs = append(obs, poll(day(days/2), map[string]float64{"A": 0.9, "B": 0.05, "C": 0.05}))
	return buildDataset([]string{"A", "B", "C"}, obs...)
}
