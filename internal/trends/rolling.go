package trends

import "math"

// Rolling holds rolling statistics aligned with a chronological series
type Rolling struct {
	Mean []*float64
	Std  []*float64
}

// RollingStats computes a trailing time-window mean and sample standard
// deviation over a chronological series on a step-day grid. Point i covers
// every grid point within the last windowDays days up to and including itself.
// Nulls are skipped; min periods is 1, so the mean is defined as soon as one
// value is in the window, the std only with two or more.
func RollingStats(series []*float64, step, windowDays int) Rolling {
	n := len(series)
	r := Rolling{Mean: make([]*float64, n), Std: make([]*float64, n)}

	for i := 0; i < n; i++ {
		var sum float64
		count := 0
		for j := i; j >= 0 && (i-j)*step < windowDays; j-- {
			if series[j] != nil {
				sum += *series[j]
				count++
			}
		}
		if count == 0 {
			continue
		}

		mean := sum / float64(count)
		r.Mean[i] = &mean
		if count < 2 {
			continue
		}

		// second pass keeps the variance numerically stable
		var ss float64
		for j := i; j >= 0 && (i-j)*step < windowDays; j-- {
			if series[j] != nil {
				d := *series[j] - mean
				ss += d * d
			}
		}
		std := math.Sqrt(ss / float64(count-1))
		r.Std[i] = &std
	}

	return r
}

// flatEpsilon absorbs rounding noise when comparing against a zero std
const flatEpsilon = 1e-12

// isOutlier reports |v - mean| >= nSigma*std. An undefined std never
// qualifies. With a zero std the threshold is zero, so any value off the
// mean qualifies and values on it do not.
func isOutlier(v float64, mean, std *float64, nSigma float64) bool {
	if mean == nil || std == nil {
		return false
	}
	diff := math.Abs(v - *mean)
	if *std < flatEpsilon {
		return diff > flatEpsilon
	}
	return diff >= nSigma * *std
}

// deviation is (v - mean) / std in σ units. A zero std gives a signed
// MaxFloat64 so the value stays JSON-encodable.
func deviation(v, mean, std float64) float64 {
	if std < flatEpsilon {
		return math.Copysign(math.MaxFloat64, v-mean)
	}
	return (v - mean) / std
}
