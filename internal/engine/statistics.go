package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// MinTrendPoints is the number of valid points below which no trend statistic
// is computed
const MinTrendPoints = 3

// ComputeTrendStatistics derives descriptive and regression statistics from a
// single parameter's series. The regression uses the point index as x, so
// irregular sampling intervals are deliberately ignored. The p-value is a
// coarse lookup on the t statistic and only a rough significance heuristic.
func ComputeTrendStatistics(series domain.TimeSeries) (domain.TrendStatistics, error) {
	points := make([]domain.DataPoint, 0, len(series.Points))
	for _, p := range series.Points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		points = append(points, p)
	}

	if len(points) < MinTrendPoints {
		return domain.TrendStatistics{}, &domain.ParameterError{
			Parameter: series.Parameter,
			Err:       fmt.Errorf("%w: %d valid points", domain.ErrInsufficientData, len(points)),
		}
	}

	n := len(points)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		xs[i] = float64(i)
		ys[i] = p.Value
	}

	mean := stat.Mean(ys, nil)
	std := math.Sqrt(stat.PopVariance(ys, nil))
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	r := pearson(xs, ys)
	first, last := points[0], points[n-1]

	lo, hi := ys[0], ys[0]
	for _, v := range ys[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	stats := domain.TrendStatistics{
		Parameter:              series.Parameter,
		SampleCount:            n,
		Mean:                   mean,
		Median:                 median(ys),
		StdDev:                 std,
		CoefficientOfVariation: safeRatio(std, math.Abs(mean)),
		Min:                    lo,
		Max:                    hi,
		FirstValue:             first.Value,
		LastValue:              last.Value,
		Slope:                  finite(slope),
		Intercept:              finite(intercept),
		Correlation:            r,
		RSquared:               r * r,
		PValue:                 approximatePValue(r, n),
		TrendConsistency:       trendConsistency(ys),
		Volatility:             volatility(ys, mean),
		FirstObserved:          first.Timestamp,
		LastObserved:           last.Timestamp,
		SpanDays:               last.Timestamp.Sub(first.Timestamp).Hours() / 24,
	}
	return stats, nil
}

// pearson returns the correlation coefficient clamped to [-1, 1], or 0 when
// either side has no variance
func pearson(xs, ys []float64) float64 {
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}

// approximatePValue maps the t statistic of r onto a coarse p-value table
func approximatePValue(r float64, n int) float64 {
	if math.Abs(r) >= 1 {
		return 0.01
	}
	if n <= 2 {
		return 0.2
	}
	t := math.Abs(r * math.Sqrt(float64(n-2)/(1-r*r)))
	switch {
	case t > 2.5:
		return 0.01
	case t > 2.0:
		return 0.05
	case t > 1.5:
		return 0.1
	default:
		return 0.2
	}
}

// trendConsistency is the fraction of consecutive deltas whose sign matches
// the sign of (last - first)
func trendConsistency(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	overall := sign(values[len(values)-1] - values[0])
	matching := 0
	for i := 1; i < len(values); i++ {
		if sign(values[i]-values[i-1]) == overall {
			matching++
		}
	}
	return float64(matching) / float64(len(values)-1)
}

// volatility is the mean absolute deviation relative to |mean|
func volatility(values []float64, mean float64) float64 {
	total := 0.0
	for _, v := range values {
		total += math.Abs(v - mean)
	}
	return safeRatio(total/float64(len(values)), math.Abs(mean))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
