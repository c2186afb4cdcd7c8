package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

const (
	// DefaultAlignmentWindow is the widest gap between two samples that are
	// still treated as simultaneous
	DefaultAlignmentWindow = 7 * 24 * time.Hour

	minAlignedPairs    = 3
	minCorrelationSize = 0.3
)

// namedPair is a physiologically meaningful parameter pair. A coefficient
// beyond threshold in the given sense carries the listed significance.
type namedPair struct {
	threshold    float64
	negative     bool
	significance domain.Significance
	note         string
}

var namedPairs = map[[2]string]namedPair{
	{"glucose", "hba1c"}:         {threshold: 0.6, significance: domain.SignificanceHigh, note: "sustained glycemic load"},
	{"cholesterol", "ldl"}:       {threshold: 0.7, significance: domain.SignificanceHigh, note: "LDL-driven cholesterol change"},
	{"hdl", "triglycerides"}:     {threshold: -0.5, negative: true, significance: domain.SignificanceHigh, note: "atherogenic dyslipidemia"},
	{"bun", "creatinine"}:        {threshold: 0.6, significance: domain.SignificanceHigh, note: "declining renal clearance"},
	{"creatinine", "egfr"}:       {threshold: -0.6, negative: true, significance: domain.SignificanceHigh, note: "progressive kidney function loss"},
	{"alt", "ast"}:               {threshold: 0.6, significance: domain.SignificanceHigh, note: "hepatocellular injury"},
	{"glucose", "triglycerides"}: {threshold: 0.5, significance: domain.SignificanceModerate, note: "insulin resistance"},
}

// CorrelationAnalyzer computes pairwise correlations between parameter series
type CorrelationAnalyzer struct {
	window time.Duration
}

// NewCorrelationAnalyzer creates an analyzer. A non-positive window selects
// DefaultAlignmentWindow.
func NewCorrelationAnalyzer(window time.Duration) *CorrelationAnalyzer {
	if window <= 0 {
		window = DefaultAlignmentWindow
	}
	return &CorrelationAnalyzer{window: window}
}

// Analyze correlates every unordered pair of series. Samples of the first
// series are paired with the nearest-in-time sample of the second inside the
// alignment window; ties go to the earlier sample. Pairs with fewer than three
// aligned samples, zero variance or |r| <= 0.3 are left out. Results are
// ordered by |r| descending, then by parameter names.
func (a *CorrelationAnalyzer) Analyze(series map[string]domain.TimeSeries) []domain.CorrelationResult {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	results := []domain.CorrelationResult{}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if res, ok := a.correlate(series[names[i]], series[names[j]], names[i], names[j]); ok {
				results = append(results, res)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		ai, aj := math.Abs(results[i].Coefficient), math.Abs(results[j].Coefficient)
		if ai != aj {
			return ai > aj
		}
		if results[i].ParameterA != results[j].ParameterA {
			return results[i].ParameterA < results[j].ParameterA
		}
		return results[i].ParameterB < results[j].ParameterB
	})
	return results
}

func (a *CorrelationAnalyzer) correlate(sa, sb domain.TimeSeries, nameA, nameB string) (domain.CorrelationResult, bool) {
	xs, ys := a.align(sa.Points, sb.Points)
	if len(xs) < minAlignedPairs {
		return domain.CorrelationResult{}, false
	}

	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return domain.CorrelationResult{}, false
	}
	r = math.Max(-1, math.Min(1, r))
	if math.Abs(r) <= minCorrelationSize {
		return domain.CorrelationResult{}, false
	}

	direction := domain.CorrelationPositive
	if r < 0 {
		direction = domain.CorrelationNegative
	}
	strength := correlationStrength(r)
	significance, note := pairSignificance(nameA, nameB, r)

	interpretation := fmt.Sprintf("%s and %s show a %s %s correlation (r=%.2f, n=%d)",
		nameA, nameB, correlationLabel(strength), direction, r, len(xs))
	if note != "" {
		interpretation += "; pattern suggests " + note
	}

	return domain.CorrelationResult{
		ParameterA:           nameA,
		ParameterB:           nameB,
		Coefficient:          r,
		Strength:             strength,
		Direction:            direction,
		ClinicalSignificance: significance,
		SampleSize:           len(xs),
		PValueApprox:         approximatePValue(r, len(xs)),
		Interpretation:       interpretation,
	}, true
}

// align pairs every point of a with the nearest point of b within the window
func (a *CorrelationAnalyzer) align(pa, pb []domain.DataPoint) ([]float64, []float64) {
	xs := make([]float64, 0, len(pa))
	ys := make([]float64, 0, len(pa))
	if len(pb) == 0 {
		return xs, ys
	}

	for _, p := range pa {
		idx := sort.Search(len(pb), func(i int) bool {
			return !pb[i].Timestamp.Before(p.Timestamp)
		})

		best := -1
		var bestGap time.Duration
		for _, c := range []int{idx - 1, idx} {
			if c < 0 || c >= len(pb) {
				continue
			}
			gap := absDuration(pb[c].Timestamp.Sub(p.Timestamp))
			if gap > a.window {
				continue
			}
			if best == -1 || gap < bestGap {
				best, bestGap = c, gap
			}
		}
		if best == -1 {
			continue
		}
		xs = append(xs, p.Value)
		ys = append(ys, pb[best].Value)
	}
	return xs, ys
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func correlationStrength(r float64) domain.CorrelationStrength {
	abs := math.Abs(r)
	switch {
	case abs >= 0.8:
		return domain.CorrelationVeryStrong
	case abs >= 0.6:
		return domain.CorrelationStrong
	case abs >= 0.4:
		return domain.CorrelationModerate
	default:
		return domain.CorrelationWeak
	}
}

func correlationLabel(s domain.CorrelationStrength) string {
	if s == domain.CorrelationVeryStrong {
		return "very strong"
	}
	return string(s)
}

// pairSignificance looks the pair up in the named-pair table and falls back
// to bucketing by |r|
func pairSignificance(nameA, nameB string, r float64) (domain.Significance, string) {
	key := [2]string{nameA, nameB}
	if nameB < nameA {
		key = [2]string{nameB, nameA}
	}
	if pair, ok := namedPairs[key]; ok {
		met := r >= pair.threshold
		if pair.negative {
			met = r <= pair.threshold
		}
		if met {
			return pair.significance, pair.note
		}
	}

	abs := math.Abs(r)
	switch {
	case abs >= 0.7:
		return domain.SignificanceHigh, ""
	case abs >= 0.5:
		return domain.SignificanceModerate, ""
	default:
		return domain.SignificanceLow, ""
	}
}
