package engine

import (
	"math"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

const (
	// DefaultMaxProjectionMonths caps time-to-concern projections
	DefaultMaxProjectionMonths = 60.0

	directionDeadband = 0.1
	minProjectedSlope = 0.01
)

// Interpreter turns trend statistics into a qualitative clinical judgement
type Interpreter struct {
	table               *ThresholdTable
	maxProjectionMonths float64
}

// NewInterpreter creates an interpreter over the given threshold table.
// A non-positive maxProjectionMonths selects the default horizon.
func NewInterpreter(table *ThresholdTable, maxProjectionMonths float64) *Interpreter {
	if table == nil {
		table = NewThresholdTable()
	}
	if maxProjectionMonths <= 0 {
		maxProjectionMonths = DefaultMaxProjectionMonths
	}
	return &Interpreter{table: table, maxProjectionMonths: maxProjectionMonths}
}

// Interpret is a pure function of its inputs
func (in *Interpreter) Interpret(parameter string, stats domain.TrendStatistics) domain.ClinicalInterpretation {
	pt, th := in.table.For(parameter)

	direction := trendDirection(stats.Slope)
	magnitude := trendMagnitude(stats.Slope)
	significance := trendSignificance(stats, magnitude, th)
	abnormal := !th.NormalRange.Contains(stats.Mean)

	concern := domain.ConcernLow
	switch {
	case significance == domain.SignificanceHigh || abnormal:
		concern = domain.ConcernHigh
	case significance == domain.SignificanceModerate:
		concern = domain.ConcernModerate
	}

	return domain.ClinicalInterpretation{
		Parameter:      parameter,
		ParameterType:  pt,
		TrendDirection: direction,
		Magnitude:      magnitude,
		Significance:   significance,
		ConcernLevel:   concern,
		IsAbnormal:     abnormal,
		CurrentValue:   stats.LastValue,
		NormalRange:    th.NormalRange,
		TimeToConcern:  in.timeToConcern(stats, th.NormalRange),
	}
}

func trendDirection(slope float64) domain.TrendDirection {
	switch {
	case slope > directionDeadband:
		return domain.TrendIncreasing
	case slope < -directionDeadband:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

func trendMagnitude(slope float64) domain.Magnitude {
	abs := math.Abs(slope)
	switch {
	case abs > 1.0:
		return domain.MagnitudeHigh
	case abs > 0.5:
		return domain.MagnitudeModerate
	default:
		return domain.MagnitudeMild
	}
}

func trendSignificance(stats domain.TrendStatistics, magnitude domain.Magnitude, th CategoryThresholds) domain.Significance {
	abs := math.Abs(stats.Slope)
	switch {
	case stats.PValue < 0.05 && magnitude == domain.MagnitudeHigh && abs > th.CriticalSlope:
		return domain.SignificanceHigh
	case stats.PValue < 0.1 && magnitude != domain.MagnitudeMild && abs > th.ConcerningSlope:
		return domain.SignificanceModerate
	// signed: a strong negative time correlation alone does not raise significance
	case stats.Correlation > 0.5:
		return domain.SignificanceLow
	default:
		return domain.SignificanceMinimal
	}
}

// timeToConcern extrapolates, one sample per month, how long the mean takes
// to reach the range boundary it is moving towards. The target is chosen by
// the direction of travel, not by distance: a value near the lower bound but
// rising is projected against the upper bound, since the mean can only
// cross the boundary ahead of it.
func (in *Interpreter) timeToConcern(stats domain.TrendStatistics, r domain.NormalRange) *domain.TimeToConcern {
	if math.Abs(stats.Slope) < minProjectedSlope || !r.Contains(stats.Mean) {
		return nil
	}

	var target float64
	var direction domain.TrendDirection
	if stats.Slope > 0 {
		if r.Max == nil {
			return nil
		}
		target, direction = *r.Max, domain.TrendIncreasing
	} else {
		if r.Min == nil {
			return nil
		}
		target, direction = *r.Min, domain.TrendDecreasing
	}

	months := (target - stats.Mean) / stats.Slope
	if months < 0 || months > in.maxProjectionMonths || math.IsNaN(months) {
		return nil
	}

	return &domain.TimeToConcern{
		Months:      math.Round(months*10) / 10,
		TargetValue: target,
		Direction:   direction,
	}
}
