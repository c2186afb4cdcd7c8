package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

func TestInterpreter_SlopeBelowCriticalIsModerate(t *testing.T) {
	in := NewInterpreter(NewThresholdTable(), 0)

	got := in.Interpret("glucose", domain.TrendStatistics{
		Mean:        90,
		LastValue:   98,
		Slope:       6.67,
		PValue:      0.01,
		Correlation: 0.98,
	})

	assert.Equal(t, domain.GlucoseMetabolism, got.ParameterType)
	assert.Equal(t, domain.TrendIncreasing, got.TrendDirection)
	assert.Equal(t, domain.MagnitudeHigh, got.Magnitude)
	assert.Equal(t, domain.SignificanceModerate, got.Significance)
	assert.Equal(t, domain.ConcernModerate, got.ConcernLevel)
	assert.False(t, got.IsAbnormal)
	assert.Equal(t, 98.0, got.CurrentValue)

	require.NotNil(t, got.TimeToConcern)
	assert.Equal(t, 1.5, got.TimeToConcern.Months)
	assert.Equal(t, 100.0, got.TimeToConcern.TargetValue)
	assert.Equal(t, domain.TrendIncreasing, got.TimeToConcern.Direction)
}

func TestInterpreter_Significance(t *testing.T) {
	in := NewInterpreter(NewThresholdTable(), 0)

	tests := []struct {
		name      string
		parameter string
		stats     domain.TrendStatistics
		want      domain.Significance
		concern   domain.ConcernLevel
	}{
		{
			name:      "above critical slope",
			parameter: "glucose",
			stats:     domain.TrendStatistics{Mean: 90, Slope: 12, PValue: 0.01, Correlation: 0.99},
			want:      domain.SignificanceHigh,
			concern:   domain.ConcernHigh,
		},
		{
			name:      "above critical slope but p not below 0.05",
			parameter: "glucose",
			stats:     domain.TrendStatistics{Mean: 90, Slope: 12, PValue: 0.05, Correlation: 0.7},
			want:      domain.SignificanceModerate,
			concern:   domain.ConcernModerate,
		},
		{
			name:      "below concerning slope with strong correlation",
			parameter: "ldl",
			stats:     domain.TrendStatistics{Mean: 90, Slope: 2, PValue: 0.01, Correlation: 0.9},
			want:      domain.SignificanceLow,
			concern:   domain.ConcernLow,
		},
		{
			name:      "strong negative correlation stays minimal",
			parameter: "ldl",
			stats:     domain.TrendStatistics{Mean: 90, Slope: -0.2, PValue: 0.2, Correlation: -0.9},
			want:      domain.SignificanceMinimal,
			concern:   domain.ConcernLow,
		},
		{
			name:      "correlation exactly 0.5 stays minimal",
			parameter: "ldl",
			stats:     domain.TrendStatistics{Mean: 90, Slope: 0.2, PValue: 0.2, Correlation: 0.5},
			want:      domain.SignificanceMinimal,
			concern:   domain.ConcernLow,
		},
		{
			name:      "noise",
			parameter: "ldl",
			stats:     domain.TrendStatistics{Mean: 90, Slope: 0.05, PValue: 0.2, Correlation: 0.1},
			want:      domain.SignificanceMinimal,
			concern:   domain.ConcernLow,
		},
		{
			name:      "minimal but mean outside range",
			parameter: "triglycerides",
			stats:     domain.TrendStatistics{Mean: 180, Slope: 0, PValue: 0.2},
			want:      domain.SignificanceMinimal,
			concern:   domain.ConcernHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := in.Interpret(tt.parameter, tt.stats)
			assert.Equal(t, tt.want, got.Significance)
			assert.Equal(t, tt.concern, got.ConcernLevel)
		})
	}
}

func TestInterpreter_DirectionAndMagnitude(t *testing.T) {
	tests := []struct {
		slope     float64
		direction domain.TrendDirection
		magnitude domain.Magnitude
	}{
		{0.1, domain.TrendStable, domain.MagnitudeMild},
		{-0.1, domain.TrendStable, domain.MagnitudeMild},
		{0.11, domain.TrendIncreasing, domain.MagnitudeMild},
		{-0.6, domain.TrendDecreasing, domain.MagnitudeModerate},
		{1.0, domain.TrendIncreasing, domain.MagnitudeModerate},
		{-1.01, domain.TrendDecreasing, domain.MagnitudeHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.direction, trendDirection(tt.slope), "slope %v", tt.slope)
		assert.Equal(t, tt.magnitude, trendMagnitude(tt.slope), "slope %v", tt.slope)
	}
}

func TestInterpreter_TimeToConcern(t *testing.T) {
	in := NewInterpreter(NewThresholdTable(), 0)

	falling := in.Interpret("HDL", domain.TrendStatistics{Mean: 50, Slope: -2, PValue: 0.01, Correlation: -0.95})
	require.NotNil(t, falling.TimeToConcern)
	assert.Equal(t, 5.0, falling.TimeToConcern.Months)
	assert.Equal(t, 40.0, falling.TimeToConcern.TargetValue)
	assert.Equal(t, domain.TrendDecreasing, falling.TimeToConcern.Direction)
	assert.Equal(t, domain.SignificanceMinimal, falling.Significance)

	tooFar := in.Interpret("glucose", domain.TrendStatistics{Mean: 80, Slope: 0.2})
	assert.Nil(t, tooFar.TimeToConcern)

	flat := in.Interpret("glucose", domain.TrendStatistics{Mean: 99.999, Slope: 0.005})
	assert.Nil(t, flat.TimeToConcern)

	outside := in.Interpret("glucose", domain.TrendStatistics{Mean: 120, Slope: 3})
	assert.Nil(t, outside.TimeToConcern)
	assert.True(t, outside.IsAbnormal)

	unbounded := in.Interpret("hdl", domain.TrendStatistics{Mean: 50, Slope: 2})
	assert.Nil(t, unbounded.TimeToConcern)

	shortHorizon := NewInterpreter(NewThresholdTable(), 1)
	assert.Nil(t, shortHorizon.Interpret("HDL", domain.TrendStatistics{Mean: 50, Slope: -2}).TimeToConcern)
}

func TestInterpreter_TimeToConcernFollowsDirectionOfTravel(t *testing.T) {
	in := NewInterpreter(NewThresholdTable(), 0)

	tests := []struct {
		name      string
		stats     domain.TrendStatistics
		target    float64
		months    float64
		direction domain.TrendDirection
	}{
		{"near lower bound but rising", domain.TrendStatistics{Mean: 75, Slope: 5}, 100, 5, domain.TrendIncreasing},
		{"near upper bound but falling", domain.TrendStatistics{Mean: 95, Slope: -5}, 70, 5, domain.TrendDecreasing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := in.Interpret("glucose", tt.stats)
			require.NotNil(t, got.TimeToConcern)
			assert.Equal(t, tt.target, got.TimeToConcern.TargetValue)
			assert.Equal(t, tt.months, got.TimeToConcern.Months)
			assert.Equal(t, tt.direction, got.TimeToConcern.Direction)
		})
	}
}

func TestInterpreter_UnknownParameterFallsBackToDefault(t *testing.T) {
	in := NewInterpreter(nil, 0)

	got := in.Interpret("mystery_marker", domain.TrendStatistics{Mean: 1e6, Slope: 0.05, PValue: 0.2, Correlation: 0.6})

	assert.Equal(t, domain.DefaultCategory, got.ParameterType)
	assert.Equal(t, domain.TrendStable, got.TrendDirection)
	assert.Equal(t, domain.SignificanceLow, got.Significance)
	assert.False(t, got.IsAbnormal)
	assert.Nil(t, got.TimeToConcern)
}
