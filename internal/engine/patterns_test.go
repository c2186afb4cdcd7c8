package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

func findPattern(t *testing.T, patterns []domain.ClinicalPattern, name string) domain.ClinicalPattern {
	t.Helper()
	for _, p := range patterns {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("pattern %s not returned", name)
	return domain.ClinicalPattern{}
}

func TestPatternDetector_MetabolicSyndrome(t *testing.T) {
	detector := NewPatternDetector(nil)

	patterns := detector.Detect(map[string]float64{
		"glucose":       105,
		"triglycerides": 160,
		"hdl":           38,
		"systolic_bp":   135,
	}, nil)

	p := findPattern(t, patterns, "metabolic_syndrome")
	assert.Equal(t, 4, p.CriteriaMet)
	assert.Equal(t, 4, p.AvailableCriteria)
	assert.Equal(t, 4, p.TotalCriteria)
	assert.True(t, p.Detected)
	assert.Equal(t, 1.0, p.Confidence)
	assert.Equal(t, 0.8, p.RiskScore)
	assert.Equal(t, domain.SignificanceHigh, p.Significance)
	assert.NotEmpty(t, p.Recommendations)

	require.NotNil(t, p.Progression)
	assert.Equal(t, domain.ProgressionInsufficient, p.Progression.Trend)
}

func TestPatternDetector_AllRuleSetsReturned(t *testing.T) {
	detector := NewPatternDetector(nil)

	patterns := detector.Detect(map[string]float64{}, nil)

	require.Len(t, patterns, len(DefaultRuleSets()))
	for _, p := range patterns {
		assert.False(t, p.Detected, p.Name)
		assert.Equal(t, 0.0, p.Confidence, p.Name)
		assert.Equal(t, 0.0, p.RiskScore, p.Name)
		assert.Equal(t, domain.SignificanceMinimal, p.Significance, p.Name)
		assert.Empty(t, p.Recommendations, p.Name)
		assert.Len(t, p.Criteria, p.TotalCriteria, p.Name)
	}
}

func TestPatternDetector_PartialCriteria(t *testing.T) {
	detector := NewPatternDetector(nil)

	patterns := detector.Detect(map[string]float64{
		"glucose":       104,
		"triglycerides": 120,
		"hdl":           55,
	}, nil)

	p := findPattern(t, patterns, "metabolic_syndrome")
	assert.False(t, p.Detected)
	assert.Equal(t, 1, p.CriteriaMet)
	assert.Equal(t, 3, p.AvailableCriteria)
	assert.InDelta(t, 1.0/3.0, p.Confidence, 1e-4)
	assert.Equal(t, domain.SignificanceLow, p.Significance)
	require.Len(t, p.Recommendations, 1)
	assert.True(t, strings.HasPrefix(p.Recommendations[0], "Monitor glucose"))

	diabetes := findPattern(t, patterns, "diabetes_risk")
	assert.Equal(t, 1, diabetes.AvailableCriteria)
	assert.False(t, diabetes.Detected)
}

func TestPatternDetector_Thresholds(t *testing.T) {
	detector := NewPatternDetector(nil)

	tests := []struct {
		name     string
		pattern  string
		latest   map[string]float64
		detected bool
	}{
		{"glucose at threshold counts", "diabetes_risk", map[string]float64{"glucose": 100, "hba1c": 5.7}, true},
		{"hdl at 40 is not low", "metabolic_syndrome", map[string]float64{"glucose": 100, "triglycerides": 150, "hdl": 40}, false},
		{"creatinine must exceed 1.2", "kidney_dysfunction", map[string]float64{"creatinine": 1.2, "bun": 25}, false},
		{"reduced egfr", "kidney_dysfunction", map[string]float64{"egfr": 45, "bun": 25}, true},
		{"low hemoglobin alone", "anemia", map[string]float64{"hemoglobin": 10.5}, true},
		{"tsh below range", "thyroid_dysfunction", map[string]float64{"tsh": 0.1}, true},
		{"tsh in range", "thyroid_dysfunction", map[string]float64{"tsh": 2.0, "free_t4": 1.2}, false},
		{"free t4 above range", "thyroid_dysfunction", map[string]float64{"free_t4": 2.4}, true},
		{"liver enzymes", "liver_dysfunction", map[string]float64{"alt": 80, "ast": 60}, true},
		{"lipids", "cardiovascular_risk", map[string]float64{"ldl": 160, "cholesterol": 240}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := findPattern(t, detector.Detect(tt.latest, nil), tt.pattern)
			assert.Equal(t, tt.detected, p.Detected)
		})
	}
}

func TestPatternDetector_ProgressionWorsening(t *testing.T) {
	detector := NewPatternDetector(nil)
	start := day(2024, 1, 10)

	series := map[string]domain.TimeSeries{
		"glucose": seriesAt("glucose", start, month, 95, 102, 110),
		"hba1c":   seriesAt("hba1c", start, month, 5.5, 5.6, 5.9),
	}
	latest := map[string]float64{"glucose": 110, "hba1c": 5.9}

	p := findPattern(t, detector.Detect(latest, series), "diabetes_risk")

	require.NotNil(t, p.Progression)
	assert.Equal(t, domain.ProgressionWorsening, p.Progression.Trend)
	assert.Equal(t, []int{0, 1, 2}, p.Progression.Scores)
	assert.Equal(t, 0, p.Progression.InitialScore)
	assert.Equal(t, 2, p.Progression.FinalScore)
	assert.Equal(t, 3, p.Progression.Timepoints)
	assert.InDelta(t, 0.6667, p.Progression.Velocity, 1e-9)
	assert.True(t, strings.HasPrefix(p.Recommendations[0], "Urgent review"))
}

func TestPatternDetector_ProgressionCarriesValuesForward(t *testing.T) {
	detector := NewPatternDetector(nil)
	start := day(2024, 1, 10)

	series := map[string]domain.TimeSeries{
		"glucose": seriesAt("glucose", start, month, 110),
		"hba1c":   seriesAt("hba1c", start.Add(month), month, 6.0),
	}

	p := findPattern(t, detector.Detect(map[string]float64{"glucose": 110, "hba1c": 6.0}, series), "diabetes_risk")

	require.NotNil(t, p.Progression)
	assert.Equal(t, []int{1, 2}, p.Progression.Scores)
	assert.Equal(t, domain.ProgressionWorsening, p.Progression.Trend)
}

func TestPatternDetector_ProgressionImproving(t *testing.T) {
	detector := NewPatternDetector(nil)
	start := day(2024, 1, 10)

	series := map[string]domain.TimeSeries{
		"creatinine": seriesAt("creatinine", start, month, 1.6, 1.4, 1.1),
		"egfr":       seriesAt("egfr", start, month, 50, 58, 72),
	}

	p := findPattern(t, detector.Detect(map[string]float64{"creatinine": 1.1, "egfr": 72}, series), "kidney_dysfunction")

	require.NotNil(t, p.Progression)
	assert.Equal(t, domain.ProgressionImproving, p.Progression.Trend)
	assert.False(t, p.Detected)
	assert.Less(t, p.Progression.Velocity, 0.0)
}

func TestCriterion_String(t *testing.T) {
	assert.Equal(t, "glucose >= 100", atLeast("glucose", 100).String())
	assert.Equal(t, "bun > 20", greaterThan("bun", 20).String())
	assert.Equal(t, "hdl < 40", lessThan("hdl", 40).String())
	assert.Equal(t, "tsh outside 0.4-4.5", outside("tsh", 0.4, 4.5).String())
}
