package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

func TestPrioritizeRecommendations(t *testing.T) {
	got := PrioritizeRecommendations([]string{
		"Repeat lipid panel in 6-8 weeks",
		"Monitor glucose trend",
		"Consider statin therapy",
		"monitor GLUCOSE trend",
		"Urgent nephrology referral",
		"  ",
		"Consider intensive lifestyle intervention",
		"Immediate clinical review",
		"Consider dietary counselling",
	})

	assert.Equal(t, []string{
		"Immediate clinical review",
		"Urgent nephrology referral",
		"Consider intensive lifestyle intervention",
		"Consider statin therapy",
		"Consider dietary counselling",
		"Monitor glucose trend",
		"Repeat lipid panel in 6-8 weeks",
	}, got)
}

func TestFollowUpTimeline(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  string
	}{
		{"immediate wins", []string{"Repeat in 2 weeks", "Immediate referral"}, "immediate"},
		{"shortest weeks", []string{"Repeat in 6 weeks", "Monitor renal function in 2-4 weeks", "Recheck in 3 months"}, "2-4 weeks"},
		{"single week", []string{"Review again in 1 week"}, "1 week"},
		{"weeks beat months", []string{"Follow up in 1 month", "Repeat in 8 weeks"}, "8 weeks"},
		{"shortest months", []string{"Repeat HbA1c in 3 months", "Review in 6-12 months"}, "3 months"},
		{"fractional projections ignored", []string{"projected to reach 100 in about 3.5 months"}, DefaultFollowUp},
		{"nothing explicit", []string{"Consider statin therapy"}, DefaultFollowUp},
		{"empty", nil, DefaultFollowUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FollowUpTimeline(tt.texts))
		})
	}
}

func TestSynthesizer_CriticalWorseningPattern(t *testing.T) {
	features := domain.NewFeatureSet()
	features.Patterns = []domain.ClinicalPattern{
		{
			Name:            "metabolic_syndrome",
			Detected:        true,
			RiskScore:       0.8,
			Recommendations: []string{"Consider intensive lifestyle intervention", "Monitor fasting glucose every 3 months"},
			Progression:     &domain.ProgressionAnalysis{Trend: domain.ProgressionWorsening},
		},
		{Name: "anemia", Recommendations: []string{}},
	}

	got := NewSynthesizer().Synthesize(features, nil)

	assert.Equal(t, domain.RiskCritical, got.OverallRisk)
	assert.Equal(t, domain.UrgencyImmediate, got.Urgency)
	assert.Equal(t, "immediate", got.FollowUpTimeline)
	require.NotEmpty(t, got.Recommendations)
	assert.Equal(t, "Immediate clinical review of critical findings", got.Recommendations[0])
	assert.Equal(t, []string{"pattern:metabolic_syndrome"}, got.RiskContributors)
}

func TestSynthesizer_RiskFromInterpretationsAndOpinions(t *testing.T) {
	features := domain.NewFeatureSet()
	features.Interpretations["glucose"] = domain.ClinicalInterpretation{
		Parameter:      "glucose",
		TrendDirection: domain.TrendIncreasing,
		Significance:   domain.SignificanceModerate,
		ConcernLevel:   domain.ConcernModerate,
	}
	features.Interpretations["ldl"] = domain.ClinicalInterpretation{
		Parameter:    "ldl",
		IsAbnormal:   true,
		ConcernLevel: domain.ConcernHigh,
	}

	got := NewSynthesizer().Synthesize(features, nil)
	assert.Equal(t, domain.RiskHigh, got.OverallRisk)
	assert.Equal(t, domain.UrgencyUrgent, got.Urgency)
	assert.Equal(t, []string{"parameter:ldl"}, got.RiskContributors)
	assert.Equal(t, DefaultFollowUp, got.FollowUpTimeline)
	assert.Equal(t, []string{
		"Consider targeted evaluation of ldl outside its normal range",
		"Monitor glucose trend (increasing) at the next visit",
	}, got.Recommendations)

	opinions := map[string]domain.SpecialistOpinion{
		"cardiologist": {Specialist: "cardiologist", RiskLevel: domain.RiskCritical, FollowUp: "2 weeks"},
	}
	got = NewSynthesizer().Synthesize(features, opinions)
	assert.Equal(t, domain.RiskCritical, got.OverallRisk)
	assert.Equal(t, []string{"specialist:cardiologist"}, got.RiskContributors)
}

func TestSynthesizer_NoFindings(t *testing.T) {
	got := NewSynthesizer().Synthesize(domain.NewFeatureSet(), nil)

	assert.Equal(t, domain.RiskLow, got.OverallRisk)
	assert.Equal(t, domain.UrgencyRoutine, got.Urgency)
	assert.Equal(t, DefaultFollowUp, got.FollowUpTimeline)
	assert.Empty(t, got.Recommendations)
	assert.Empty(t, got.RiskContributors)
	assert.False(t, got.LowConfidence)
}

func TestSynthesizer_OpinionsConsensusAndConfidence(t *testing.T) {
	opinions := map[string]domain.SpecialistOpinion{
		"internist": {
			Specialist:      "internist",
			RiskLevel:       domain.RiskModerate,
			KeyFindings:     []string{"Rising fasting glucose", "Low HDL"},
			Recommendations: []string{"Monitor glucose monthly"},
			FollowUp:        "3 months",
		},
		"endocrinologist": {
			Specialist:      "endocrinologist",
			RiskLevel:       domain.RiskModerate,
			KeyFindings:     []string{"rising fasting glucose"},
			Recommendations: []string{"Consider metformin evaluation", "monitor glucose monthly"},
			FollowUp:        "4-6 weeks",
			LowConfidence:   true,
		},
	}

	got := NewSynthesizer().Synthesize(domain.NewFeatureSet(), opinions)

	assert.Equal(t, domain.RiskModerate, got.OverallRisk)
	assert.Equal(t, domain.UrgencySoon, got.Urgency)
	assert.Equal(t, "4-6 weeks", got.FollowUpTimeline)
	assert.True(t, got.LowConfidence)
	assert.Equal(t, []string{"Consider metformin evaluation", "monitor glucose monthly"}, got.Recommendations)
	assert.Equal(t, []string{"rising fasting glucose", "Specialists agree on moderate risk"}, got.ConsensusFindings)
	assert.ElementsMatch(t, []string{"specialist:endocrinologist", "specialist:internist"}, got.RiskContributors)
}
