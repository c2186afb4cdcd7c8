package domain

import "strings"

// ParameterType is the physiological category a lab parameter belongs to
type ParameterType string

const (
	GlucoseMetabolism ParameterType = "glucose_metabolism"
	LipidMetabolism   ParameterType = "lipid_metabolism"
	KidneyFunction    ParameterType = "kidney_function"
	LiverFunction     ParameterType = "liver_function"
	Hematology        ParameterType = "hematology"
	ThyroidFunction   ParameterType = "thyroid_function"
	DefaultCategory   ParameterType = "default"
)

// String returns the string representation of the parameter type
func (p ParameterType) String() string {
	return string(p)
}

// TrendDirection represents the direction of a fitted trend
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Magnitude represents how steep a trend is
type Magnitude string

const (
	MagnitudeMild     Magnitude = "mild"
	MagnitudeModerate Magnitude = "moderate"
	MagnitudeHigh     Magnitude = "high"
)

// Significance represents the clinical significance of a finding
type Significance string

const (
	SignificanceMinimal  Significance = "minimal"
	SignificanceLow      Significance = "low"
	SignificanceModerate Significance = "moderate"
	SignificanceHigh     Significance = "high"
)

// Rank orders significance values from minimal (0) to high (3)
func (s Significance) Rank() int {
	switch s {
	case SignificanceHigh:
		return 3
	case SignificanceModerate:
		return 2
	case SignificanceLow:
		return 1
	default:
		return 0
	}
}

// ConcernLevel represents how worrying a parameter currently is
type ConcernLevel string

const (
	ConcernLow      ConcernLevel = "low"
	ConcernModerate ConcernLevel = "moderate"
	ConcernHigh     ConcernLevel = "high"
)

// CorrelationStrength buckets the absolute value of a correlation coefficient
type CorrelationStrength string

const (
	CorrelationWeak       CorrelationStrength = "weak"
	CorrelationModerate   CorrelationStrength = "moderate"
	CorrelationStrong     CorrelationStrength = "strong"
	CorrelationVeryStrong CorrelationStrength = "very_strong"
)

// CorrelationDirection is the sign of a correlation coefficient
type CorrelationDirection string

const (
	CorrelationPositive CorrelationDirection = "positive"
	CorrelationNegative CorrelationDirection = "negative"
)

// ProgressionTrend describes how criteria satisfaction evolves over time
type ProgressionTrend string

const (
	ProgressionWorsening    ProgressionTrend = "worsening"
	ProgressionImproving    ProgressionTrend = "improving"
	ProgressionStable       ProgressionTrend = "stable"
	ProgressionInsufficient ProgressionTrend = "insufficient_data"
)

// RiskLevel is the overall severity of an assessment
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels from low (0) to critical (3)
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskModerate:
		return 1
	default:
		return 0
	}
}

// MaxRisk returns the more severe of two risk levels
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseRiskLevel maps free text onto a risk level, defaulting to low
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "severe":
		return RiskCritical
	case "high", "elevated":
		return RiskHigh
	case "moderate", "medium":
		return RiskModerate
	}
	return RiskLow
}

// Urgency is the action horizon implied by the overall risk
type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencySoon      Urgency = "soon"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyImmediate Urgency = "immediate"
)

// UrgencyForRisk maps a risk level onto an urgency
func UrgencyForRisk(r RiskLevel) Urgency {
	switch r {
	case RiskCritical:
		return UrgencyImmediate
	case RiskHigh:
		return UrgencyUrgent
	case RiskModerate:
		return UrgencySoon
	default:
		return UrgencyRoutine
	}
}

// Data categories used as case-file keys and record-source slots
const (
	CategoryLabResults     = "lab_results"
	CategoryMedicalRecords = "medical_records"
	CategoryProfile        = "profile"
	CategoryDataQuality    = "data_quality"
	CategoryOpinions       = "opinions"
	CategoryPipeline       = "pipeline"
)
