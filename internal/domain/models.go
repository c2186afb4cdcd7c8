package domain

import (
	"strings"
	"time"
)

// RawRecord is a heterogeneous record as returned by the document store.
// Field names and value shapes vary between sources.
type RawRecord map[string]interface{}

// LabObservation is one canonical parameter measurement
type LabObservation struct {
	Parameter     string    `json:"parameter"`
	Value         float64   `json:"value"`
	Timestamp     time.Time `json:"timestamp"`
	SourceLabType string    `json:"source_lab_type"`
}

// DataPoint is a single (timestamp, value) sample of a time series
type DataPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Value         float64   `json:"value"`
	SourceLabType string    `json:"source_lab_type,omitempty"`
}

// TimeSeries is a chronological sequence of values for one parameter.
// Points are ordered ascending by timestamp; duplicate timestamps are kept.
type TimeSeries struct {
	Parameter string      `json:"parameter"`
	Points    []DataPoint `json:"points"`
}

// Len returns the number of points in the series
func (ts TimeSeries) Len() int {
	return len(ts.Points)
}

// Values returns the series values in chronological order
func (ts TimeSeries) Values() []float64 {
	values := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		values[i] = p.Value
	}
	return values
}

// Latest returns the most recent point of the series
func (ts TimeSeries) Latest() (DataPoint, bool) {
	if len(ts.Points) == 0 {
		return DataPoint{}, false
	}
	return ts.Points[len(ts.Points)-1], true
}

// TrendStatistics holds the statistics derived from one parameter's time series
type TrendStatistics struct {
	Parameter              string    `json:"parameter"`
	SampleCount            int       `json:"sample_count"`
	Mean                   float64   `json:"mean"`
	Median                 float64   `json:"median"`
	StdDev                 float64   `json:"std_dev"`
	CoefficientOfVariation float64   `json:"coefficient_of_variation"`
	Min                    float64   `json:"min"`
	Max                    float64   `json:"max"`
	FirstValue             float64   `json:"first_value"`
	LastValue              float64   `json:"last_value"`
	Slope                  float64   `json:"slope"`
	Intercept              float64   `json:"intercept"`
	Correlation            float64   `json:"correlation"`
	RSquared               float64   `json:"r_squared"`
	PValue                 float64   `json:"p_value"`
	TrendConsistency       float64   `json:"trend_consistency"`
	Volatility             float64   `json:"volatility"`
	FirstObserved          time.Time `json:"first_observed"`
	LastObserved           time.Time `json:"last_observed"`
	SpanDays               float64   `json:"span_days"`
}

// TimeToConcern projects when a trending parameter leaves its normal range
type TimeToConcern struct {
	Months      float64        `json:"months"`
	TargetValue float64        `json:"target_value"`
	Direction   TrendDirection `json:"direction"`
}

// ClinicalInterpretation is the qualitative judgement of one parameter's trend
type ClinicalInterpretation struct {
	Parameter      string         `json:"parameter"`
	ParameterType  ParameterType  `json:"parameter_type"`
	TrendDirection TrendDirection `json:"trend_direction"`
	Magnitude      Magnitude      `json:"magnitude"`
	Significance   Significance   `json:"significance"`
	ConcernLevel   ConcernLevel   `json:"concern_level"`
	IsAbnormal     bool           `json:"is_abnormal"`
	CurrentValue   float64        `json:"current_value"`
	NormalRange    NormalRange    `json:"normal_range"`
	TimeToConcern  *TimeToConcern `json:"time_to_concern,omitempty"`
}

// NormalRange is a reference interval. A nil bound means unbounded on that side.
type NormalRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether v lies inside the range
func (r NormalRange) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// CorrelationResult is the Pearson correlation between two aligned parameters
type CorrelationResult struct {
	ParameterA           string               `json:"parameter_a"`
	ParameterB           string               `json:"parameter_b"`
	Coefficient          float64              `json:"coefficient"`
	Strength             CorrelationStrength  `json:"strength"`
	Direction            CorrelationDirection `json:"direction"`
	ClinicalSignificance Significance         `json:"clinical_significance"`
	SampleSize           int                  `json:"sample_size"`
	PValueApprox         float64              `json:"p_value_approx"`
	Interpretation       string               `json:"interpretation,omitempty"`
}

// ProgressionAnalysis describes how a pattern's criteria satisfaction evolves
type ProgressionAnalysis struct {
	Trend        ProgressionTrend `json:"trend"`
	InitialScore int              `json:"initial_score"`
	FinalScore   int              `json:"final_score"`
	Velocity     float64          `json:"velocity"`
	Timepoints   int              `json:"timepoints"`
	Scores       []int            `json:"scores,omitempty"`
}

// CriterionResult records how one criterion of a pattern evaluated
type CriterionResult struct {
	Parameter string   `json:"parameter"`
	Rule      string   `json:"rule"`
	Available bool     `json:"available"`
	Met       bool     `json:"met"`
	Value     *float64 `json:"value,omitempty"`
}

// ClinicalPattern is the outcome of evaluating one named rule-set
type ClinicalPattern struct {
	Name              string               `json:"name"`
	Description       string               `json:"description,omitempty"`
	Detected          bool                 `json:"detected"`
	Confidence        float64              `json:"confidence"`
	RiskScore         float64              `json:"risk_score"`
	Significance      Significance         `json:"significance"`
	CriteriaMet       int                  `json:"criteria_met"`
	AvailableCriteria int                  `json:"available_criteria"`
	TotalCriteria     int                  `json:"total_criteria"`
	Criteria          []CriterionResult    `json:"criteria,omitempty"`
	Recommendations   []string             `json:"recommendations"`
	Progression       *ProgressionAnalysis `json:"progression,omitempty"`
}

// FeatureSet collects every engineered feature of one assessment run
type FeatureSet struct {
	TimeSeries       map[string]TimeSeries             `json:"time_series"`
	Statistics       map[string]TrendStatistics        `json:"statistics"`
	Interpretations  map[string]ClinicalInterpretation `json:"interpretations"`
	Correlations     []CorrelationResult               `json:"correlations"`
	Patterns         []ClinicalPattern                 `json:"patterns"`
	InsufficientData []string                          `json:"insufficient_data"`
	LatestValues     map[string]float64                `json:"latest_values"`
}

// NewFeatureSet returns an empty, fully initialised feature set
func NewFeatureSet() FeatureSet {
	return FeatureSet{
		TimeSeries:       make(map[string]TimeSeries),
		Statistics:       make(map[string]TrendStatistics),
		Interpretations:  make(map[string]ClinicalInterpretation),
		Correlations:     []CorrelationResult{},
		Patterns:         []ClinicalPattern{},
		InsufficientData: []string{},
		LatestValues:     make(map[string]float64),
	}
}

// SpecialistOpinion is the structured narrative opinion of one contributor
type SpecialistOpinion struct {
	Specialist      string    `json:"specialist"`
	Assessment      string    `json:"assessment"`
	RiskLevel       RiskLevel `json:"risk_level"`
	KeyFindings     []string  `json:"key_findings"`
	Recommendations []string  `json:"recommendations"`
	FollowUp        string    `json:"follow_up"`
	Confidence      float64   `json:"confidence"`
	LowConfidence   bool      `json:"low_confidence"`
	Source          string    `json:"source"`
}

// Synthesis is the consolidated output of the recommendation synthesizer
type Synthesis struct {
	Recommendations   []string  `json:"recommendations"`
	OverallRisk       RiskLevel `json:"overall_risk"`
	Urgency           Urgency   `json:"urgency"`
	FollowUpTimeline  string    `json:"follow_up_timeline"`
	RiskContributors  []string  `json:"risk_contributors"`
	ConsensusFindings []string  `json:"consensus_findings"`
	LowConfidence     bool      `json:"low_confidence"`
}

// TimeRange restricts a document-store query. Zero bounds are open.
type TimeRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// DateLayout is the calendar-date form accepted for time range bounds
const DateLayout = "2006-01-02"

// ParseDateRange reads optional YYYY-MM-DD bounds; the upper bound covers
// the whole day
func ParseDateRange(from, to string) (TimeRange, error) {
	var tr TimeRange
	if s := strings.TrimSpace(from); s != "" {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return tr, NewValidationError("from", "expected YYYY-MM-DD", from)
		}
		tr.From = t
	}
	if s := strings.TrimSpace(to); s != "" {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return tr, NewValidationError("to", "expected YYYY-MM-DD", to)
		}
		tr.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !tr.From.IsZero() && !tr.To.IsZero() && tr.To.Before(tr.From) {
		return tr, NewValidationError("to", "time range ends before it starts", to)
	}
	return tr, nil
}

// Contains reports whether t lies inside the range
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// IsZero reports whether the range is unbounded on both sides
func (r TimeRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}
