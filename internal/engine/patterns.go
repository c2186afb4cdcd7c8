package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// CriterionKind is how a criterion compares a value to its threshold
type CriterionKind string

const (
	Above   CriterionKind = "above"
	Below   CriterionKind = "below"
	Outside CriterionKind = "outside"
)

// Criterion is one parameter check of a rule-set
type Criterion struct {
	Parameter string
	Kind      CriterionKind
	Threshold float64
	Inclusive bool
	Low       float64
	High      float64
}

// Met reports whether a value satisfies the criterion
func (c Criterion) Met(v float64) bool {
	switch c.Kind {
	case Above:
		if c.Inclusive {
			return v >= c.Threshold
		}
		return v > c.Threshold
	case Below:
		if c.Inclusive {
			return v <= c.Threshold
		}
		return v < c.Threshold
	case Outside:
		return v < c.Low || v > c.High
	}
	return false
}

// String renders the criterion as a readable rule
func (c Criterion) String() string {
	switch c.Kind {
	case Above:
		if c.Inclusive {
			return fmt.Sprintf("%s >= %g", c.Parameter, c.Threshold)
		}
		return fmt.Sprintf("%s > %g", c.Parameter, c.Threshold)
	case Below:
		if c.Inclusive {
			return fmt.Sprintf("%s <= %g", c.Parameter, c.Threshold)
		}
		return fmt.Sprintf("%s < %g", c.Parameter, c.Threshold)
	case Outside:
		return fmt.Sprintf("%s outside %g-%g", c.Parameter, c.Low, c.High)
	}
	return c.Parameter
}

func atLeast(parameter string, threshold float64) Criterion {
	return Criterion{Parameter: parameter, Kind: Above, Threshold: threshold, Inclusive: true}
}

func greaterThan(parameter string, threshold float64) Criterion {
	return Criterion{Parameter: parameter, Kind: Above, Threshold: threshold}
}

func lessThan(parameter string, threshold float64) Criterion {
	return Criterion{Parameter: parameter, Kind: Below, Threshold: threshold}
}

func outside(parameter string, low, high float64) Criterion {
	return Criterion{Parameter: parameter, Kind: Outside, Low: low, High: high}
}

// RuleSet is a named clinical pattern definition
type RuleSet struct {
	Name             string
	Description      string
	Criteria         []Criterion
	MinMet           int
	Weight           float64
	TrackProgression bool
	Recommendations  []string
}

// DefaultRuleSets returns the fixed pattern catalogue
func DefaultRuleSets() []RuleSet {
	return []RuleSet{
		{
			Name:        "metabolic_syndrome",
			Description: "metabolic syndrome",
			Criteria: []Criterion{
				atLeast("glucose", 100),
				atLeast("triglycerides", 150),
				lessThan("hdl", 40),
				atLeast("systolic_bp", 130),
			},
			MinMet:           3,
			Weight:           0.2,
			TrackProgression: true,
			Recommendations: []string{
				"Consider intensive lifestyle intervention targeting weight and physical activity",
				"Monitor fasting glucose, lipid panel and blood pressure every 3 months",
			},
		},
		{
			Name:        "diabetes_risk",
			Description: "elevated diabetes risk",
			Criteria: []Criterion{
				atLeast("glucose", 100),
				atLeast("hba1c", 5.7),
			},
			MinMet:           2,
			Weight:           0.4,
			TrackProgression: true,
			Recommendations: []string{
				"Consider endocrinology referral for diabetes evaluation",
				"Repeat HbA1c and fasting glucose in 3 months",
			},
		},
		{
			Name:        "cardiovascular_risk",
			Description: "elevated cardiovascular risk",
			Criteria: []Criterion{
				atLeast("ldl", 130),
				atLeast("cholesterol", 200),
				lessThan("hdl", 40),
				atLeast("triglycerides", 150),
				atLeast("systolic_bp", 140),
			},
			MinMet: 2,
			Weight: 0.15,
			Recommendations: []string{
				"Consider statin therapy evaluation and cardiovascular risk scoring",
				"Repeat lipid panel in 6-8 weeks after dietary changes",
			},
		},
		{
			Name:        "kidney_dysfunction",
			Description: "impaired kidney function",
			Criteria: []Criterion{
				greaterThan("creatinine", 1.2),
				greaterThan("bun", 20),
				lessThan("egfr", 60),
			},
			MinMet:           2,
			Weight:           0.3,
			TrackProgression: true,
			Recommendations: []string{
				"Urgent nephrology referral for reduced kidney function",
				"Monitor renal function and electrolytes in 2-4 weeks",
			},
		},
		{
			Name:        "liver_dysfunction",
			Description: "impaired liver function",
			Criteria: []Criterion{
				greaterThan("alt", 56),
				greaterThan("ast", 40),
				greaterThan("bilirubin", 1.2),
				lessThan("albumin", 3.5),
			},
			MinMet: 2,
			Weight: 0.25,
			Recommendations: []string{
				"Consider hepatology referral and liver ultrasound",
				"Repeat liver function tests in 4-6 weeks",
			},
		},
		{
			Name:        "anemia",
			Description: "anemia",
			Criteria: []Criterion{
				lessThan("hemoglobin", 12),
				lessThan("hematocrit", 36),
			},
			MinMet: 1,
			Weight: 0.4,
			Recommendations: []string{
				"Consider iron studies with B12 and folate testing",
				"Repeat complete blood count in 4 weeks",
			},
		},
		{
			Name:        "thyroid_dysfunction",
			Description: "thyroid dysfunction",
			Criteria: []Criterion{
				outside("tsh", 0.4, 4.5),
				outside("free_t4", 0.8, 1.8),
			},
			MinMet: 1,
			Weight: 0.4,
			Recommendations: []string{
				"Consider endocrinology referral for thyroid management",
				"Repeat TSH and free T4 in 6-8 weeks",
			},
		},
	}
}

// PatternDetector evaluates the rule-set catalogue against a patient's values
type PatternDetector struct {
	rules []RuleSet
}

// NewPatternDetector creates a detector over the given catalogue; nil selects
// DefaultRuleSets
func NewPatternDetector(rules []RuleSet) *PatternDetector {
	if rules == nil {
		rules = DefaultRuleSets()
	}
	return &PatternDetector{rules: rules}
}

// Detect evaluates every rule-set and returns one pattern per rule-set,
// detected or not, in catalogue order
func (d *PatternDetector) Detect(latest map[string]float64, series map[string]domain.TimeSeries) []domain.ClinicalPattern {
	patterns := make([]domain.ClinicalPattern, 0, len(d.rules))
	for _, rule := range d.rules {
		patterns = append(patterns, d.evaluate(rule, latest, series))
	}
	return patterns
}

func (d *PatternDetector) evaluate(rule RuleSet, latest map[string]float64, series map[string]domain.TimeSeries) domain.ClinicalPattern {
	pattern := domain.ClinicalPattern{
		Name:            rule.Name,
		Description:     rule.Description,
		TotalCriteria:   len(rule.Criteria),
		Criteria:        make([]domain.CriterionResult, 0, len(rule.Criteria)),
		Recommendations: []string{},
	}

	var metParams []string
	for _, c := range rule.Criteria {
		res := domain.CriterionResult{Parameter: c.Parameter, Rule: c.String()}
		if v, ok := latest[c.Parameter]; ok {
			value := v
			res.Available = true
			res.Value = &value
			res.Met = c.Met(v)
			pattern.AvailableCriteria++
			if res.Met {
				pattern.CriteriaMet++
				metParams = append(metParams, c.Parameter)
			}
		}
		pattern.Criteria = append(pattern.Criteria, res)
	}

	pattern.Detected = pattern.CriteriaMet >= rule.MinMet
	if pattern.AvailableCriteria > 0 {
		pattern.Confidence = round4(float64(pattern.CriteriaMet) / float64(pattern.AvailableCriteria))
	}
	pattern.RiskScore = round4(math.Min(1, float64(pattern.CriteriaMet)*rule.Weight))
	pattern.Significance = patternSignificance(pattern)

	if rule.TrackProgression {
		progression := d.progression(rule, series)
		pattern.Progression = &progression
	}

	switch {
	case pattern.Detected:
		if pattern.Progression != nil && pattern.Progression.Trend == domain.ProgressionWorsening {
			pattern.Recommendations = append(pattern.Recommendations,
				fmt.Sprintf("Urgent review: %s criteria are worsening across recent results", rule.Description))
		}
		pattern.Recommendations = append(pattern.Recommendations, rule.Recommendations...)
	case pattern.CriteriaMet > 0:
		pattern.Recommendations = append(pattern.Recommendations,
			fmt.Sprintf("Monitor %s for emerging %s", strings.Join(metParams, ", "), rule.Description))
	}

	return pattern
}

func patternSignificance(p domain.ClinicalPattern) domain.Significance {
	switch {
	case p.Detected && p.RiskScore >= 0.7:
		return domain.SignificanceHigh
	case p.Detected:
		return domain.SignificanceModerate
	case p.CriteriaMet > 0:
		return domain.SignificanceLow
	default:
		return domain.SignificanceMinimal
	}
}

// progression scores each observation day by the number of criteria met,
// carrying every parameter's most recent value forward
func (d *PatternDetector) progression(rule RuleSet, series map[string]domain.TimeSeries) domain.ProgressionAnalysis {
	daySet := make(map[time.Time]bool)
	for _, c := range rule.Criteria {
		for _, p := range series[c.Parameter].Points {
			daySet[dayOf(p.Timestamp)] = true
		}
	}

	days := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	if len(days) < 2 {
		return domain.ProgressionAnalysis{Trend: domain.ProgressionInsufficient, Timepoints: len(days)}
	}

	scores := make([]int, len(days))
	for i, day := range days {
		cutoff := day.Add(24 * time.Hour)
		for _, c := range rule.Criteria {
			if v, ok := valueAsOf(series[c.Parameter], cutoff); ok && c.Met(v) {
				scores[i]++
			}
		}
	}

	initial, final := scores[0], scores[len(scores)-1]
	trend := domain.ProgressionStable
	switch {
	case final > initial:
		trend = domain.ProgressionWorsening
	case final < initial:
		trend = domain.ProgressionImproving
	}

	return domain.ProgressionAnalysis{
		Trend:        trend,
		InitialScore: initial,
		FinalScore:   final,
		Velocity:     round4(float64(final-initial) / float64(len(scores))),
		Timepoints:   len(scores),
		Scores:       scores,
	}
}

// valueAsOf returns the last value observed strictly before cutoff
func valueAsOf(ts domain.TimeSeries, cutoff time.Time) (float64, bool) {
	value, found := 0.0, false
	for _, p := range ts.Points {
		if !p.Timestamp.Before(cutoff) {
			break
		}
		value, found = p.Value, true
	}
	return value, found
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
