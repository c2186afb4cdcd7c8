package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// DefaultFollowUp is used when no recommendation names an explicit interval
const DefaultFollowUp = "3-6 months"

// priorityBuckets orders recommendations by the first keyword they contain
var priorityBuckets = []string{"immediate", "urgent", "intensive", "consider", "monitor"}

var (
	weeksInterval  = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d+)(?:\s*[-–]\s*(\d+))?\s*weeks?\b`)
	monthsInterval = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d+)(?:\s*[-–]\s*(\d+))?\s*months?\b`)
)

// Synthesizer consolidates engine output and specialist opinions
type Synthesizer struct{}

// NewSynthesizer creates a synthesizer
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize merges interpretations, correlations, patterns and opinions into
// one prioritized recommendation list with an overall risk and follow-up
func (s *Synthesizer) Synthesize(features domain.FeatureSet, opinions map[string]domain.SpecialistOpinion) domain.Synthesis {
	specialists := make([]string, 0, len(opinions))
	for name := range opinions {
		specialists = append(specialists, name)
	}
	sort.Strings(specialists)

	risk, contributors := overallRisk(features, opinions, specialists)

	var recs []string
	if risk == domain.RiskCritical {
		recs = append(recs, "Immediate clinical review of critical findings")
	}
	recs = append(recs, interpretationRecommendations(features)...)
	for _, c := range features.Correlations {
		if c.ClinicalSignificance == domain.SignificanceHigh {
			recs = append(recs, fmt.Sprintf("Consider joint evaluation of %s and %s (r=%.2f)", c.ParameterA, c.ParameterB, c.Coefficient))
		}
	}
	for _, p := range features.Patterns {
		recs = append(recs, p.Recommendations...)
	}
	followUps := []string{}
	lowConfidence := false
	for _, name := range specialists {
		op := opinions[name]
		recs = append(recs, op.Recommendations...)
		if op.FollowUp != "" {
			followUps = append(followUps, op.FollowUp)
		}
		lowConfidence = lowConfidence || op.LowConfidence
	}

	recs = PrioritizeRecommendations(recs)

	return domain.Synthesis{
		Recommendations:   recs,
		OverallRisk:       risk,
		Urgency:           domain.UrgencyForRisk(risk),
		FollowUpTimeline:  FollowUpTimeline(append(append([]string{}, recs...), followUps...)),
		RiskContributors:  contributors,
		ConsensusFindings: consensusFindings(opinions, specialists),
		LowConfidence:     lowConfidence,
	}
}

func interpretationRecommendations(features domain.FeatureSet) []string {
	params := make([]string, 0, len(features.Interpretations))
	for name := range features.Interpretations {
		params = append(params, name)
	}
	sort.Strings(params)

	var recs []string
	for _, name := range params {
		in := features.Interpretations[name]
		switch {
		case in.Significance == domain.SignificanceHigh:
			recs = append(recs, fmt.Sprintf("Urgent follow-up of rapidly %s %s", in.TrendDirection, name))
		case in.IsAbnormal:
			recs = append(recs, fmt.Sprintf("Consider targeted evaluation of %s outside its normal range", name))
		case in.Significance == domain.SignificanceModerate:
			recs = append(recs, fmt.Sprintf("Monitor %s trend (%s) at the next visit", name, in.TrendDirection))
		}
		if in.TimeToConcern != nil {
			recs = append(recs, fmt.Sprintf("Monitor %s: projected to reach %g in about %.1f months",
				name, in.TimeToConcern.TargetValue, in.TimeToConcern.Months))
		}
	}
	return recs
}

// overallRisk takes the most severe level across interpretations, patterns
// and opinions and names what contributed to it
func overallRisk(features domain.FeatureSet, opinions map[string]domain.SpecialistOpinion, specialists []string) (domain.RiskLevel, []string) {
	type contribution struct {
		source string
		level  domain.RiskLevel
	}
	var all []contribution

	params := make([]string, 0, len(features.Interpretations))
	for name := range features.Interpretations {
		params = append(params, name)
	}
	sort.Strings(params)
	for _, name := range params {
		all = append(all, contribution{"parameter:" + name, concernRisk(features.Interpretations[name].ConcernLevel)})
	}
	for _, p := range features.Patterns {
		all = append(all, contribution{"pattern:" + p.Name, patternRisk(p)})
	}
	for _, name := range specialists {
		all = append(all, contribution{"specialist:" + name, opinions[name].RiskLevel})
	}

	risk := domain.RiskLow
	for _, c := range all {
		risk = domain.MaxRisk(risk, c.level)
	}

	contributors := []string{}
	if risk == domain.RiskLow {
		return risk, contributors
	}
	for _, c := range all {
		if c.level == risk {
			contributors = append(contributors, c.source)
		}
	}
	return risk, contributors
}

func concernRisk(c domain.ConcernLevel) domain.RiskLevel {
	switch c {
	case domain.ConcernHigh:
		return domain.RiskHigh
	case domain.ConcernModerate:
		return domain.RiskModerate
	default:
		return domain.RiskLow
	}
}

func patternRisk(p domain.ClinicalPattern) domain.RiskLevel {
	if !p.Detected {
		return domain.RiskLow
	}
	worsening := p.Progression != nil && p.Progression.Trend == domain.ProgressionWorsening
	switch {
	case p.RiskScore >= 0.8 && worsening:
		return domain.RiskCritical
	case p.RiskScore >= 0.7:
		return domain.RiskHigh
	default:
		return domain.RiskModerate
	}
}

// PrioritizeRecommendations drops case-insensitive duplicates and orders the
// rest by priority bucket, keeping input order within a bucket
func PrioritizeRecommendations(recs []string) []string {
	seen := make(map[string]bool, len(recs))
	unique := make([]string, 0, len(recs))
	for _, r := range recs {
		r = strings.TrimSpace(r)
		key := strings.ToLower(r)
		if r == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, r)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return priorityOf(unique[i]) < priorityOf(unique[j])
	})
	return unique
}

func priorityOf(rec string) int {
	lower := strings.ToLower(rec)
	for i, keyword := range priorityBuckets {
		if strings.Contains(lower, keyword) {
			return i
		}
	}
	return len(priorityBuckets)
}

// FollowUpTimeline picks the most urgent interval named in the texts:
// "immediate" beats any week interval, which beats any month interval
func FollowUpTimeline(texts []string) string {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), "immediate") {
			return "immediate"
		}
	}
	if best, ok := shortestInterval(texts, weeksInterval, "weeks"); ok {
		return best
	}
	if best, ok := shortestInterval(texts, monthsInterval, "months"); ok {
		return best
	}
	return DefaultFollowUp
}

func shortestInterval(texts []string, pattern *regexp.Regexp, unit string) (string, bool) {
	bestLow, bestHigh := -1, -1
	for _, t := range texts {
		for _, m := range pattern.FindAllStringSubmatch(t, -1) {
			low, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			high := low
			if m[2] != "" {
				if h, err := strconv.Atoi(m[2]); err == nil {
					high = h
				}
			}
			if bestLow == -1 || low < bestLow || (low == bestLow && high < bestHigh) {
				bestLow, bestHigh = low, high
			}
		}
	}
	if bestLow == -1 {
		return "", false
	}
	if bestHigh != bestLow {
		return fmt.Sprintf("%d-%d %s", bestLow, bestHigh, unit), true
	}
	if bestLow == 1 {
		return "1 " + strings.TrimSuffix(unit, "s"), true
	}
	return fmt.Sprintf("%d %s", bestLow, unit), true
}

// consensusFindings reports findings shared by at least two specialists and
// agreement on the risk level
func consensusFindings(opinions map[string]domain.SpecialistOpinion, specialists []string) []string {
	findings := []string{}
	if len(specialists) < 2 {
		return findings
	}

	counts := make(map[string]int)
	display := make(map[string]string)
	var order []string
	for _, name := range specialists {
		seen := make(map[string]bool)
		for _, f := range opinions[name].KeyFindings {
			key := strings.ToLower(strings.TrimSpace(f))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if _, ok := display[key]; !ok {
				display[key] = strings.TrimSpace(f)
				order = append(order, key)
			}
			counts[key]++
		}
	}
	for _, key := range order {
		if counts[key] >= 2 {
			findings = append(findings, display[key])
		}
	}

	level := opinions[specialists[0]].RiskLevel
	agree := true
	for _, name := range specialists[1:] {
		if opinions[name].RiskLevel != level {
			agree = false
			break
		}
	}
	if agree {
		findings = append(findings, fmt.Sprintf("Specialists agree on %s risk", level))
	}
	return findings
}
