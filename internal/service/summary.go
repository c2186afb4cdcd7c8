package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/engine"
)

// BuildCaseSummary condenses a case file into what a specialist is shown.
// The specialist field is left for the caller to fill in.
func BuildCaseSummary(pc *domain.PatientContext) domain.ConsultationRequest {
	features := pc.Features
	preliminary := engine.NewSynthesizer().Synthesize(features, nil)

	var b strings.Builder
	fmt.Fprintf(&b, "Patient %s, %d laboratory records", pc.PatientID, pc.ObservationCount())
	if age, ok := pc.RawData.Profile["age"]; ok {
		fmt.Fprintf(&b, ", age %v", age)
	}
	if sex, ok := pc.RawData.Profile["gender"]; ok {
		fmt.Fprintf(&b, ", %v", sex)
	}
	b.WriteString(".\n")

	params := make([]string, 0, len(features.Interpretations))
	for name := range features.Interpretations {
		params = append(params, name)
	}
	sort.Strings(params)

	findings := []string{}
	for _, name := range params {
		in := features.Interpretations[name]
		stats := features.Statistics[name]
		line := fmt.Sprintf("%s: latest %.2f, mean %.2f, %s trend (slope %.2f/sample, p~%.2f), concern %s",
			name, in.CurrentValue, stats.Mean, in.TrendDirection, stats.Slope, stats.PValue, in.ConcernLevel)
		if in.TimeToConcern != nil {
			line += fmt.Sprintf(", projected to reach %g in %.1f months", in.TimeToConcern.TargetValue, in.TimeToConcern.Months)
		}
		fmt.Fprintln(&b, "- "+line)
		if in.IsAbnormal || in.ConcernLevel != domain.ConcernLow {
			findings = append(findings, line)
		}
	}

	for _, c := range features.Correlations {
		if c.ClinicalSignificance == domain.SignificanceLow {
			continue
		}
		fmt.Fprintf(&b, "- correlation: %s\n", c.Interpretation)
	}

	patterns := []string{}
	for _, p := range features.Patterns {
		if !p.Detected {
			continue
		}
		patterns = append(patterns, p.Name)
		trend := ""
		if p.Progression != nil {
			trend = ", " + string(p.Progression.Trend)
		}
		fmt.Fprintf(&b, "- pattern %s: %d/%d criteria met, risk %.2f%s\n",
			p.Name, p.CriteriaMet, p.TotalCriteria, p.RiskScore, trend)
	}

	if len(features.InsufficientData) > 0 {
		fmt.Fprintf(&b, "Insufficient data for: %s\n", strings.Join(features.InsufficientData, ", "))
	}
	if len(pc.RawData.MedicalRecords) > 0 {
		fmt.Fprintf(&b, "%d narrative medical records on file.\n", len(pc.RawData.MedicalRecords))
	}

	return domain.ConsultationRequest{
		CaseID:    pc.CaseID,
		PatientID: pc.PatientID,
		Summary:   b.String(),
		Findings:  findings,
		Patterns:  patterns,
		Risk:      preliminary.OverallRisk,
	}
}
