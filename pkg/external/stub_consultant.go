package external

import (
	"context"
	"fmt"
	"strings"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// SourceStub marks opinions produced by StubConsultant
const SourceStub = "stub"

var stubFollowUp = map[domain.RiskLevel]string{
	domain.RiskCritical: "1-2 weeks",
	domain.RiskHigh:     "1 month",
	domain.RiskModerate: "3 months",
	domain.RiskLow:      "6 months",
}

// StubConsultant returns canned opinions derived from the consultation
// request. The same request always yields the same opinion.
type StubConsultant struct{}

// NewStubConsultant creates a stub consultant
func NewStubConsultant() *StubConsultant {
	return &StubConsultant{}
}

// Consult implements domain.NarrativeConsultant
func (s *StubConsultant) Consult(ctx context.Context, req domain.ConsultationRequest) (*domain.SpecialistOpinion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	risk := domain.ParseRiskLevel(string(req.Risk))

	findings := make([]string, 0, 3)
	for _, f := range req.Findings {
		if len(findings) == 3 {
			break
		}
		findings = append(findings, f)
	}

	recommendations := make([]string, 0, len(req.Patterns)+1)
	for _, p := range req.Patterns {
		recommendations = append(recommendations, fmt.Sprintf("Evaluate for %s", strings.ReplaceAll(p, "_", " ")))
	}
	recommendations = append(recommendations, fmt.Sprintf("Repeat laboratory panel before %s review", req.Specialist))

	assessment := fmt.Sprintf("%s review of %d findings", titleCase(req.Specialist), len(req.Findings))
	if len(req.Patterns) > 0 {
		assessment += fmt.Sprintf(" with %s", strings.Join(req.Patterns, ", "))
	}

	return &domain.SpecialistOpinion{
		Specialist:      req.Specialist,
		Assessment:      assessment,
		RiskLevel:       risk,
		KeyFindings:     findings,
		Recommendations: recommendations,
		FollowUp:        stubFollowUp[risk],
		Confidence:      0.6,
		Source:          SourceStub,
	}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
