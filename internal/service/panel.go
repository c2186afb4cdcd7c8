package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/engine"
)

// Specialists known to the panel
const (
	Internist       = "internist"
	Endocrinologist = "endocrinologist"
	Cardiologist    = "cardiologist"
	Nephrologist    = "nephrologist"
	Hepatologist    = "hepatologist"
	Hematologist    = "hematologist"
)

// Opinion sources
const (
	SourceFallback = "fallback"
)

const (
	defaultConsultTimeout = 30 * time.Second
	fallbackConfidence    = 0.3
)

// categorySpecialists maps abnormal parameter categories onto specialists
var categorySpecialists = map[domain.ParameterType]string{
	domain.GlucoseMetabolism: Endocrinologist,
	domain.ThyroidFunction:   Endocrinologist,
	domain.LipidMetabolism:   Cardiologist,
	domain.KidneyFunction:    Nephrologist,
	domain.LiverFunction:     Hepatologist,
	domain.Hematology:        Hematologist,
}

// patternSpecialists maps detected patterns onto specialists
var patternSpecialists = map[string][]string{
	"metabolic_syndrome":  {Endocrinologist, Cardiologist},
	"diabetes_risk":       {Endocrinologist},
	"cardiovascular_risk": {Cardiologist},
	"kidney_dysfunction":  {Nephrologist},
	"liver_dysfunction":   {Hepatologist},
	"anemia":              {Hematologist},
	"thyroid_dysfunction": {Endocrinologist},
}

// SpecialistPanel consults narrative specialists about a case. Every call is
// bounded by a timeout and retried at most once; a failing or malformed
// answer is replaced by a deterministic low-confidence default opinion.
type SpecialistPanel struct {
	logger     *logrus.Logger
	consultant domain.NarrativeConsultant
	timeout    time.Duration
	retries    int
}

// NewSpecialistPanel creates a panel. retries is capped at one.
func NewSpecialistPanel(logger *logrus.Logger, consultant domain.NarrativeConsultant, timeout time.Duration, retries int) *SpecialistPanel {
	if timeout <= 0 {
		timeout = defaultConsultTimeout
	}
	if retries < 0 {
		retries = 0
	}
	if retries > 1 {
		retries = 1
	}
	return &SpecialistPanel{
		logger:     logger,
		consultant: consultant,
		timeout:    timeout,
		retries:    retries,
	}
}

// SelectSpecialists picks the specialists relevant to a feature set. The
// internist is always consulted.
func SelectSpecialists(features domain.FeatureSet) []string {
	selected := map[string]bool{Internist: true}

	for _, in := range features.Interpretations {
		if !in.IsAbnormal && in.ConcernLevel == domain.ConcernLow {
			continue
		}
		if s, ok := categorySpecialists[in.ParameterType]; ok {
			selected[s] = true
		}
	}
	for _, p := range features.Patterns {
		if !p.Detected {
			continue
		}
		for _, s := range patternSpecialists[p.Name] {
			selected[s] = true
		}
	}

	specialists := make([]string, 0, len(selected))
	for s := range selected {
		specialists = append(specialists, s)
	}
	sort.Strings(specialists)
	return specialists
}

// Consult asks every selected specialist concurrently and records the
// opinions in the case file once all have answered
func (p *SpecialistPanel) Consult(ctx context.Context, pc *domain.PatientContext) map[string]domain.SpecialistOpinion {
	specialists := SelectSpecialists(pc.Features)
	summary := BuildCaseSummary(pc)

	opinions := make([]domain.SpecialistOpinion, len(specialists))
	g, gctx := errgroup.WithContext(ctx)
	for i, specialist := range specialists {
		i, specialist := i, specialist
		g.Go(func() error {
			req := summary
			req.Specialist = specialist
			opinions[i] = p.consultOne(gctx, req, pc.Features)
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[string]domain.SpecialistOpinion, len(opinions))
	for _, op := range opinions {
		pc.SetOpinion(op)
		result[op.Specialist] = op
	}

	p.logger.WithFields(logrus.Fields{
		"case_id":     pc.CaseID,
		"specialists": specialists,
		"fallbacks":   countFallbacks(opinions),
	}).Info("Specialist panel completed")

	return result
}

func (p *SpecialistPanel) consultOne(ctx context.Context, req domain.ConsultationRequest, features domain.FeatureSet) domain.SpecialistOpinion {
	if p.consultant == nil {
		return DefaultOpinion(req.Specialist, features)
	}

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		opinion, err := p.consultant.Consult(callCtx, req)
		cancel()

		if err == nil {
			var validated domain.SpecialistOpinion
			if validated, err = validateOpinion(req.Specialist, opinion); err == nil {
				return validated
			}
		}
		lastErr = err

		p.logger.WithFields(logrus.Fields{
			"case_id":    req.CaseID,
			"specialist": req.Specialist,
			"attempt":    attempt + 1,
		}).WithError(err).Warn("Specialist consultation failed")
	}

	p.logger.WithFields(logrus.Fields{
		"case_id":    req.CaseID,
		"specialist": req.Specialist,
	}).WithError(lastErr).Warn("Using default opinion")

	return DefaultOpinion(req.Specialist, features)
}

func validateOpinion(specialist string, op *domain.SpecialistOpinion) (domain.SpecialistOpinion, error) {
	if op == nil {
		return domain.SpecialistOpinion{}, fmt.Errorf("%w: empty opinion", domain.ErrExternalService)
	}
	if strings.TrimSpace(op.Assessment) == "" {
		return domain.SpecialistOpinion{}, fmt.Errorf("%w: opinion without assessment", domain.ErrExternalService)
	}

	validated := *op
	validated.Specialist = specialist
	validated.RiskLevel = domain.ParseRiskLevel(string(op.RiskLevel))
	if validated.Confidence < 0 {
		validated.Confidence = 0
	}
	if validated.Confidence > 1 {
		validated.Confidence = 1
	}
	if validated.KeyFindings == nil {
		validated.KeyFindings = []string{}
	}
	if validated.Recommendations == nil {
		validated.Recommendations = []string{}
	}
	return validated, nil
}

// DefaultOpinion is the deterministic stand-in for an opinion that could not
// be obtained. It is derived from the feature set alone.
func DefaultOpinion(specialist string, features domain.FeatureSet) domain.SpecialistOpinion {
	risk := domain.RiskLow
	findings := []string{}

	params := make([]string, 0, len(features.Interpretations))
	for name := range features.Interpretations {
		params = append(params, name)
	}
	sort.Strings(params)
	for _, name := range params {
		in := features.Interpretations[name]
		if !relevantTo(specialist, in.ParameterType) {
			continue
		}
		switch in.ConcernLevel {
		case domain.ConcernHigh:
			risk = domain.MaxRisk(risk, domain.RiskHigh)
		case domain.ConcernModerate:
			risk = domain.MaxRisk(risk, domain.RiskModerate)
		}
		if in.IsAbnormal {
			findings = append(findings, fmt.Sprintf("%s outside normal range", name))
		} else if in.ConcernLevel != domain.ConcernLow {
			findings = append(findings, fmt.Sprintf("%s %s", name, in.TrendDirection))
		}
	}

	return domain.SpecialistOpinion{
		Specialist:      specialist,
		Assessment:      fmt.Sprintf("Automated %s review unavailable; opinion derived from laboratory trends only", specialist),
		RiskLevel:       risk,
		KeyFindings:     findings,
		Recommendations: []string{fmt.Sprintf("Monitor laboratory trends with %s at the next visit", specialist)},
		FollowUp:        engine.DefaultFollowUp,
		Confidence:      fallbackConfidence,
		LowConfidence:   true,
		Source:          SourceFallback,
	}
}

func relevantTo(specialist string, pt domain.ParameterType) bool {
	if specialist == Internist {
		return true
	}
	return categorySpecialists[pt] == specialist
}

func countFallbacks(opinions []domain.SpecialistOpinion) int {
	n := 0
	for _, op := range opinions {
		if op.Source == SourceFallback {
			n++
		}
	}
	return n
}
