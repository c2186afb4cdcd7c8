package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// SourceGenerative marks opinions produced by a text-generation service
const SourceGenerative = "generative"

var specialistFocus = map[string]string{
	Internist:       "overall health and how the findings interact",
	Endocrinologist: "glucose metabolism, insulin resistance and thyroid function",
	Cardiologist:    "lipids, blood pressure and cardiovascular risk",
	Nephrologist:    "kidney function and electrolyte balance",
	Hepatologist:    "liver enzymes and synthetic liver function",
	Hematologist:    "blood counts and anemia",
}

// GenerativeConsultant obtains specialist opinions from a text-generation
// service and parses them into structured form
type GenerativeConsultant struct {
	logger    *logrus.Logger
	generator domain.NarrativeGenerator
}

// NewGenerativeConsultant creates a consultant over the given generator
func NewGenerativeConsultant(logger *logrus.Logger, generator domain.NarrativeGenerator) *GenerativeConsultant {
	return &GenerativeConsultant{logger: logger, generator: generator}
}

// generatedOpinion is the JSON shape the generator is asked to produce
type generatedOpinion struct {
	Assessment      string   `json:"assessment"`
	RiskLevel       string   `json:"risk_level"`
	KeyFindings     []string `json:"key_findings"`
	Recommendations []string `json:"recommendations"`
	FollowUp        string   `json:"follow_up"`
	Confidence      *float64 `json:"confidence"`
}

// Consult implements domain.NarrativeConsultant
func (c *GenerativeConsultant) Consult(ctx context.Context, req domain.ConsultationRequest) (*domain.SpecialistOpinion, error) {
	prompt := BuildPrompt(req)

	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: generation failed for %s: %v", domain.ErrExternalService, req.Specialist, err)
	}

	opinion, err := ParseOpinion(text)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"case_id":    req.CaseID,
			"specialist": req.Specialist,
			"length":     len(text),
		}).Debug("Unparseable specialist response")
		return nil, err
	}

	opinion.Specialist = req.Specialist
	opinion.Source = SourceGenerative
	return opinion, nil
}

// BuildPrompt renders the consultation request as an instruction for the
// text-generation service
func BuildPrompt(req domain.ConsultationRequest) string {
	focus, ok := specialistFocus[req.Specialist]
	if !ok {
		focus = "the findings relevant to your specialty"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a consulting %s reviewing laboratory trends. Focus on %s.\n\n", req.Specialist, focus)
	b.WriteString("Case summary:\n")
	b.WriteString(req.Summary)
	if len(req.Patterns) > 0 {
		fmt.Fprintf(&b, "\nDetected patterns: %s\n", strings.Join(req.Patterns, ", "))
	}
	fmt.Fprintf(&b, "Preliminary risk: %s\n\n", req.Risk)
	b.WriteString("Respond with a single JSON object and nothing else, using the keys ")
	b.WriteString(`"assessment" (string), "risk_level" (one of low, moderate, high, critical), `)
	b.WriteString(`"key_findings" (array of strings), "recommendations" (array of strings), `)
	b.WriteString(`"follow_up" (string such as "2-4 weeks" or "3 months"), "confidence" (number between 0 and 1).`)
	return b.String()
}

// ParseOpinion extracts a structured opinion from generated text. Code fences
// and surrounding prose are tolerated; anything without a JSON object with an
// assessment is an external-service error.
func ParseOpinion(text string) (*domain.SpecialistOpinion, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: response is not JSON", domain.ErrExternalService)
	}

	var raw generatedOpinion
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed opinion JSON: %v", domain.ErrExternalService, err)
	}
	if strings.TrimSpace(raw.Assessment) == "" {
		return nil, fmt.Errorf("%w: opinion has no assessment", domain.ErrExternalService)
	}

	confidence := 0.7
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}
	if raw.KeyFindings == nil {
		raw.KeyFindings = []string{}
	}
	if raw.Recommendations == nil {
		raw.Recommendations = []string{}
	}

	return &domain.SpecialistOpinion{
		Assessment:      strings.TrimSpace(raw.Assessment),
		RiskLevel:       domain.ParseRiskLevel(raw.RiskLevel),
		KeyFindings:     raw.KeyFindings,
		Recommendations: raw.Recommendations,
		FollowUp:        strings.TrimSpace(raw.FollowUp),
		Confidence:      confidence,
	}, nil
}
