package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/service"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// AssessPatientParams defines parameters for the assess_patient tool
type AssessPatientParams struct {
	PatientID       string `json:"patient_id" jsonschema:"patient identifier in the document store"`
	From            string `json:"from,omitempty" jsonschema:"only use records from this date, YYYY-MM-DD"`
	To              string `json:"to,omitempty" jsonschema:"only use records up to this date, YYYY-MM-DD"`
	SkipSpecialists bool   `json:"skip_specialists,omitempty" jsonschema:"skip the specialist panel"`
}

// CaseParams identifies one assessment
type CaseParams struct {
	CaseID string `json:"case_id" jsonschema:"case id returned by assess_patient"`
}

// HistoryParams defines parameters for the assessment_history tool
type HistoryParams struct {
	PatientID string `json:"patient_id" jsonschema:"patient identifier"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of assessments, default 20"`
}

// AnalyzeLabsParams carries lab records grouped by lab type
type AnalyzeLabsParams struct {
	PatientID  string                        `json:"patient_id,omitempty" jsonschema:"optional patient identifier"`
	LabResults map[string][]domain.RawRecord `json:"lab_results" jsonschema:"lab records keyed by lab type"`
}

// AssessmentSummary is the tool view of a case file: the findings an
// assistant reasons about, without raw records or time series
type AssessmentSummary struct {
	CaseID           string                                   `json:"case_id"`
	PatientID        string                                   `json:"patient_id"`
	Observations     int                                      `json:"observations"`
	Interpretations  map[string]domain.ClinicalInterpretation `json:"interpretations"`
	Correlations     []domain.CorrelationResult               `json:"correlations"`
	Patterns         []domain.ClinicalPattern                 `json:"patterns"`
	InsufficientData []string                                 `json:"insufficient_data"`
	Opinions         map[string]domain.SpecialistOpinion      `json:"opinions,omitempty"`
	Synthesis        *domain.Synthesis                        `json:"synthesis,omitempty"`
}

func newAssessmentSummary(pc *domain.PatientContext) AssessmentSummary {
	summary := AssessmentSummary{
		CaseID:           pc.CaseID,
		PatientID:        pc.PatientID,
		Observations:     pc.ObservationCount(),
		Interpretations:  pc.Features.Interpretations,
		Correlations:     pc.Features.Correlations,
		InsufficientData: pc.Features.InsufficientData,
		Opinions:         pc.Opinions,
		Synthesis:        pc.Synthesis,
	}
	for _, p := range pc.Features.Patterns {
		if p.Detected {
			summary.Patterns = append(summary.Patterns, p)
		}
	}
	return summary
}

// handleAssessPatient handles the assess_patient tool invocation
func (s *Server) handleAssessPatient(ctx context.Context, req *mcp.CallToolRequest, params AssessPatientParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "assess_patient").Info("Tool invoked")

	if params.PatientID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("patient_id is required")), nil, nil
	}
	tr, err := domain.ParseDateRange(params.From, params.To)
	if err != nil {
		return s.errorResult(err), nil, nil
	}

	pc, err := s.assessor.Assess(ctx, service.AssessmentRequest{
		PatientID:       params.PatientID,
		TimeRange:       tr,
		SkipSpecialists: params.SkipSpecialists,
	})
	if err != nil {
		return s.errorResult(err), nil, nil
	}
	return s.jsonResult(fmt.Sprintf("Assessment %s completed for patient %s", pc.CaseID, pc.PatientID), newAssessmentSummary(pc))
}

// handleGetAssessment handles the get_assessment tool invocation
func (s *Server) handleGetAssessment(ctx context.Context, req *mcp.CallToolRequest, params CaseParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "get_assessment").Info("Tool invoked")

	pc, err := s.assessor.Get(ctx, params.CaseID)
	if err != nil {
		return s.errorResult(err), nil, nil
	}
	return s.jsonResult(fmt.Sprintf("Assessment %s for patient %s", pc.CaseID, pc.PatientID), newAssessmentSummary(pc))
}

// handleGetRecommendations handles the get_recommendations tool invocation
func (s *Server) handleGetRecommendations(ctx context.Context, req *mcp.CallToolRequest, params CaseParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "get_recommendations").Info("Tool invoked")

	pc, err := s.assessor.Get(ctx, params.CaseID)
	if err != nil {
		return s.errorResult(err), nil, nil
	}
	if pc.Synthesis == nil {
		return s.createErrorResult("Not found", fmt.Errorf("case %s has no recommendations", pc.CaseID)), nil, nil
	}
	headline := fmt.Sprintf("Overall risk %s, urgency %s, follow up in %s",
		pc.Synthesis.OverallRisk, pc.Synthesis.Urgency, pc.Synthesis.FollowUpTimeline)
	return s.jsonResult(headline, pc.Synthesis)
}

// handleAssessmentHistory handles the assessment_history tool invocation
func (s *Server) handleAssessmentHistory(ctx context.Context, req *mcp.CallToolRequest, params HistoryParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "assessment_history").Info("Tool invoked")

	limit := params.Limit
	switch {
	case limit < 0:
		return s.createErrorResult("Invalid parameters", fmt.Errorf("limit must not be negative")), nil, nil
	case limit == 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	cases, err := s.assessor.History(ctx, params.PatientID, limit)
	if err != nil {
		return s.errorResult(err), nil, nil
	}
	return s.jsonResult(fmt.Sprintf("%d archived assessments for patient %s", len(cases), params.PatientID), cases)
}

// handleAnalyzeLabs handles the analyze_labs tool invocation
func (s *Server) handleAnalyzeLabs(ctx context.Context, req *mcp.CallToolRequest, params AnalyzeLabsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "analyze_labs").Info("Tool invoked")

	pc, err := s.assessor.Analyze(ctx, params.PatientID, params.LabResults)
	if err != nil {
		return s.errorResult(err), nil, nil
	}
	return s.jsonResult(fmt.Sprintf("Analyzed %d observations", pc.ObservationCount()), newAssessmentSummary(pc))
}

// jsonResult renders a headline followed by the indented JSON payload
func (s *Server) jsonResult(headline string, payload interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: headline},
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// errorResult maps service errors onto tool errors
func (s *Server) errorResult(err error) *mcp.CallToolResult {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return s.createErrorResult("Invalid parameters", err)
	case errors.Is(err, domain.ErrNotFound):
		return s.createErrorResult("Not found", err)
	default:
		s.logger.WithError(err).Error("Tool execution failed")
		return s.createErrorResult("Assessment failed", err)
	}
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
