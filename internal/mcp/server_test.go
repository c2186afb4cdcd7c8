package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/service"
)

// MockAssessor is a mock implementation of Assessor
type MockAssessor struct {
	mock.Mock
}

func (m *MockAssessor) Assess(ctx context.Context, req service.AssessmentRequest) (*domain.PatientContext, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PatientContext), args.Error(1)
}

func (m *MockAssessor) Get(ctx context.Context, caseID string) (*domain.PatientContext, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PatientContext), args.Error(1)
}

func (m *MockAssessor) History(ctx context.Context, patientID string, limit int) ([]domain.ArchivedCase, error) {
	args := m.Called(ctx, patientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ArchivedCase), args.Error(1)
}

func (m *MockAssessor) Analyze(ctx context.Context, patientID string, labResults map[string][]domain.RawRecord) (*domain.PatientContext, error) {
	args := m.Called(ctx, patientID, labResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PatientContext), args.Error(1)
}

func newTestServer(assessor Assessor) *Server {
	logger, _ := test.NewNullLogger()
	return NewServer(logger, assessor)
}

func assessedCase(patientID string) *domain.PatientContext {
	pc := domain.NewPatientContext(patientID)
	pc.RawData.LabResults["Metabolic Panel"] = []domain.RawRecord{{"glucose": 128.0}, {"glucose": 135.0}}
	pc.Features.Patterns = []domain.ClinicalPattern{
		{Name: "metabolic_syndrome", Detected: true, Confidence: 0.8},
		{Name: "cardiovascular_risk", Detected: false},
	}
	pc.Synthesis = &domain.Synthesis{
		Recommendations:  []string{"Consider targeted evaluation of glucose outside its normal range"},
		OverallRisk:      domain.RiskHigh,
		Urgency:          domain.UrgencyUrgent,
		FollowUpTimeline: "1-3 months",
	}
	return pc
}

func resultText(t *testing.T, result *mcp.CallToolResult, i int) string {
	t.Helper()
	require.Greater(t, len(result.Content), i)
	text, ok := result.Content[i].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	server := newTestServer(new(MockAssessor))

	assert.NotNil(t, server.mcpServer)
	assert.Equal(t, []string{
		"assess_patient",
		"get_assessment",
		"get_recommendations",
		"assessment_history",
		"analyze_labs",
	}, server.ToolNames())
}

func TestAssessPatient(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		assessor := new(MockAssessor)
		pc := assessedCase("p-1")
		assessor.On("Assess", ctx, service.AssessmentRequest{
			PatientID: "p-1",
			TimeRange: domain.TimeRange{
				From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2024, 6, 30, 23, 59, 59, 999999999, time.UTC),
			},
			SkipSpecialists: true,
		}).Return(pc, nil)

		server := newTestServer(assessor)
		result, _, err := server.handleAssessPatient(ctx, nil, AssessPatientParams{
			PatientID:       "p-1",
			From:            "2024-01-01",
			To:              "2024-06-30",
			SkipSpecialists: true,
		})

		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(t, result, 0), pc.CaseID)

		var summary AssessmentSummary
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result, 1)), &summary))
		assert.Equal(t, "p-1", summary.PatientID)
		assert.Equal(t, 2, summary.Observations)
		require.Len(t, summary.Patterns, 1)
		assert.Equal(t, "metabolic_syndrome", summary.Patterns[0].Name)
		assert.Equal(t, domain.RiskHigh, summary.Synthesis.OverallRisk)
		assessor.AssertExpectations(t)
	})

	tests := []struct {
		name     string
		params   AssessPatientParams
		expected string
	}{
		{"Missing patient", AssessPatientParams{}, "patient_id is required"},
		{"Bad date", AssessPatientParams{PatientID: "p-1", From: "last week"}, "Invalid parameters"},
		{"Reversed range", AssessPatientParams{PatientID: "p-1", From: "2024-06-01", To: "2024-01-01"}, "Invalid parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessor := new(MockAssessor)
			server := newTestServer(assessor)

			result, _, err := server.handleAssessPatient(ctx, nil, tt.params)

			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result, 0), tt.expected)
			assessor.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything)
		})
	}

	t.Run("Service failure", func(t *testing.T) {
		assessor := new(MockAssessor)
		assessor.On("Assess", ctx, mock.Anything).Return(nil, context.Canceled)
		server := newTestServer(assessor)

		result, _, err := server.handleAssessPatient(ctx, nil, AssessPatientParams{PatientID: "p-1"})

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result, 0), "Assessment failed")
	})
}

func TestGetAssessment(t *testing.T) {
	ctx := context.Background()
	pc := assessedCase("p-2")

	assessor := new(MockAssessor)
	assessor.On("Get", ctx, pc.CaseID).Return(pc, nil)
	assessor.On("Get", ctx, "missing").Return(nil, fmt.Errorf("case missing: %w", domain.ErrNotFound))
	server := newTestServer(assessor)

	result, _, err := server.handleGetAssessment(ctx, nil, CaseParams{CaseID: pc.CaseID})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result, 1), `"case_id": "`+pc.CaseID+`"`)

	result, _, err = server.handleGetAssessment(ctx, nil, CaseParams{CaseID: "missing"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result, 0), "Not found")
}

func TestGetRecommendations(t *testing.T) {
	ctx := context.Background()
	pc := assessedCase("p-3")
	pending := domain.NewPatientContext("p-3")

	assessor := new(MockAssessor)
	assessor.On("Get", ctx, pc.CaseID).Return(pc, nil)
	assessor.On("Get", ctx, pending.CaseID).Return(pending, nil)
	server := newTestServer(assessor)

	result, _, err := server.handleGetRecommendations(ctx, nil, CaseParams{CaseID: pc.CaseID})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Overall risk high, urgency urgent, follow up in 1-3 months", resultText(t, result, 0))

	var synthesis domain.Synthesis
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result, 1)), &synthesis))
	assert.Equal(t, pc.Synthesis.Recommendations, synthesis.Recommendations)

	result, _, err = server.handleGetRecommendations(ctx, nil, CaseParams{CaseID: pending.CaseID})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAssessmentHistory(t *testing.T) {
	ctx := context.Background()
	cases := []domain.ArchivedCase{{CaseID: "c-1", PatientID: "p-4", OverallRisk: domain.RiskLow}}

	tests := []struct {
		name          string
		limit         int
		expectedLimit int
	}{
		{"Default limit", 0, defaultHistoryLimit},
		{"Explicit limit", 5, 5},
		{"Capped limit", 1000, maxHistoryLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessor := new(MockAssessor)
			assessor.On("History", ctx, "p-4", tt.expectedLimit).Return(cases, nil)
			server := newTestServer(assessor)

			result, _, err := server.handleAssessmentHistory(ctx, nil, HistoryParams{PatientID: "p-4", Limit: tt.limit})

			require.NoError(t, err)
			assert.False(t, result.IsError)
			assert.Equal(t, "1 archived assessments for patient p-4", resultText(t, result, 0))
			assessor.AssertExpectations(t)
		})
	}

	t.Run("Negative limit", func(t *testing.T) {
		server := newTestServer(new(MockAssessor))
		result, _, err := server.handleAssessmentHistory(ctx, nil, HistoryParams{PatientID: "p-4", Limit: -1})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("Validation error", func(t *testing.T) {
		assessor := new(MockAssessor)
		assessor.On("History", ctx, "", defaultHistoryLimit).
			Return(nil, domain.NewValidationError("patient_id", "patient id is required", ""))
		server := newTestServer(assessor)

		result, _, err := server.handleAssessmentHistory(ctx, nil, HistoryParams{})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result, 0), "Invalid parameters")
	})
}

func TestAnalyzeLabs(t *testing.T) {
	ctx := context.Background()
	labs := map[string][]domain.RawRecord{"Metabolic Panel": {{"glucose": 128.0}}}

	assessor := new(MockAssessor)
	assessor.On("Analyze", ctx, "p-5", labs).Return(assessedCase("p-5"), nil)
	assessor.On("Analyze", ctx, "", map[string][]domain.RawRecord(nil)).
		Return(nil, domain.NewValidationError("lab_results", "at least one lab result is required", nil))
	server := newTestServer(assessor)

	result, _, err := server.handleAnalyzeLabs(ctx, nil, AnalyzeLabsParams{PatientID: "p-5", LabResults: labs})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Analyzed 2 observations", resultText(t, result, 0))

	result, _, err = server.handleAnalyzeLabs(ctx, nil, AnalyzeLabsParams{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestErrorResult(t *testing.T) {
	server := newTestServer(new(MockAssessor))

	result := server.errorResult(errors.New("boom"))
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: Assessment failed - boom", resultText(t, result, 0))
}
