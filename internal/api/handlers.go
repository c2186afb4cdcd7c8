package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/middleware"
	"github.com/Project-DevX/healthmate-sub000/internal/service"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// CreateAssessmentRequest is the optional body of an assessment request
type CreateAssessmentRequest struct {
	From            *time.Time `json:"from,omitempty"`
	To              *time.Time `json:"to,omitempty"`
	SkipSpecialists bool       `json:"skip_specialists"`
}

// AnalyzeRequest carries caller-supplied lab records grouped by lab type
type AnalyzeRequest struct {
	PatientID  string                        `json:"patient_id"`
	LabResults map[string][]domain.RawRecord `json:"lab_results" binding:"required"`
}

// AssessmentResponse is the public view of a case file. Raw records stay
// server side.
type AssessmentResponse struct {
	CaseID      string                              `json:"case_id"`
	PatientID   string                              `json:"patient_id"`
	CreatedAt   time.Time                           `json:"created_at"`
	Features    domain.FeatureSet                   `json:"engineered_features"`
	Opinions    map[string]domain.SpecialistOpinion `json:"opinions"`
	Synthesis   *domain.Synthesis                   `json:"synthesis,omitempty"`
	Annotations map[string]map[string]any           `json:"annotations"`
}

// RecommendationsResponse is the synthesis of one case
type RecommendationsResponse struct {
	CaseID string `json:"case_id"`
	domain.Synthesis
}

func newAssessmentResponse(pc *domain.PatientContext) AssessmentResponse {
	return AssessmentResponse{
		CaseID:      pc.CaseID,
		PatientID:   pc.PatientID,
		CreatedAt:   pc.CreatedAt,
		Features:    pc.Features,
		Opinions:    pc.Opinions,
		Synthesis:   pc.Synthesis,
		Annotations: pc.Annotations,
	}
}

func (s *Server) handleCreateAssessment(c *gin.Context) {
	var body CreateAssessmentRequest
	if c.Request.ContentLength != 0 && !s.bindBody(c, &body) {
		return
	}

	req := service.AssessmentRequest{
		PatientID:       c.Param("patientId"),
		SkipSpecialists: body.SkipSpecialists,
	}
	if body.From != nil {
		req.TimeRange.From = *body.From
	}
	if body.To != nil {
		req.TimeRange.To = *body.To
	}

	pc, err := s.assessor.Assess(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAssessmentResponse(pc))
}

func (s *Server) handleAssessmentHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(c, domain.NewValidationError("limit", "limit must be a positive integer", raw))
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	cases, err := s.assessor.History(c.Request.Context(), c.Param("patientId"), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"patient_id":  c.Param("patientId"),
		"assessments": cases,
	})
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	pc, err := s.assessor.Get(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAssessmentResponse(pc))
}

func (s *Server) handleGetRecommendations(c *gin.Context) {
	pc, err := s.assessor.Get(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if pc.Synthesis == nil {
		s.respondError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, RecommendationsResponse{CaseID: pc.CaseID, Synthesis: *pc.Synthesis})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var body AnalyzeRequest
	if !s.bindBody(c, &body) {
		return
	}

	pc, err := s.assessor.Analyze(c.Request.Context(), body.PatientID, body.LabResults)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAssessmentResponse(pc))
}

// bindBody decodes the JSON body. A body that fails its binding rules is a
// validation error; one that cannot be decoded at all is invalid input.
func (s *Server) bindBody(c *gin.Context, body interface{}) bool {
	err := c.ShouldBindJSON(body)
	if err == nil {
		return true
	}

	var rules validator.ValidationErrors
	if errors.As(err, &rules) {
		s.respondError(c, domain.NewValidationError("body", err.Error(), nil))
		return false
	}
	requestID := c.GetString(middleware.CorrelationIDKey)
	c.AbortWithStatusJSON(http.StatusBadRequest,
		domain.NewAPIError(domain.ErrCodeInvalidInput, "Request body is not valid JSON", err.Error(), requestID))
	return false
}

// respondError maps service errors onto API errors
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var verr *domain.ValidationError
	var status int
	var apiErr *domain.APIError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.ErrCodeValidation, verr.Message, verr.Field, requestID)
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		apiErr = domain.NewAPIError(domain.ErrCodeNotFound, "Assessment not found", "", requestID)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
		apiErr = domain.NewAPIError(domain.ErrCodeAssessment, "Assessment did not complete in time", "", requestID)
	default:
		status = http.StatusInternalServerError
		apiErr = domain.NewAPIError(domain.ErrCodeInternalServer, "Internal server error", "", requestID)
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": requestID,
			"route":          c.FullPath(),
		}).WithError(err).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, apiErr)
}
