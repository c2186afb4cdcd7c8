// Package mcp exposes the assessment service as Model Context Protocol tools
// so that assistants can request lab-trend assessments over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/service"
)

const (
	serverName    = "ccas"
	serverVersion = "v0.1.0"
)

// Assessor is the part of the assessment service the tools call
type Assessor interface {
	Assess(ctx context.Context, req service.AssessmentRequest) (*domain.PatientContext, error)
	Get(ctx context.Context, caseID string) (*domain.PatientContext, error)
	History(ctx context.Context, patientID string, limit int) ([]domain.ArchivedCase, error)
	Analyze(ctx context.Context, patientID string, labResults map[string][]domain.RawRecord) (*domain.PatientContext, error)
}

// Server represents the CCAS MCP server
type Server struct {
	assessor  Assessor
	mcpServer *mcp.Server
	logger    *logrus.Logger
	tools     []string
}

// NewServer creates a new MCP server with every assessment tool registered
func NewServer(logger *logrus.Logger, assessor Assessor) *Server {
	serverInfo := &mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}

	server := &Server{
		assessor:  assessor,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}
	server.registerTools()
	return server
}

// registerTools registers the assessment tools with the MCP SDK
func (s *Server) registerTools() {
	s.logger.Info("Registering MCP tools...")

	addTool(s, "assess_patient",
		"Run a lab-trend assessment for one patient: trend statistics, correlations, clinical patterns, specialist opinions and a risk synthesis",
		s.handleAssessPatient)
	addTool(s, "get_assessment",
		"Return an earlier assessment by case id",
		s.handleGetAssessment)
	addTool(s, "get_recommendations",
		"Return the recommendations and overall risk of an earlier assessment",
		s.handleGetRecommendations)
	addTool(s, "assessment_history",
		"List archived assessments of a patient, newest first",
		s.handleAssessmentHistory)
	addTool(s, "analyze_labs",
		"Analyze caller-supplied lab records grouped by lab type without consulting specialists or storing the result",
		s.handleAnalyzeLabs)

	s.logger.WithField("tool_count", len(s.tools)).Info("Successfully registered all tools")
}

func addTool[In any](s *Server, name, description string, handler mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: name, Description: description}, handler)
	s.tools = append(s.tools, name)
	s.logger.WithField("tool_name", name).Debug("Registered MCP tool")
}

// ToolNames lists the registered tools in registration order
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.tools...)
}

// Run serves MCP over stdin/stdout until the client disconnects or ctx ends
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves MCP over the given transport
func (s *Server) RunTransport(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting CCAS MCP server...")
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
