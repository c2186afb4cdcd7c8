package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/middleware"
	"github.com/Project-DevX/healthmate-sub000/internal/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Assessor is the orchestration surface served over HTTP
type Assessor interface {
	Assess(ctx context.Context, req service.AssessmentRequest) (*domain.PatientContext, error)
	Get(ctx context.Context, caseID string) (*domain.PatientContext, error)
	History(ctx context.Context, patientID string, limit int) ([]domain.ArchivedCase, error)
	Analyze(ctx context.Context, patientID string, labResults map[string][]domain.RawRecord) (*domain.PatientContext, error)
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	assessor      Assessor
	limiter       *middleware.RateLimiter
	healthChecks  map[string]HealthCheck
	router        *gin.Engine
	server        *http.Server
}

// Option configures optional server behaviour
type Option func(*Server)

// WithHealthCheck adds a named dependency probe to /health
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.healthChecks[name] = check }
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, assessor Assessor, opts ...Option) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	limiter := middleware.NewRateLimiter(logger, cfg.Server.RateLimit, cfg.Server.RateBurst)

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())

	server := &Server{
		configManager: configManager,
		logger:        logger,
		assessor:      assessor,
		limiter:       limiter,
		healthChecks:  make(map[string]HealthCheck),
		router:        router,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go s.limiter.Run(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.limiter.Middleware())
	v1.Use(middleware.RequestTimeout(s.configManager.GetServerConfig().WriteTimeout))
	{
		v1.POST("/patients/:patientId/assessments", s.handleCreateAssessment)
		v1.GET("/patients/:patientId/assessments", s.handleAssessmentHistory)
		v1.GET("/assessments/:caseId", s.handleGetAssessment)
		v1.GET("/assessments/:caseId/recommendations", s.handleGetRecommendations)
		v1.POST("/analyze", s.handleAnalyze)
	}
}

// handleHealth reports the server and dependency status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.healthChecks))
	for name := range s.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.healthChecks[name](ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    Version,
		"components": components,
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
