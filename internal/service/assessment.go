package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/engine"
)

// EventAssessmentCompleted is the event type published after every assessment
const EventAssessmentCompleted = "assessment.completed"

// AssessmentStore holds active assessments by case id
type AssessmentStore interface {
	Put(pc *domain.PatientContext)
	Get(caseID string) (*domain.PatientContext, bool)
}

// AssessmentRequest asks for a full assessment of one patient
type AssessmentRequest struct {
	PatientID       string           `json:"patient_id"`
	TimeRange       domain.TimeRange `json:"time_range"`
	SkipSpecialists bool             `json:"skip_specialists"`
}

// AssessmentService orchestrates an assessment: it reads the patient's
// records, runs the feature engine, consults specialists, synthesizes the
// result and keeps the case file available for later retrieval
type AssessmentService struct {
	logger      *logrus.Logger
	records     domain.RecordSource
	engine      *engine.FeatureEngine
	panel       *SpecialistPanel
	synthesizer *engine.Synthesizer
	store       AssessmentStore
	archive     domain.SnapshotArchive
	events      domain.EventPublisher
}

// Option configures optional collaborators of the service
type Option func(*AssessmentService)

// WithArchive keeps finished case files in a snapshot archive
func WithArchive(archive domain.SnapshotArchive) Option {
	return func(s *AssessmentService) { s.archive = archive }
}

// WithEventPublisher announces finished assessments
func WithEventPublisher(events domain.EventPublisher) Option {
	return func(s *AssessmentService) { s.events = events }
}

// NewAssessmentService creates a new assessment service
func NewAssessmentService(
	logger *logrus.Logger,
	records domain.RecordSource,
	featureEngine *engine.FeatureEngine,
	panel *SpecialistPanel,
	store AssessmentStore,
	opts ...Option,
) *AssessmentService {
	s := &AssessmentService{
		logger:      logger,
		records:     records,
		engine:      featureEngine,
		panel:       panel,
		synthesizer: engine.NewSynthesizer(),
		store:       store,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess runs a complete assessment. Data problems and collaborator failures
// degrade the result instead of failing it; only invalid input or a
// cancelled context return an error, the latter together with the partial
// case file.
func (s *AssessmentService) Assess(ctx context.Context, req AssessmentRequest) (*domain.PatientContext, error) {
	startTime := time.Now()

	patientID := strings.TrimSpace(req.PatientID)
	if patientID == "" {
		return nil, domain.NewValidationError("patient_id", "patient id is required", req.PatientID)
	}
	if !req.TimeRange.From.IsZero() && !req.TimeRange.To.IsZero() && req.TimeRange.To.Before(req.TimeRange.From) {
		return nil, domain.NewValidationError("time_range", "time range ends before it starts", req.TimeRange)
	}

	pc := domain.NewPatientContext(patientID)
	pc.TimeRange = req.TimeRange

	s.logger.WithFields(logrus.Fields{
		"case_id":    pc.CaseID,
		"patient_id": patientID,
	}).Info("Starting assessment")

	// Step 1: read every data category in parallel, merge once all are done
	s.fetch(ctx, pc)

	// Step 2: feature engineering
	if err := s.engine.Run(ctx, pc); err != nil {
		return pc, fmt.Errorf("assessment %s interrupted: %w", pc.CaseID, err)
	}

	// Step 3: specialist opinions
	if !req.SkipSpecialists && s.panel != nil {
		s.panel.Consult(ctx, pc)
	}

	// Step 4: synthesis
	synthesis := s.synthesizer.Synthesize(pc.Features, pc.Opinions)
	pc.Synthesis = &synthesis
	pc.Upsert(domain.CategoryPipeline, "synthesis", "completed")

	s.store.Put(pc)
	s.persist(ctx, pc)

	s.logger.WithFields(logrus.Fields{
		"case_id":         pc.CaseID,
		"patient_id":      patientID,
		"overall_risk":    synthesis.OverallRisk,
		"urgency":         synthesis.Urgency,
		"recommendations": len(synthesis.Recommendations),
		"processing_time": time.Since(startTime),
	}).Info("Assessment completed")

	return pc, nil
}

// fetch reads lab results, narrative records and the profile concurrently.
// Each read owns its own slot; failures are logged and leave the slot empty.
func (s *AssessmentService) fetch(ctx context.Context, pc *domain.PatientContext) {
	var (
		labResults map[string][]domain.RawRecord
		narrative  []domain.RawRecord
		profile    domain.RawRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.records.FetchObservations(gctx, pc.PatientID, pc.TimeRange)
		s.recordFetch(pc, domain.CategoryLabResults, err)
		labResults = res
		return nil
	})
	g.Go(func() error {
		res, err := s.records.FetchNarrativeRecords(gctx, pc.PatientID, pc.TimeRange)
		s.recordFetch(pc, domain.CategoryMedicalRecords, err)
		narrative = res
		return nil
	})
	g.Go(func() error {
		res, err := s.records.FetchPatientProfile(gctx, pc.PatientID)
		s.recordFetch(pc, domain.CategoryProfile, err)
		profile = res
		return nil
	})
	_ = g.Wait()

	if labResults != nil {
		pc.RawData.LabResults = labResults
	}
	if narrative != nil {
		pc.RawData.MedicalRecords = narrative
	}
	pc.RawData.Profile = profile
}

func (s *AssessmentService) recordFetch(pc *domain.PatientContext, category string, err error) {
	if err == nil {
		pc.Upsert(domain.CategoryPipeline, "fetch_"+category, "ok")
		return
	}
	pc.Upsert(domain.CategoryPipeline, "fetch_"+category, "failed")
	s.logger.WithFields(logrus.Fields{
		"case_id":  pc.CaseID,
		"category": category,
	}).WithError(err).Warn("Record fetch failed, continuing without it")
}

// persist archives the case file and publishes the completion event.
// Neither failure affects the assessment.
func (s *AssessmentService) persist(ctx context.Context, pc *domain.PatientContext) {
	if s.archive != nil {
		if err := s.archive.Save(ctx, pc); err != nil {
			s.logger.WithField("case_id", pc.CaseID).WithError(err).Warn("Failed to archive case file")
		}
	}

	if s.events != nil {
		event := domain.AssessmentEvent{
			Type:       EventAssessmentCompleted,
			CaseID:     pc.CaseID,
			PatientID:  pc.PatientID,
			Detected:   []string{},
			OccurredAt: time.Now().UTC(),
		}
		if pc.Synthesis != nil {
			event.OverallRisk = pc.Synthesis.OverallRisk
			event.Urgency = pc.Synthesis.Urgency
		}
		for _, p := range pc.Features.Patterns {
			if p.Detected {
				event.Detected = append(event.Detected, p.Name)
			}
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.WithField("case_id", pc.CaseID).WithError(err).Warn("Failed to publish assessment event")
		}
	}
}

// Get returns an assessment by case id, from the active store first and the
// archive second
func (s *AssessmentService) Get(ctx context.Context, caseID string) (*domain.PatientContext, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, domain.NewValidationError("case_id", "case id is required", caseID)
	}

	if pc, ok := s.store.Get(caseID); ok {
		return pc, nil
	}
	if s.archive == nil {
		return nil, fmt.Errorf("case %s: %w", caseID, domain.ErrNotFound)
	}

	pc, err := s.archive.Load(ctx, caseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("case %s: %w", caseID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}
	s.store.Put(pc)
	return pc, nil
}

// History lists archived assessments of a patient, newest first
func (s *AssessmentService) History(ctx context.Context, patientID string, limit int) ([]domain.ArchivedCase, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, domain.NewValidationError("patient_id", "patient id is required", patientID)
	}
	if s.archive == nil {
		return []domain.ArchivedCase{}, nil
	}
	return s.archive.ListByPatient(ctx, patientID, limit)
}

// Analyze runs the engine and synthesis over caller-supplied records without
// consulting specialists or storing anything
func (s *AssessmentService) Analyze(ctx context.Context, patientID string, labResults map[string][]domain.RawRecord) (*domain.PatientContext, error) {
	if len(labResults) == 0 {
		return nil, domain.NewValidationError("lab_results", "at least one lab result is required", nil)
	}
	if patientID == "" {
		patientID = "anonymous"
	}

	pc := domain.NewPatientContext(patientID)
	pc.RawData.LabResults = labResults

	if err := s.engine.Run(ctx, pc); err != nil {
		return pc, fmt.Errorf("analysis interrupted: %w", err)
	}

	synthesis := s.synthesizer.Synthesize(pc.Features, nil)
	pc.Synthesis = &synthesis
	return pc, nil
}
