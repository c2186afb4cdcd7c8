package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// MockRecordSource is a mock implementation of domain.RecordSource
type MockRecordSource struct {
	mock.Mock
}

func (m *MockRecordSource) FetchObservations(ctx context.Context, patientID string, tr domain.TimeRange) (map[string][]domain.RawRecord, error) {
	args := m.Called(ctx, patientID, tr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]domain.RawRecord), args.Error(1)
}

func (m *MockRecordSource) FetchNarrativeRecords(ctx context.Context, patientID string, tr domain.TimeRange) ([]domain.RawRecord, error) {
	args := m.Called(ctx, patientID, tr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawRecord), args.Error(1)
}

func (m *MockRecordSource) FetchPatientProfile(ctx context.Context, patientID string) (domain.RawRecord, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.RawRecord), args.Error(1)
}

// MockConsultant is a mock implementation of domain.NarrativeConsultant
type MockConsultant struct {
	mock.Mock
}

func (m *MockConsultant) Consult(ctx context.Context, req domain.ConsultationRequest) (*domain.SpecialistOpinion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SpecialistOpinion), args.Error(1)
}

// MockGenerator is a mock implementation of domain.NarrativeGenerator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockArchive is a mock implementation of domain.SnapshotArchive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Save(ctx context.Context, pc *domain.PatientContext) error {
	return m.Called(ctx, pc).Error(0)
}

func (m *MockArchive) Load(ctx context.Context, caseID string) (*domain.PatientContext, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PatientContext), args.Error(1)
}

func (m *MockArchive) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.ArchivedCase, error) {
	args := m.Called(ctx, patientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ArchivedCase), args.Error(1)
}

func (m *MockArchive) Close() error {
	return m.Called().Error(0)
}

// MockPublisher is a mock implementation of domain.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.AssessmentEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// memoryStore is a map-backed AssessmentStore
type memoryStore struct {
	mu    sync.Mutex
	cases map[string]*domain.PatientContext
}

func newMemoryStore() *memoryStore {
	return &memoryStore{cases: make(map[string]*domain.PatientContext)}
}

func (s *memoryStore) Put(pc *domain.PatientContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[pc.CaseID] = pc
}

func (s *memoryStore) Get(caseID string) (*domain.PatientContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.cases[caseID]
	return pc, ok
}
