package external

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// PatientRecords is everything the document store holds for one patient
type PatientRecords struct {
	LabResults     []domain.RawRecord `json:"lab_results"`
	MedicalRecords []domain.RawRecord `json:"medical_records"`
	Profile        domain.RawRecord   `json:"profile,omitempty"`
}

// MemoryRecordSource serves patient records from memory. It backs the CLI
// and tests.
type MemoryRecordSource struct {
	mu       sync.RWMutex
	patients map[string]PatientRecords
}

// NewMemoryRecordSource creates an empty in-memory source
func NewMemoryRecordSource() *MemoryRecordSource {
	return &MemoryRecordSource{patients: make(map[string]PatientRecords)}
}

// LoadRecordFile reads a JSON object keyed by patient id
func LoadRecordFile(path string) (*MemoryRecordSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record file %s: %w", path, err)
	}

	var patients map[string]PatientRecords
	if err := json.Unmarshal(data, &patients); err != nil {
		return nil, fmt.Errorf("failed to parse record file %s: %w", path, err)
	}

	source := NewMemoryRecordSource()
	for id, records := range patients {
		source.Put(id, records)
	}
	return source, nil
}

// Put replaces the records of a patient
func (s *MemoryRecordSource) Put(patientID string, records PatientRecords) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[patientID] = PatientRecords{
		LabResults:     canonicalRecords(records.LabResults),
		MedicalRecords: canonicalRecords(records.MedicalRecords),
		Profile:        CanonicalRecord(records.Profile),
	}
}

// PatientIDs lists the patients held by the source
func (s *MemoryRecordSource) PatientIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.patients))
	for id := range s.patients {
		ids = append(ids, id)
	}
	return ids
}

// FetchObservations implements domain.RecordSource
func (s *MemoryRecordSource) FetchObservations(ctx context.Context, patientID string, tr domain.TimeRange) (map[string][]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	records := s.patients[patientID].LabResults
	s.mu.RUnlock()

	return GroupByLabType(withinRange(records, tr)), nil
}

// FetchNarrativeRecords implements domain.RecordSource
func (s *MemoryRecordSource) FetchNarrativeRecords(ctx context.Context, patientID string, tr domain.TimeRange) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	records := s.patients[patientID].MedicalRecords
	s.mu.RUnlock()

	kept := withinRange(records, tr)
	if kept == nil {
		kept = []domain.RawRecord{}
	}
	return kept, nil
}

// FetchPatientProfile implements domain.RecordSource
func (s *MemoryRecordSource) FetchPatientProfile(ctx context.Context, patientID string) (domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile := s.patients[patientID].Profile
	if profile == nil {
		return domain.RawRecord{}, nil
	}
	return profile, nil
}
