package domain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SnapshotVersion identifies the serialized case-file layout
const SnapshotVersion = "1"

// RawData holds the records retrieved from the document store, untouched
type RawData struct {
	LabResults     map[string][]RawRecord `json:"lab_results"`
	MedicalRecords []RawRecord            `json:"medical_records"`
	Profile        RawRecord              `json:"profile,omitempty"`
}

// PatientContext is the case file of one assessment. It is owned by the
// orchestration layer for the duration of a run; engine stages read raw data
// from it and write derived features back, never touching raw data.
type PatientContext struct {
	CaseID      string                       `json:"case_id"`
	PatientID   string                       `json:"patient_id"`
	CreatedAt   time.Time                    `json:"created_at"`
	TimeRange   TimeRange                    `json:"time_range"`
	RawData     RawData                      `json:"raw_data"`
	Features    FeatureSet                   `json:"engineered_features"`
	Opinions    map[string]SpecialistOpinion `json:"opinions"`
	Synthesis   *Synthesis                   `json:"synthesis,omitempty"`
	Annotations map[string]map[string]any    `json:"annotations"`

	mu sync.Mutex
}

// NewPatientContext creates an empty case file with a fresh case id
func NewPatientContext(patientID string) *PatientContext {
	return &PatientContext{
		CaseID:    uuid.New().String(),
		PatientID: patientID,
		CreatedAt: time.Now().UTC(),
		RawData: RawData{
			LabResults:     make(map[string][]RawRecord),
			MedicalRecords: []RawRecord{},
		},
		Features:    NewFeatureSet(),
		Opinions:    make(map[string]SpecialistOpinion),
		Annotations: make(map[string]map[string]any),
	}
}

// Upsert writes a flat (category, key, value) entry into the case file.
// Last write wins per key.
func (pc *PatientContext) Upsert(category, key string, value any) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.Annotations == nil {
		pc.Annotations = make(map[string]map[string]any)
	}
	bucket, ok := pc.Annotations[category]
	if !ok {
		bucket = make(map[string]any)
		pc.Annotations[category] = bucket
	}
	bucket[key] = value
}

// Annotation reads back a value written with Upsert
func (pc *PatientContext) Annotation(category, key string) (any, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	bucket, ok := pc.Annotations[category]
	if !ok {
		return nil, false
	}
	v, ok := bucket[key]
	return v, ok
}

// SetOpinion records the narrative opinion of a contributor
func (pc *PatientContext) SetOpinion(opinion SpecialistOpinion) {
	pc.mu.Lock()
	if pc.Opinions == nil {
		pc.Opinions = make(map[string]SpecialistOpinion)
	}
	pc.Opinions[opinion.Specialist] = opinion
	pc.mu.Unlock()

	pc.Upsert(CategoryOpinions, opinion.Specialist, opinion.Source)
}

// ObservationCount returns the number of raw lab records held by the case file
func (pc *PatientContext) ObservationCount() int {
	total := 0
	for _, records := range pc.RawData.LabResults {
		total += len(records)
	}
	return total
}

// Snapshot serializes the case file into its immutable snapshot form
func (pc *PatientContext) Snapshot() ([]byte, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	envelope := struct {
		Version string          `json:"version"`
		Context *PatientContext `json:"context"`
	}{
		Version: SnapshotVersion,
		Context: pc,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal case file %s: %w", pc.CaseID, err)
	}
	return data, nil
}

// RestoreSnapshot rebuilds a case file from its snapshot form
func RestoreSnapshot(data []byte) (*PatientContext, error) {
	var envelope struct {
		Version string          `json:"version"`
		Context *PatientContext `json:"context"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case file snapshot: %w", err)
	}
	if envelope.Context == nil {
		return nil, NewValidationError("context", "snapshot has no case file", nil)
	}
	if envelope.Version != SnapshotVersion {
		return nil, NewValidationError("version", "unsupported snapshot version", envelope.Version)
	}

	pc := envelope.Context
	if pc.RawData.LabResults == nil {
		pc.RawData.LabResults = make(map[string][]RawRecord)
	}
	if pc.Opinions == nil {
		pc.Opinions = make(map[string]SpecialistOpinion)
	}
	if pc.Annotations == nil {
		pc.Annotations = make(map[string]map[string]any)
	}
	return pc, nil
}
