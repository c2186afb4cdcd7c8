package domain

import (
	"context"
	"time"
)

// RecordSource is the document-store query interface consumed by the pipeline.
// Missing collections or patients yield empty results, not errors.
type RecordSource interface {
	FetchObservations(ctx context.Context, patientID string, tr TimeRange) (map[string][]RawRecord, error)
	FetchNarrativeRecords(ctx context.Context, patientID string, tr TimeRange) ([]RawRecord, error)
	FetchPatientProfile(ctx context.Context, patientID string) (RawRecord, error)
}

// NarrativeGenerator is a free-text completion service. It is expected to
// fail intermittently.
type NarrativeGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ConsultationRequest is what a specialist sees of a case
type ConsultationRequest struct {
	CaseID     string    `json:"case_id"`
	PatientID  string    `json:"patient_id"`
	Specialist string    `json:"specialist"`
	Summary    string    `json:"summary"`
	Findings   []string  `json:"findings"`
	Patterns   []string  `json:"patterns"`
	Risk       RiskLevel `json:"risk"`
}

// NarrativeConsultant produces a structured opinion for one specialist
type NarrativeConsultant interface {
	Consult(ctx context.Context, req ConsultationRequest) (*SpecialistOpinion, error)
}

// CaseFileWriter accepts flat upserts into a case file
type CaseFileWriter interface {
	Upsert(category, key string, value any)
}

// SnapshotArchive keeps serialized case files beyond the active-assessment TTL
type SnapshotArchive interface {
	Save(ctx context.Context, pc *PatientContext) error
	Load(ctx context.Context, caseID string) (*PatientContext, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]ArchivedCase, error)
	Close() error
}

// ArchivedCase is the index entry of an archived snapshot
type ArchivedCase struct {
	CaseID      string    `json:"case_id"`
	PatientID   string    `json:"patient_id"`
	OverallRisk RiskLevel `json:"overall_risk"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssessmentEvent is emitted when an assessment finishes
type AssessmentEvent struct {
	Type        string    `json:"type"`
	CaseID      string    `json:"case_id"`
	PatientID   string    `json:"patient_id"`
	OverallRisk RiskLevel `json:"overall_risk"`
	Urgency     Urgency   `json:"urgency"`
	Detected    []string  `json:"detected_patterns"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventPublisher announces finished assessments
type EventPublisher interface {
	Publish(ctx context.Context, event AssessmentEvent) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
