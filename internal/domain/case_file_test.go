package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCaseFile(t *testing.T) *PatientContext {
	t.Helper()

	pc := NewPatientContext("patient-001")
	pc.RawData.LabResults["Lipid Panel"] = []RawRecord{
		{"testDate": "2024-01-15", "extractedData": map[string]interface{}{"hdl": 38.0, "triglycerides": 160.0}},
		{"testDate": "2024-02-15", "extractedData": map[string]interface{}{"hdl": 37.0, "triglycerides": 171.0}},
	}
	pc.RawData.MedicalRecords = []RawRecord{{"title": "Annual physical", "notes": "BP 135/85"}}
	pc.RawData.Profile = RawRecord{"name": "Test Patient", "age": 54.0}

	hi := 100.0
	lo := 70.0
	pc.Features.TimeSeries["glucose"] = TimeSeries{
		Parameter: "glucose",
		Points: []DataPoint{
			{Timestamp: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Value: 95, SourceLabType: "Glucose"},
			{Timestamp: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), Value: 105, SourceLabType: "Glucose"},
			{Timestamp: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Value: 115, SourceLabType: "Glucose"},
		},
	}
	pc.Features.Statistics["glucose"] = TrendStatistics{Parameter: "glucose", SampleCount: 3, Mean: 105, Slope: 10, PValue: 0.01}
	pc.Features.Interpretations["glucose"] = ClinicalInterpretation{
		Parameter:      "glucose",
		ParameterType:  GlucoseMetabolism,
		TrendDirection: TrendIncreasing,
		Magnitude:      MagnitudeHigh,
		Significance:   SignificanceModerate,
		ConcernLevel:   ConcernHigh,
		IsAbnormal:     true,
		NormalRange:    NormalRange{Min: &lo, Max: &hi},
	}
	pc.Features.Correlations = []CorrelationResult{{ParameterA: "glucose", ParameterB: "hba1c", Coefficient: 0.91, SampleSize: 3}}
	pc.Features.Patterns = []ClinicalPattern{{Name: "metabolic_syndrome", Detected: true, CriteriaMet: 4, TotalCriteria: 4, Recommendations: []string{}}}
	pc.Features.LatestValues["glucose"] = 115
	return pc
}

func TestPatientContext_SnapshotRoundTrip(t *testing.T) {
	pc := sampleCaseFile(t)

	data, err := pc.Snapshot()
	require.NoError(t, err)

	restored, err := RestoreSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, pc.CaseID, restored.CaseID)
	assert.Equal(t, pc.PatientID, restored.PatientID)

	if diff := cmp.Diff(pc.RawData, restored.RawData, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("raw data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pc.Features, restored.Features, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("engineered features mismatch (-want +got):\n%s", diff)
	}
}

func TestPatientContext_Upsert_LastWriteWins(t *testing.T) {
	pc := NewPatientContext("patient-002")

	pc.Upsert(CategoryDataQuality, "dropped_records", 1)
	pc.Upsert(CategoryDataQuality, "dropped_records", 3)

	v, ok := pc.Annotation(CategoryDataQuality, "dropped_records")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = pc.Annotation(CategoryPipeline, "missing")
	assert.False(t, ok)
}

func TestPatientContext_SetOpinion(t *testing.T) {
	pc := NewPatientContext("patient-003")

	pc.SetOpinion(SpecialistOpinion{Specialist: "endocrinologist", RiskLevel: RiskHigh, Source: "stub"})

	require.Contains(t, pc.Opinions, "endocrinologist")
	src, ok := pc.Annotation(CategoryOpinions, "endocrinologist")
	require.True(t, ok)
	assert.Equal(t, "stub", src)
}

func TestNewPatientContext_UniqueCaseIDs(t *testing.T) {
	a := NewPatientContext("p")
	b := NewPatientContext("p")

	assert.NotEmpty(t, a.CaseID)
	assert.NotEqual(t, a.CaseID, b.CaseID)
	assert.Equal(t, 0, a.ObservationCount())
}

func TestRestoreSnapshot_Invalid(t *testing.T) {
	_, err := RestoreSnapshot([]byte("not json"))
	assert.Error(t, err)

	_, err = RestoreSnapshot([]byte(`{"version":"1"}`))
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	body, _ := json.Marshal(map[string]interface{}{"version": "99", "context": map[string]string{"case_id": "x"}})
	_, err = RestoreSnapshot(body)
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "version", verr.Field)
}
