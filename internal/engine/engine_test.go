package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

func newTestEngine() *FeatureEngine {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewFeatureEngine(logger, NewThresholdTable(), Options{Workers: 3})
}

func metabolicLabResults() map[string][]domain.RawRecord {
	dates := []string{"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15", "2024-05-15", "2024-06-15"}
	glucose := []float64{95, 105, 115, 125, 130, 135}
	triglycerides := []float64{140, 148, 155, 162, 170, 180}
	hdl := []float64{42, 41, 40, 39, 37, 36}
	systolic := []float64{125, 127, 129, 131, 135, 138}

	panel := make([]domain.RawRecord, 0, len(dates)+1)
	for i, d := range dates {
		panel = append(panel, domain.RawRecord{
			"testDate": d,
			"extractedData": map[string]interface{}{
				"glucose":       glucose[i],
				"triglycerides": triglycerides[i],
				"hdl":           hdl[i],
				"systolic_bp":   systolic[i],
			},
		})
	}
	panel = append(panel, domain.RawRecord{"extractedData": map[string]interface{}{"glucose": 300.0}})

	return map[string][]domain.RawRecord{
		"Metabolic Panel": panel,
		"Thyroid Panel": {
			{"testDate": "2024-02-01", "extractedData": map[string]interface{}{"tsh": 2.2}},
			{"testDate": "2024-05-01", "extractedData": map[string]interface{}{"tsh": 2.6}},
		},
	}
}

func TestFeatureEngine_Run(t *testing.T) {
	engine := newTestEngine()
	pc := domain.NewPatientContext("patient-001")
	pc.RawData.LabResults = metabolicLabResults()

	require.NoError(t, engine.Run(context.Background(), pc))
	features := pc.Features

	stats, ok := features.Statistics["glucose"]
	require.True(t, ok)
	assert.Greater(t, stats.Slope, 0.0)
	assert.Equal(t, 1.0, stats.TrendConsistency)

	glucose := features.Interpretations["glucose"]
	assert.Equal(t, domain.TrendIncreasing, glucose.TrendDirection)
	assert.Equal(t, domain.SignificanceModerate, glucose.Significance)
	assert.Equal(t, domain.ConcernHigh, glucose.ConcernLevel)

	assert.Equal(t, []string{"tsh"}, features.InsufficientData)
	assert.NotContains(t, features.Statistics, "tsh")
	assert.Equal(t, 2.6, features.LatestValues["tsh"])
	assert.Equal(t, 135.0, features.LatestValues["glucose"])

	require.NotEmpty(t, features.Correlations)
	for _, c := range features.Correlations {
		assert.NotEqual(t, "tsh", c.ParameterA)
		assert.NotEqual(t, "tsh", c.ParameterB)
	}

	metabolic := findPattern(t, features.Patterns, "metabolic_syndrome")
	assert.True(t, metabolic.Detected)
	assert.Equal(t, 4, metabolic.CriteriaMet)
	require.NotNil(t, metabolic.Progression)
	assert.Equal(t, domain.ProgressionWorsening, metabolic.Progression.Trend)
	assert.Len(t, features.Patterns, len(DefaultRuleSets()))

	dropped, ok := pc.Annotation(domain.CategoryDataQuality, "dropped_records")
	require.True(t, ok)
	assert.Equal(t, 1, dropped)
	status, _ := pc.Annotation(domain.CategoryPipeline, "feature_engine")
	assert.Equal(t, "completed", status)

	assert.Len(t, pc.RawData.LabResults["Metabolic Panel"], 7)
}

func TestFeatureEngine_Idempotent(t *testing.T) {
	engine := newTestEngine()
	pc := domain.NewPatientContext("patient-002")
	pc.RawData.LabResults = metabolicLabResults()
	require.NoError(t, engine.Run(context.Background(), pc))

	snapshot, err := pc.Snapshot()
	require.NoError(t, err)
	restored, err := domain.RestoreSnapshot(snapshot)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background(), restored))

	if diff := cmp.Diff(pc.Features.Statistics, restored.Features.Statistics); diff != "" {
		t.Errorf("statistics changed between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(pc.Features.Interpretations, restored.Features.Interpretations); diff != "" {
		t.Errorf("interpretations changed between runs (-first +second):\n%s", diff)
	}

	first, err := json.Marshal(pc.Features.Statistics)
	require.NoError(t, err)
	second, err := json.Marshal(restored.Features.Statistics)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	first, err = json.Marshal(pc.Features.Interpretations)
	require.NoError(t, err)
	second, err = json.Marshal(restored.Features.Interpretations)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestFeatureEngine_NoData(t *testing.T) {
	engine := newTestEngine()
	pc := domain.NewPatientContext("patient-003")

	require.NoError(t, engine.Run(context.Background(), pc))

	assert.Empty(t, pc.Features.TimeSeries)
	assert.Empty(t, pc.Features.Statistics)
	assert.Empty(t, pc.Features.Correlations)
	assert.Len(t, pc.Features.Patterns, len(DefaultRuleSets()))
}

func TestFeatureEngine_CancelledContext(t *testing.T) {
	engine := newTestEngine()
	pc := domain.NewPatientContext("patient-004")
	pc.RawData.LabResults = metabolicLabResults()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Run(ctx, pc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.NotEmpty(t, pc.Features.TimeSeries)
	assert.Empty(t, pc.Features.Statistics)
	status, _ := pc.Annotation(domain.CategoryPipeline, "feature_engine")
	assert.Equal(t, "aborted", status)
}
