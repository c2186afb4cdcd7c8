package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestExtractor_Extract_NormalizesHeterogeneousRecords(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	extractor := NewExtractor(logger)

	labResults := map[string][]domain.RawRecord{
		"Lipid Panel": {
			{
				"testDate": "2024-03-01",
				"extractedData": map[string]interface{}{
					"HDL Cholesterol": "38 mg/dL",
					"Triglycerides":   160.0,
					"comment":         "fasting",
				},
			},
			{
				"testDate": "2024-01-01",
				"normalizedValues": map[string]interface{}{
					"hdl":           map[string]interface{}{"value": 42.0, "unit": "mg/dL"},
					"triglycerides": 140,
				},
			},
		},
		"Glucose": {
			{"timestamp": map[string]interface{}{"_seconds": float64(day(2024, 2, 1).Unix())}, "glucose": 101.0},
			{"collectedAt": day(2024, 1, 1), "values": map[string]interface{}{"glucose": "pending"}},
			{"glucose": 99.0},
		},
		"Vitals": {
			{"date": "01/15/2024", "blood_pressure": "135/85", "notes": "seated"},
		},
		"Thyroid": {
			{"createdAt": int64(1706745600000), "results": map[string]interface{}{"TSH": json.Number("2.1")}},
		},
	}

	result := extractor.Extract(labResults)

	assert.Equal(t, 7, result.RecordsSeen)
	assert.Equal(t, 2, result.DroppedRecords)
	assert.Equal(t, 2, result.DroppedFields)
	assert.Len(t, hook.AllEntries(), 2)

	hdl := result.Series["hdl"]
	require.Equal(t, 2, hdl.Len())
	assert.Equal(t, []float64{42, 38}, hdl.Values())
	assert.Equal(t, day(2024, 1, 1), hdl.Points[0].Timestamp)
	assert.Equal(t, "Lipid Panel", hdl.Points[1].SourceLabType)

	assert.Equal(t, []float64{140, 160}, result.Series["triglycerides"].Values())

	glucose := result.Series["glucose"]
	require.Equal(t, 1, glucose.Len())
	assert.Equal(t, 101.0, glucose.Points[0].Value)
	assert.Equal(t, day(2024, 2, 1), glucose.Points[0].Timestamp)

	assert.Equal(t, []float64{135}, result.Series["systolic_bp"].Values())
	assert.Equal(t, []float64{85}, result.Series["diastolic_bp"].Values())

	tsh := result.Series["tsh"]
	require.Equal(t, 1, tsh.Len())
	assert.Equal(t, 2.1, tsh.Points[0].Value)
	assert.Equal(t, day(2024, 2, 1), tsh.Points[0].Timestamp)

	assert.NotContains(t, result.Series, "comment")
	assert.NotContains(t, result.Series, "notes")
}

func TestExtractor_Extract_OrderingAndDuplicates(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	extractor := NewExtractor(logger)

	labResults := map[string][]domain.RawRecord{
		"B Panel": {
			{"testDate": "2024-02-01", "glucose": 110.0},
			{"testDate": "2024-01-01", "glucose": 100.0},
		},
		"A Panel": {
			{"testDate": "2024-02-01", "glucose": 108.0},
		},
	}

	result := extractor.Extract(labResults)
	series := result.Series["glucose"]

	require.Equal(t, 3, series.Len())
	assert.Equal(t, []float64{100, 108, 110}, series.Values())
	assert.Equal(t, "A Panel", series.Points[1].SourceLabType)
	assert.Equal(t, "B Panel", series.Points[2].SourceLabType)
	assert.True(t, series.Points[1].Timestamp.Equal(series.Points[2].Timestamp))

	again := extractor.Extract(labResults)
	assert.Equal(t, result.Series, again.Series)
}

func TestExtractor_Extract_IgnoresDatesAndIdentifiers(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	extractor := NewExtractor(logger)

	labResults := map[string][]domain.RawRecord{
		"Metabolic Panel": {
			{"testDate": "2024-01-15", "glucose": 95.0, "reportedOn": "2024-01-20", "labPhone": "555-1234"},
			{
				"testDate": "2024-02-15",
				"extractedData": map[string]interface{}{
					"glucose":  "101 mg/dL",
					"testDate": "2024-02-15",
					"unit":     "mg/dL",
					"id":       "12345",
				},
			},
		},
	}

	result := extractor.Extract(labResults)

	assert.Equal(t, []float64{95, 101}, result.Series["glucose"].Values())
	assert.Len(t, result.Series, 1)
	assert.NotContains(t, result.Series, "reported_on")
	assert.NotContains(t, result.Series, "lab_phone")
	assert.NotContains(t, result.Series, "test_date")
	assert.Equal(t, 2, result.DroppedFields)
}

func TestExtractor_Extract_Empty(t *testing.T) {
	extractor := NewExtractor(logrus.New())

	result := extractor.Extract(nil)
	assert.Empty(t, result.Series)
	assert.Equal(t, 0, result.RecordsSeen)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name  string
		input interface{}
		ok    bool
	}{
		{"time value", want, true},
		{"rfc3339", "2024-05-06T07:08:09Z", true},
		{"local layout", "2024-05-06T07:08:09", true},
		{"unix seconds", float64(want.Unix()), true},
		{"unix millis", want.UnixMilli(), true},
		{"numeric string", "1714979289", true},
		{"firestore map", map[string]interface{}{"seconds": want.Unix(), "nanoseconds": 0}, true},
		{"garbage", "next tuesday", false},
		{"zero", 0, false},
		{"bool", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTimestamp(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %v", got)
			}
		})
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  float64
		ok    bool
	}{
		{"float", 5.5, 5.5, true},
		{"int", 7, 7, true},
		{"plain string", "105", 105, true},
		{"unit suffix", "105 mg/dL", 105, true},
		{"percent", "5.9%", 5.9, true},
		{"negative", "-1.5", -1.5, true},
		{"nested value", map[string]interface{}{"value": "4.2"}, 4.2, true},
		{"nested result", map[string]interface{}{"result": 3.0}, 3, true},
		{"ratio string", "120/80", 0, false},
		{"micro unit", "4.1 µmol/L", 4.1, true},
		{"flagged", "150 H", 150, true},
		{"date string", "2024-01-20", 0, false},
		{"phone number", "555-1234", 0, false},
		{"time of day", "12:30", 0, false},
		{"trailing digits", "7 x 10^9/L", 0, false},
		{"text", "positive", 0, false},
		{"nan string", "NaN", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := numericValue(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}
