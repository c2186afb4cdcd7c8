package engine

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// timestampKeys are the field names a record may carry its observation time under,
// in order of preference
var timestampKeys = []string{
	"timestamp", "testDate", "date", "collectedAt", "collectionDate",
	"analysisDate", "createdAt", "uploadedAt",
}

// valueContainers are the nested maps a record may carry its measurements in,
// in order of preference
var valueContainers = []string{
	"extractedData", "normalizedValues", "values", "results", "labValues",
}

// metadataKeys are top-level fields that never hold a measurement
var metadataKeys = map[string]bool{
	"id": true, "_id": true, "patientId": true, "patient_id": true, "userId": true,
	"labType": true, "lab_type": true, "testType": true, "type": true, "category": true,
	"fileName": true, "fileUrl": true, "status": true, "notes": true, "title": true,
	"description": true, "source": true, "unit": true, "units": true, "labName": true,
	"doctor": true, "uploadedBy": true, "updatedAt": true,
}

var (
	// a number optionally followed by a unit such as "mg/dL", "%" or "µmol/L";
	// suffixes carrying further digits or dashes ("2024-01-20", "555-1234") do not match
	numericPrefix = regexp.MustCompile(`^\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)(?:\s*[\p{L}%µ][\p{L}%µ/.\s]*)?\s*$`)
	pressurePair  = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)`)
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ExtractionResult is the output of one extraction pass
type ExtractionResult struct {
	Series         map[string]domain.TimeSeries
	Observations   []domain.LabObservation
	RecordsSeen    int
	DroppedRecords int
	DroppedFields  int
}

// Extractor turns heterogeneous lab records into per-parameter time series
type Extractor struct {
	logger *logrus.Logger
}

// NewExtractor creates a new extractor
func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract normalizes every record of every lab type and fans the numeric
// fields out into one series per canonical parameter. Records without a
// parseable timestamp or without any numeric field are dropped and counted.
func (e *Extractor) Extract(labResults map[string][]domain.RawRecord) ExtractionResult {
	result := ExtractionResult{
		Series:       make(map[string]domain.TimeSeries),
		Observations: []domain.LabObservation{},
	}

	labTypes := make([]string, 0, len(labResults))
	for labType := range labResults {
		labTypes = append(labTypes, labType)
	}
	sort.Strings(labTypes)

	for _, labType := range labTypes {
		for i, record := range labResults[labType] {
			result.RecordsSeen++

			observations, dropped, ok := e.normalize(labType, record)
			result.DroppedFields += dropped
			if !ok {
				result.DroppedRecords++
				e.logger.WithFields(logrus.Fields{
					"lab_type": labType,
					"index":    i,
				}).Debugf("dropping record: %v", domain.ErrMalformedRecord)
				continue
			}
			result.Observations = append(result.Observations, observations...)
		}
	}

	sort.SliceStable(result.Observations, func(i, j int) bool {
		return result.Observations[i].Timestamp.Before(result.Observations[j].Timestamp)
	})

	for _, obs := range result.Observations {
		ts := result.Series[obs.Parameter]
		ts.Parameter = obs.Parameter
		ts.Points = append(ts.Points, domain.DataPoint{
			Timestamp:     obs.Timestamp,
			Value:         obs.Value,
			SourceLabType: obs.SourceLabType,
		})
		result.Series[obs.Parameter] = ts
	}

	return result
}

// normalize maps one raw record onto canonical observations. It returns the
// number of dropped fields and whether the record was usable at all.
func (e *Extractor) normalize(labType string, record domain.RawRecord) ([]domain.LabObservation, int, bool) {
	ts, ok := recordTimestamp(record)
	if !ok {
		return nil, 0, false
	}

	fields := recordFields(record)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	dropped := 0
	seen := make(map[string]bool)
	observations := make([]domain.LabObservation, 0, len(names))
	emit := func(parameter string, value float64) {
		if parameter == "" || seen[parameter] {
			return
		}
		seen[parameter] = true
		observations = append(observations, domain.LabObservation{
			Parameter:     parameter,
			Value:         value,
			Timestamp:     ts,
			SourceLabType: labType,
		})
	}

	for _, name := range names {
		raw := fields[name]
		parameter := CanonicalParameter(name)

		if isBloodPressure(parameter) {
			if s, ok := raw.(string); ok {
				if m := pressurePair.FindStringSubmatch(s); m != nil {
					systolic, _ := strconv.ParseFloat(m[1], 64)
					diastolic, _ := strconv.ParseFloat(m[2], 64)
					emit("systolic_bp", systolic)
					emit("diastolic_bp", diastolic)
					continue
				}
			}
		}

		value, ok := numericValue(raw)
		if !ok {
			dropped++
			continue
		}
		emit(parameter, value)
	}

	if len(observations) == 0 {
		return nil, dropped, false
	}
	return observations, dropped, true
}

func isBloodPressure(parameter string) bool {
	return parameter == "bp" || parameter == "blood_pressure"
}

// recordFields collects the candidate measurement fields of a record. Value
// containers are merged in preference order with earlier containers winning
// on duplicate names; top-level fields are used only when no container exists.
func recordFields(record domain.RawRecord) map[string]interface{} {
	fields := make(map[string]interface{})
	found := false
	for _, key := range valueContainers {
		container, ok := asMap(record[key])
		if !ok {
			continue
		}
		found = true
		for name, v := range container {
			if metadataKeys[name] || isTimestampKey(name) {
				continue
			}
			if _, exists := fields[name]; !exists {
				fields[name] = v
			}
		}
	}
	if found {
		return fields
	}

	for name, v := range record {
		if metadataKeys[name] || isTimestampKey(name) {
			continue
		}
		fields[name] = v
	}
	return fields
}

func isTimestampKey(name string) bool {
	for _, key := range timestampKeys {
		if key == name {
			return true
		}
	}
	return false
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case domain.RawRecord:
		return m, true
	}
	return nil, false
}

// RecordTimestamp returns the first parseable timestamp field of a record
func RecordTimestamp(record domain.RawRecord) (time.Time, bool) {
	return recordTimestamp(record)
}

func recordTimestamp(record domain.RawRecord) (time.Time, bool) {
	for _, key := range timestampKeys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		if ts, ok := parseTimestamp(v); ok {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseTimestamp accepts time values, date strings, unix seconds or
// milliseconds and {seconds, nanoseconds} maps
func parseTimestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return unixTimestamp(n)
		}
		return time.Time{}, false
	case map[string]interface{}:
		return secondsMap(t)
	case domain.RawRecord:
		return secondsMap(t)
	}

	if n, ok := numericValue(v); ok {
		return unixTimestamp(n)
	}
	return time.Time{}, false
}

func secondsMap(m map[string]interface{}) (time.Time, bool) {
	var secs, nanos float64
	var ok bool
	for _, key := range []string{"seconds", "_seconds"} {
		if secs, ok = numericValue(m[key]); ok {
			break
		}
	}
	if !ok {
		return time.Time{}, false
	}
	for _, key := range []string{"nanoseconds", "_nanoseconds"} {
		if n, found := numericValue(m[key]); found {
			nanos = n
			break
		}
	}
	return time.Unix(int64(secs), int64(nanos)), true
}

func unixTimestamp(n float64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	// anything past year 2286 in seconds is taken to be milliseconds
	if n > 1e10 {
		return time.UnixMilli(int64(n)), true
	}
	return time.Unix(int64(n), 0), true
}

// numericValue extracts a finite float from numbers, numeric strings with an
// optional unit suffix and {value|result|amount} maps
func numericValue(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		m := numericPrefix.FindStringSubmatch(n)
		if m == nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case map[string]interface{}:
		return nestedValue(n)
	case domain.RawRecord:
		return nestedValue(n)
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func nestedValue(m map[string]interface{}) (float64, bool) {
	for _, key := range []string{"value", "result", "amount"} {
		if v, ok := m[key]; ok {
			return numericValue(v)
		}
	}
	return 0, false
}
