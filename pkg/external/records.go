package external

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/engine"
)

// GeneralLabType groups lab records that carry no type field
const GeneralLabType = "general"

var labTypeKeys = []string{"labType", "lab_type", "testType", "type"}

// LabTypeOf returns the normalized lab type of a record
func LabTypeOf(record domain.RawRecord) string {
	for _, key := range labTypeKeys {
		if s, ok := record[key].(string); ok {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				return s
			}
		}
	}
	return GeneralLabType
}

// GroupByLabType buckets lab records by lab type, preserving input order
func GroupByLabType(records []domain.RawRecord) map[string][]domain.RawRecord {
	grouped := make(map[string][]domain.RawRecord)
	for _, record := range records {
		labType := LabTypeOf(record)
		grouped[labType] = append(grouped[labType], record)
	}
	return grouped
}

// withinRange keeps records whose timestamp falls inside tr. Records without
// a parseable timestamp are kept so the extractor can account for them.
func withinRange(records []domain.RawRecord, tr domain.TimeRange) []domain.RawRecord {
	if tr.IsZero() {
		return records
	}
	kept := make([]domain.RawRecord, 0, len(records))
	for _, record := range records {
		ts, ok := engine.RecordTimestamp(record)
		if ok && !tr.Contains(ts) {
			continue
		}
		kept = append(kept, record)
	}
	return kept
}

// CanonicalRecord rewrites a record into the value forms a JSON round trip
// produces: times become RFC 3339 strings, numbers float64, nested documents
// map[string]interface{} and arrays []interface{}. Record sources return
// canonical records so that a case file snapshot restores equal to the
// case file it was taken from.
func CanonicalRecord(record domain.RawRecord) domain.RawRecord {
	if record == nil {
		return nil
	}
	out := make(domain.RawRecord, len(record))
	for k, v := range record {
		out[k] = canonicalValue(v)
	}
	return out
}

func canonicalRecords(records []domain.RawRecord) []domain.RawRecord {
	if records == nil {
		return nil
	}
	out := make([]domain.RawRecord, len(records))
	for i, record := range records {
		out[i] = CanonicalRecord(record)
	}
	return out
}

func canonicalValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return canonicalTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return canonicalTime(*t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case domain.RawRecord:
		return map[string]interface{}(CanonicalRecord(t))
	case map[string]interface{}:
		return map[string]interface{}(CanonicalRecord(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = canonicalValue(val)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
