package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

const defaultMongoTimeout = 10 * time.Second

// documentStore is the slice of MongoDB the record source needs
type documentStore interface {
	Find(ctx context.Context, collection string, filter bson.M) ([]bson.M, error)
	FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// MongoRecordSource reads patient records from MongoDB
type MongoRecordSource struct {
	logger  *logrus.Logger
	store   documentStore
	config  domain.DocumentStoreConfig
	timeout time.Duration
}

// NewMongoRecordSource connects to MongoDB and verifies the connection
func NewMongoRecordSource(ctx context.Context, logger *logrus.Logger, config domain.DocumentStoreConfig) (*MongoRecordSource, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("%w: document store uri is required", domain.ErrConfiguration)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	store := &mongoStore{client: client, database: client.Database(config.Database)}
	source := newMongoRecordSource(logger, store, config)

	pingCtx, cancel := context.WithTimeout(ctx, source.timeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"database": config.Database,
	}).Info("Connected to document store")

	return source, nil
}

func newMongoRecordSource(logger *logrus.Logger, store documentStore, config domain.DocumentStoreConfig) *MongoRecordSource {
	if config.LabResultsCollection == "" {
		config.LabResultsCollection = domain.CategoryLabResults
	}
	if config.MedicalRecordsCollection == "" {
		config.MedicalRecordsCollection = domain.CategoryMedicalRecords
	}
	if config.PatientsCollection == "" {
		config.PatientsCollection = "patients"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}
	return &MongoRecordSource{logger: logger, store: store, config: config, timeout: timeout}
}

// FetchObservations implements domain.RecordSource
func (s *MongoRecordSource) FetchObservations(ctx context.Context, patientID string, tr domain.TimeRange) (map[string][]domain.RawRecord, error) {
	records, err := s.find(ctx, s.config.LabResultsCollection, patientID)
	if err != nil {
		return nil, err
	}
	return GroupByLabType(withinRange(records, tr)), nil
}

// FetchNarrativeRecords implements domain.RecordSource
func (s *MongoRecordSource) FetchNarrativeRecords(ctx context.Context, patientID string, tr domain.TimeRange) ([]domain.RawRecord, error) {
	records, err := s.find(ctx, s.config.MedicalRecordsCollection, patientID)
	if err != nil {
		return nil, err
	}
	return withinRange(records, tr), nil
}

// FetchPatientProfile implements domain.RecordSource
func (s *MongoRecordSource) FetchPatientProfile(ctx context.Context, patientID string) (domain.RawRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"_id": patientID},
		bson.M{"uid": patientID},
		bson.M{"patientId": patientID},
	}}
	doc, err := s.store.FindOne(ctx, s.config.PatientsCollection, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: profile lookup: %v", domain.ErrExternalService, err)
	}
	if doc == nil {
		return domain.RawRecord{}, nil
	}
	return toRawRecord(doc), nil
}

// Ping checks the document store connection
func (s *MongoRecordSource) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close disconnects from the document store
func (s *MongoRecordSource) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}

func (s *MongoRecordSource) find(ctx context.Context, collection, patientID string) ([]domain.RawRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, err := s.store.Find(ctx, collection, patientFilter(patientID))
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", domain.ErrExternalService, collection, err)
	}

	records := make([]domain.RawRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, toRawRecord(doc))
	}

	s.logger.WithFields(logrus.Fields{
		"collection": collection,
		"count":      len(records),
	}).Debug("Fetched patient documents")

	return records, nil
}

// patientFilter matches the patient reference under any of the field names
// the upload pipeline has used
func patientFilter(patientID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"patientId": patientID},
		bson.M{"patient_id": patientID},
		bson.M{"userId": patientID},
	}}
}

func toRawRecord(doc bson.M) domain.RawRecord {
	record := make(domain.RawRecord, len(doc))
	for k, v := range doc {
		record[k] = normalizeBSON(v)
	}
	return record
}

// normalizeBSON converts driver value types into canonical record values
func normalizeBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.DateTime:
		return canonicalTime(t.Time())
	case bson.Timestamp:
		return canonicalTime(time.Unix(int64(t.T), 0))
	case bson.ObjectID:
		return t.Hex()
	case bson.Decimal128:
		return t.String()
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = normalizeBSON(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalizeBSON(val)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalizeBSON(val)
		}
		return m
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeBSON(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeBSON(val)
		}
		return out
	default:
		return canonicalValue(v)
	}
}

// mongoStore adapts a driver database to documentStore
type mongoStore struct {
	client   *mongo.Client
	database *mongo.Database
}

func (m *mongoStore) Find(ctx context.Context, collection string, filter bson.M) ([]bson.M, error) {
	cursor, err := m.database.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (m *mongoStore) FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error) {
	var doc bson.M
	err := m.database.Collection(collection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *mongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *mongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
