package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

const observationKeyPrefix = "ccas:observations"

// redisStore is the subset of the Redis command set the cache uses
type redisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// CacheClient wraps a Redis client with caching of document-store reads
type CacheClient struct {
	redis      redisStore
	defaultTTL time.Duration
	now        func() time.Time
}

// NewCacheClient creates a new cache client
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse Redis URL: %v", domain.ErrConfiguration, err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newCacheClient(client, config.DefaultTTL), nil
}

func newCacheClient(store redisStore, ttl time.Duration) *CacheClient {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CacheClient{redis: store, defaultTTL: ttl, now: time.Now}
}

// CachedObservations represents cached lab results with metadata
type CachedObservations struct {
	Data      map[string][]domain.RawRecord `json:"data"`
	CachedAt  time.Time                     `json:"cached_at"`
	ExpiresAt time.Time                     `json:"expires_at"`
}

// GetObservations retrieves cached lab results for a patient and range
func (c *CacheClient) GetObservations(ctx context.Context, patientID string, tr domain.TimeRange) (map[string][]domain.RawRecord, bool, error) {
	key := observationKey(patientID, tr)

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get observation cache: %w", err)
	}

	var cached CachedObservations
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if c.now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetObservations caches lab results for a patient and range
func (c *CacheClient) SetObservations(ctx context.Context, patientID string, tr domain.TimeRange, data map[string][]domain.RawRecord, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := c.now()
	cached := CachedObservations{
		Data:      data,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal observation cache data: %w", err)
	}

	return c.redis.Set(ctx, observationKey(patientID, tr), jsonData, ttl).Err()
}

// InvalidatePatient removes every cached range of a patient
func (c *CacheClient) InvalidatePatient(ctx context.Context, patientID string) error {
	pattern := fmt.Sprintf("%s:%s:*", observationKeyPrefix, hashKey(patientID))
	keys, err := c.redis.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to get keys for pattern %s: %w", pattern, err)
	}

	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...).Err()
}

// Ping checks if Redis connection is alive
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// observationKey hashes the patient id so identifiers never appear in Redis
func observationKey(patientID string, tr domain.TimeRange) string {
	rangeKey := fmt.Sprintf("%d:%d", unixOrZero(tr.From), unixOrZero(tr.To))
	return fmt.Sprintf("%s:%s:%s", observationKeyPrefix, hashKey(patientID), hashKey(rangeKey))
}

func hashKey(s string) string {
	hash := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", hash[:8])
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// CachedRecordSource serves lab-result reads from Redis when possible.
// Narrative records and profiles always go to the underlying source.
type CachedRecordSource struct {
	logger *logrus.Logger
	source domain.RecordSource
	cache  *CacheClient
	ttl    time.Duration
}

// NewCachedRecordSource wraps source with cache
func NewCachedRecordSource(logger *logrus.Logger, source domain.RecordSource, cache *CacheClient, ttl time.Duration) *CachedRecordSource {
	return &CachedRecordSource{logger: logger, source: source, cache: cache, ttl: ttl}
}

// FetchObservations implements domain.RecordSource
func (s *CachedRecordSource) FetchObservations(ctx context.Context, patientID string, tr domain.TimeRange) (map[string][]domain.RawRecord, error) {
	cached, hit, err := s.cache.GetObservations(ctx, patientID, tr)
	if err != nil {
		s.logger.WithError(err).Warn("Observation cache read failed")
	}
	if hit {
		return cached, nil
	}

	fresh, err := s.source.FetchObservations(ctx, patientID, tr)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetObservations(ctx, patientID, tr, fresh, s.ttl); err != nil {
		s.logger.WithError(err).Warn("Observation cache write failed")
	}
	return fresh, nil
}

// FetchNarrativeRecords implements domain.RecordSource
func (s *CachedRecordSource) FetchNarrativeRecords(ctx context.Context, patientID string, tr domain.TimeRange) ([]domain.RawRecord, error) {
	return s.source.FetchNarrativeRecords(ctx, patientID, tr)
}

// FetchPatientProfile implements domain.RecordSource
func (s *CachedRecordSource) FetchPatientProfile(ctx context.Context, patientID string) (domain.RawRecord, error) {
	return s.source.FetchPatientProfile(ctx, patientID)
}
