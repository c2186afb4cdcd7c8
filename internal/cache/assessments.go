package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

const (
	defaultMaxEntries = 1000
	defaultTTL        = 24 * time.Hour
)

// AssessmentCache keeps recently produced case files in memory. Entries
// expire after the configured TTL and the least recently used entry is
// evicted once the cache is full.
type AssessmentCache struct {
	logger  *logrus.Logger
	entries *expirable.LRU[string, *domain.PatientContext]
}

// NewAssessmentCache creates an assessment cache. Non-positive limits fall
// back to the defaults.
func NewAssessmentCache(logger *logrus.Logger, cfg domain.AssessmentConfig) *AssessmentCache {
	size := cfg.MaxEntries
	if size <= 0 {
		size = defaultMaxEntries
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	c := &AssessmentCache{logger: logger}
	c.entries = expirable.NewLRU[string, *domain.PatientContext](size, c.onEvict, ttl)
	return c
}

func (c *AssessmentCache) onEvict(caseID string, pc *domain.PatientContext) {
	c.logger.WithFields(logrus.Fields{
		"case_id":    caseID,
		"patient_id": pc.PatientID,
	}).Debug("Evicted case file from assessment cache")
}

// Put stores a case file under its case id
func (c *AssessmentCache) Put(pc *domain.PatientContext) {
	c.entries.Add(pc.CaseID, pc)
}

// Get returns a cached case file
func (c *AssessmentCache) Get(caseID string) (*domain.PatientContext, bool) {
	return c.entries.Get(caseID)
}

// Remove drops a case file from the cache
func (c *AssessmentCache) Remove(caseID string) bool {
	return c.entries.Remove(caseID)
}

// Len returns the number of live entries
func (c *AssessmentCache) Len() int {
	return c.entries.Len()
}
