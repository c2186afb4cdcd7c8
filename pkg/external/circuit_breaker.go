package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

const (
	defaultBreakerMaxFailures = 5
	defaultBreakerTimeout     = 60 * time.Second
)

// newBreaker builds a breaker that trips after maxFailures consecutive
// failures or a 60% failure ratio over at least three requests
func newBreaker(logger *logrus.Logger, name string, maxFailures uint32, timeout time.Duration) *gobreaker.CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= maxFailures {
				return true
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
		},
	})
}

// breakerError marks an open breaker as an external-service failure
func breakerError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s unavailable (circuit breaker open)", domain.ErrExternalService, name)
	}
	return err
}

// ResilientRecordSource guards each read category of a record source with
// its own circuit breaker
type ResilientRecordSource struct {
	source domain.RecordSource

	labBreaker     *gobreaker.CircuitBreaker
	recordsBreaker *gobreaker.CircuitBreaker
	profileBreaker *gobreaker.CircuitBreaker
}

// NewResilientRecordSource wraps source with circuit breakers
func NewResilientRecordSource(logger *logrus.Logger, source domain.RecordSource, config domain.DocumentStoreConfig) *ResilientRecordSource {
	return &ResilientRecordSource{
		source:         source,
		labBreaker:     newBreaker(logger, domain.CategoryLabResults, config.BreakerMaxFailures, config.BreakerTimeout),
		recordsBreaker: newBreaker(logger, domain.CategoryMedicalRecords, config.BreakerMaxFailures, config.BreakerTimeout),
		profileBreaker: newBreaker(logger, domain.CategoryProfile, config.BreakerMaxFailures, config.BreakerTimeout),
	}
}

// FetchObservations implements domain.RecordSource
func (r *ResilientRecordSource) FetchObservations(ctx context.Context, patientID string, tr domain.TimeRange) (map[string][]domain.RawRecord, error) {
	result, err := r.labBreaker.Execute(func() (interface{}, error) {
		return r.source.FetchObservations(ctx, patientID, tr)
	})
	if err != nil {
		return nil, breakerError(r.labBreaker.Name(), err)
	}
	return result.(map[string][]domain.RawRecord), nil
}

// FetchNarrativeRecords implements domain.RecordSource
func (r *ResilientRecordSource) FetchNarrativeRecords(ctx context.Context, patientID string, tr domain.TimeRange) ([]domain.RawRecord, error) {
	result, err := r.recordsBreaker.Execute(func() (interface{}, error) {
		return r.source.FetchNarrativeRecords(ctx, patientID, tr)
	})
	if err != nil {
		return nil, breakerError(r.recordsBreaker.Name(), err)
	}
	return result.([]domain.RawRecord), nil
}

// FetchPatientProfile implements domain.RecordSource
func (r *ResilientRecordSource) FetchPatientProfile(ctx context.Context, patientID string) (domain.RawRecord, error) {
	result, err := r.profileBreaker.Execute(func() (interface{}, error) {
		return r.source.FetchPatientProfile(ctx, patientID)
	})
	if err != nil {
		return nil, breakerError(r.profileBreaker.Name(), err)
	}
	return result.(domain.RawRecord), nil
}

// GetCircuitBreakerStates returns the current state of all circuit breakers
func (r *ResilientRecordSource) GetCircuitBreakerStates() map[string]gobreaker.State {
	return map[string]gobreaker.State{
		r.labBreaker.Name():     r.labBreaker.State(),
		r.recordsBreaker.Name(): r.recordsBreaker.State(),
		r.profileBreaker.Name(): r.profileBreaker.State(),
	}
}
