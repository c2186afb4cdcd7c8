package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors of the assessment pipeline. None of them aborts an
// in-progress assessment; callers degrade to partial output instead.
var (
	// ErrInsufficientData means fewer than three usable points or no numeric fields
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMalformedRecord means a record had no parseable timestamp or values
	ErrMalformedRecord = errors.New("malformed record")
	// ErrExternalService means a collaborator call failed or returned garbage
	ErrExternalService = errors.New("external service failure")
	// ErrConfiguration means a configuration entry was missing or invalid
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound means the requested case file does not exist
	ErrNotFound = errors.New("not found")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAssessment     = "ASSESSMENT_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ParameterError ties a pipeline error to the parameter it concerns
type ParameterError struct {
	Parameter string
	Err       error
}

// Error implements the error interface
func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %s: %v", e.Parameter, e.Err)
}

// Unwrap exposes the underlying sentinel
func (e *ParameterError) Unwrap() error {
	return e.Err
}
