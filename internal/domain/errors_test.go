package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Invalid input",
			code:      ErrCodeInvalidInput,
			message:   "Invalid patient id",
			details:   "patient id must not be empty",
			requestID: "req-123",
		},
		{
			name:      "Not found",
			code:      ErrCodeNotFound,
			message:   "Assessment not found",
			details:   "case 42 has expired",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("patient_id", "must not be empty", "")

	if err.Field != "patient_id" {
		t.Errorf("Expected field patient_id, got %s", err.Field)
	}
	expected := "validation error for field 'patient_id': must not be empty"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}
}

func TestParameterError_Unwrap(t *testing.T) {
	err := fmt.Errorf("statistics: %w", &ParameterError{Parameter: "glucose", Err: ErrInsufficientData})

	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected error chain to contain ErrInsufficientData")
	}

	var perr *ParameterError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected error chain to contain *ParameterError")
	}
	if perr.Parameter != "glucose" {
		t.Errorf("Expected parameter glucose, got %s", perr.Parameter)
	}
}
