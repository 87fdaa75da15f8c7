// Package services provides the business logic layer between the transports
// (HTTP handlers, queue worker) and the analytics engine.
package services

import (
	"errors"
)

// Service error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidGrain       = "INVALID_GRAIN"
	CodeInvalidAggregation = "INVALID_AGGREGATION"
	CodeInsufficientData   = "INSUFFICIENT_DATA"
	CodeEvaluationFailed   = "EVALUATION_FAILED"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// AsServiceError extracts a *ServiceError from err's chain
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// IsClientError reports whether err was caused by the request rather than
// by evaluation. Client errors should not be retried.
func IsClientError(err error) bool {
	svcErr, ok := AsServiceError(err)
	if !ok {
		return false
	}
	switch svcErr.Code {
	case CodeInvalidRequest, CodeInvalidGrain, CodeInvalidAggregation, CodeInsufficientData:
		return true
	default:
		return false
	}
}
