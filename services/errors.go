package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeInitialization      ErrorType = "initialization"
	ErrorTypeNoHealthyInstance   ErrorType = "no_healthy_instance"
	ErrorTypeSelectionExhausted  ErrorType = "selection_exhausted"
	ErrorTypeCircuitOpen         ErrorType = "circuit_open"
	ErrorTypeHealthProbe         ErrorType = "health_probe"
	ErrorTypePersistence         ErrorType = "persistence"
	ErrorTypeExternal            ErrorType = "external"
	ErrorTypeInternal            ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Lookup errors
	ErrProviderNotFound = NewDomainError(ErrorTypeNotFound, "provider not found", nil)
	ErrInstanceNotFound = NewDomainError(ErrorTypeNotFound, "instance not found", nil)
	ErrServiceNotFound  = NewDomainError(ErrorTypeNotFound, "service not found", nil)

	// Registration errors
	ErrInitialization    = NewDomainError(ErrorTypeInitialization, "provider initialization failed", nil)
	ErrMissingCredential = NewDomainError(ErrorTypeValidation, "provider credential is required", nil)
	ErrInvalidCapability = NewDomainError(ErrorTypeValidation, "capability score out of range", nil)

	// Selection errors
	ErrNoHealthyInstance  = NewDomainError(ErrorTypeNoHealthyInstance, "no healthy instance for capability", nil)
	ErrSelectionExhausted = NewDomainError(ErrorTypeSelectionExhausted, "all candidates and fallbacks exhausted", nil)
	ErrCircuitOpen        = NewDomainError(ErrorTypeCircuitOpen, "circuit breaker is open", nil)

	// Background errors (recovered, observable via logs and metrics)
	ErrHealthProbe = NewDomainError(ErrorTypeHealthProbe, "health probe failed", nil)
	ErrPersistence = NewDomainError(ErrorTypePersistence, "persistence operation failed", nil)

	// Provider call errors
	ErrProviderUnavailable = NewDomainError(ErrorTypeExternal, "provider unavailable", nil)
	ErrProviderTimeout     = NewDomainError(ErrorTypeExternal, "provider timeout", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsSelectionError checks if an error means no instance could be selected
func IsSelectionError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNoHealthyInstance ||
			domainErr.Type == ErrorTypeSelectionExhausted
	}
	return false
}

// IsCircuitOpenError checks if an error is a circuit breaker rejection
func IsCircuitOpenError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCircuitOpen
	}
	return false
}

// IsInitializationError checks if an error is a registration initialization failure
func IsInitializationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInitialization
	}
	return false
}

// IsPersistenceError checks if an error is a best-effort persistence failure
func IsPersistenceError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypePersistence
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapPersistence wraps an error as a persistence error
func WrapPersistence(message string, err error) error {
	return NewDomainError(ErrorTypePersistence, message, err)
}

// WrapExternal wraps an error as an external provider error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}
