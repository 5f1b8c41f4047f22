package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewDomainError(ErrorTypeNoHealthyInstance, "no candidates", nil)
		assert.Equal(t, "no_healthy_instance: no candidates", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewDomainError(ErrorTypeHealthProbe, "probe failed", cause)
		assert.Contains(t, err.Error(), "probe failed")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestDomainError_Is(t *testing.T) {
	err := fmt.Errorf("selecting instance: %w",
		NewDomainError(ErrorTypeNoHealthyInstance, "no candidates for capability chat", nil))

	assert.True(t, errors.Is(err, ErrNoHealthyInstance))
	assert.False(t, errors.Is(err, ErrSelectionExhausted))
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapPersistence("saving provider record", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsPersistenceError(err))
}

func TestErrorTypeHelpers(t *testing.T) {
	assert.True(t, IsNotFoundError(ErrProviderNotFound))
	assert.True(t, IsSelectionError(ErrNoHealthyInstance))
	assert.True(t, IsSelectionError(ErrSelectionExhausted))
	assert.True(t, IsCircuitOpenError(ErrCircuitOpen))
	assert.True(t, IsInitializationError(ErrInitialization))
	assert.False(t, IsSelectionError(errors.New("plain")))
	assert.Equal(t, ErrorTypeCircuitOpen, GetErrorType(ErrCircuitOpen))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeNoHealthyInstance, "no candidates", nil).
		WithDetail("capability", "code_generation")

	assert.Equal(t, "code_generation", err.Details["capability"])
}
